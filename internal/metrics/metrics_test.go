package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MatchesRecorded.WithLabelValues("pool", "two_party").Inc()
	m.MatchesRecorded.WithLabelValues("pool", "two_party").Inc()
	m.LedgerDivergence.WithLabelValues("pool", "undo").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MatchesRecorded.WithLabelValues("pool", "two_party")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerDivergence.WithLabelValues("pool", "undo")))

	m.Observe("record", time.Now(), nil)
	m.Observe("record", time.Now(), errors.New("boom"))
	assert.Equal(t, 2, testutil.CollectAndCount(m.OperationDuration))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewNoop_Independent(t *testing.T) {
	a := NewNoop()
	b := NewNoop()
	a.StartersSet.WithLabelValues("pool").Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.StartersSet.WithLabelValues("pool")))
}
