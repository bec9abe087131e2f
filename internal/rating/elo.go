// Package rating computes Elo rating movements for head-to-head, team and
// free-for-all matches.
//
// Every pair of teams is treated as one Elo game. A team plays with the mean
// rating of its members and shares a single rank. For each pair the team with
// the numerically lower rank scores 1, the other 0, and equal ranks score 0.5.
// Changes are scaled by K / (teams - 1) so a free-for-all moves ratings about as
// much as a single game, then rounded per team and given to every member.
package rating

import (
	"fmt"
	"math"
	"sort"

	"github.com/elo-ledger/internal/domain"
)

// DefaultKFactor is the maximum swing of a single two-party game
const DefaultKFactor = 32

// Rounding selects how fractional team changes become integers
type Rounding int

const (
	// RoundPerTeam rounds every team total independently. With three or more
	// teams the deltas can drift from zero by up to teams-1 points.
	RoundPerTeam Rounding = iota
	// RoundLargestRemainder floors every team total and hands the missing points
	// to the largest fractional parts, keeping the team totals zero-sum.
	RoundLargestRemainder
)

// ParseRounding maps a configuration value to a Rounding mode
func ParseRounding(s string) (Rounding, error) {
	switch s {
	case "", "nearest", "per_team":
		return RoundPerTeam, nil
	case "largest_remainder":
		return RoundLargestRemainder, nil
	}
	return RoundPerTeam, fmt.Errorf("unknown rounding mode %q", s)
}

// Participant is one entrant of a match
type Participant struct {
	ID      string
	Rating  int
	Rank    int
	TeamKey string
}

// Calculator is an Elo rating system with a fixed K factor
type Calculator struct {
	KFactor  float64
	Rounding Rounding
}

// Default is the classic K=32 calculator with per-team rounding
var Default = Calculator{KFactor: DefaultKFactor}

// ExpectedScore returns the probability that a player rated ra beats one rated rb
func ExpectedScore(ra, rb float64) float64 {
	return 1 / (1 + math.Pow(10, (rb-ra)/400))
}

type team struct {
	key     string
	members []string
	sum     float64
	rank    int
	change  float64
}

func (t *team) mean() float64 {
	return t.sum / float64(len(t.members))
}

// ComputeDeltas returns the signed rating change of every participant keyed by ID.
func (c Calculator) ComputeDeltas(participants []Participant) (map[string]int, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("%w: no participants", domain.ErrInvalidMatch)
	}

	teams, err := groupTeams(participants)
	if err != nil {
		return nil, err
	}
	if len(teams) < 2 {
		return nil, fmt.Errorf("%w: at least two teams are required", domain.ErrInvalidMatch)
	}

	k := c.KFactor
	if k <= 0 {
		k = DefaultKFactor
	}
	kEff := k / math.Max(float64(len(teams)-1), 1)

	for i := 0; i < len(teams); i++ {
		for j := i + 1; j < len(teams); j++ {
			a, b := teams[i], teams[j]
			expected := ExpectedScore(a.mean(), b.mean())
			actual := 0.5
			switch {
			case a.rank < b.rank:
				actual = 1
			case a.rank > b.rank:
				actual = 0
			}
			delta := kEff * (actual - expected)
			a.change += delta
			b.change -= delta
		}
	}

	var rounded []int
	if c.Rounding == RoundLargestRemainder {
		rounded = largestRemainder(teams)
	} else {
		rounded = make([]int, len(teams))
		for i, t := range teams {
			rounded[i] = int(math.Round(t.change))
		}
	}

	deltas := make(map[string]int, len(participants))
	for i, t := range teams {
		for _, id := range t.members {
			deltas[id] = rounded[i]
		}
	}
	return deltas, nil
}

func groupTeams(participants []Participant) ([]*team, error) {
	seen := make(map[string]bool, len(participants))
	byKey := make(map[string]*team)
	var teams []*team

	for _, p := range participants {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: participant without id", domain.ErrInvalidMatch)
		}
		if p.Rank < 1 {
			return nil, fmt.Errorf("%w: participant %q has no rank", domain.ErrInvalidMatch, p.ID)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: participant %q listed twice", domain.ErrInvalidMatch, p.ID)
		}
		seen[p.ID] = true

		key := p.TeamKey
		if key == "" {
			key = p.ID
		}
		t, ok := byKey[key]
		if !ok {
			t = &team{key: key, rank: p.Rank}
			byKey[key] = t
			teams = append(teams, t)
		} else if t.rank != p.Rank {
			return nil, fmt.Errorf("%w: team %q has members with different ranks", domain.ErrInvalidMatch, key)
		}
		t.members = append(t.members, p.ID)
		t.sum += float64(p.Rating)
	}
	return teams, nil
}

// largestRemainder floors each team change and distributes the remaining points
// to the teams with the largest fractional parts, earlier teams first on ties.
func largestRemainder(teams []*team) []int {
	out := make([]int, len(teams))
	fracs := make([]int, len(teams))
	floorSum := 0
	for i, t := range teams {
		f := math.Floor(t.change)
		out[i] = int(f)
		floorSum += out[i]
		fracs[i] = i
	}
	missing := -floorSum
	sort.SliceStable(fracs, func(a, b int) bool {
		fa := teams[fracs[a]].change - math.Floor(teams[fracs[a]].change)
		fb := teams[fracs[b]].change - math.Floor(teams[fracs[b]].change)
		return fa > fb
	})
	for i := 0; i < missing && i < len(fracs); i++ {
		out[fracs[i]]++
	}
	return out
}
