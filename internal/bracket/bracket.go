// Package bracket seeds single-elimination tournaments.
package bracket

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrTooFewEntrants is returned when fewer than two entrants are supplied
var ErrTooFewEntrants = errors.New("a bracket needs at least two entrants")

// Progression describes how the bracket continues after the first round
const Progression = "Winners of round 1 advance; later rounds pair the winners of adjacent matches."

// Random is the source of randomness used for shuffling and starter flags.
// *rand.Rand from math/rand/v2 satisfies it.
type Random interface {
	IntN(n int) int
}

// Entrant is one player entering the bracket
type Entrant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Rating int    `json:"rating"`
}

// Slot is one first-round pairing. Away is nil for a bye.
type Slot struct {
	Number     int      `json:"number"`
	Home       Entrant  `json:"home"`
	Away       *Entrant `json:"away,omitempty"`
	HomeStarts bool     `json:"home_starts"`
}

// IsBye reports whether Home advances without playing
func (s Slot) IsBye() bool {
	return s.Away == nil
}

// Label renders the slot for display
func (s Slot) Label() string {
	if s.IsBye() {
		return fmt.Sprintf("%s (%d) - bye to next round", s.Home.Name, s.Home.Rating)
	}
	return fmt.Sprintf("%s (%d) vs %s (%d)", s.Home.Name, s.Home.Rating, s.Away.Name, s.Away.Rating)
}

// Bracket is the seeded first round of a single-elimination tournament
type Bracket struct {
	Name        string `json:"name"`
	PlayerCount int    `json:"player_count"`
	BracketSize int    `json:"bracket_size"`
	ByeCount    int    `json:"bye_count"`
	FirstRound  []Slot `json:"first_round"`
	Progression string `json:"progression"`
}

// Size returns the smallest power of two that holds n entrants
func Size(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// Build shuffles the entrants and lays out the first round. The first ByeCount
// slots are byes; the rest pair consecutive entrants.
func Build(entrants []Entrant, rng Random) (*Bracket, error) {
	n := len(entrants)
	if n < 2 {
		return nil, ErrTooFewEntrants
	}

	shuffled := make([]Entrant, n)
	copy(shuffled, entrants)
	for i := n - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	size := Size(n)
	byes := size - n

	b := &Bracket{
		Name:        Name(rng),
		PlayerCount: n,
		BracketSize: size,
		ByeCount:    byes,
		FirstRound:  make([]Slot, 0, size/2),
		Progression: Progression,
	}

	next := 0
	for i := 0; i < size/2; i++ {
		slot := Slot{Number: i + 1, Home: shuffled[next]}
		next++
		if i >= byes {
			away := shuffled[next]
			next++
			slot.Away = &away
			slot.HomeStarts = rng.IntN(2) == 0
		}
		b.FirstRound = append(b.FirstRound, slot)
	}
	return b, nil
}
