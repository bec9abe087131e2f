package bracket

import "strings"

var (
	adjectives = []string{
		"Royal", "Magnificent", "Legendary", "Unlikely", "Wild", "Epic", "Glorious",
		"Mighty", "Swift", "Precise", "Strategic", "Unforgettable", "Prestigious",
		"Heated", "Annual", "Razor-Sharp", "Unstoppable", "Notorious", "Secret",
		"Unofficial", "Merciless", "Decisive",
	}
	prefixes = []string{
		"Cue", "Chalk", "Rack", "Break", "Pocket", "Rail", "Corner", "Bank",
		"Spin", "Kick", "Side", "Eight-Ball", "Nine-Ball", "Triangle", "Felt",
	}
	events = []string{
		"Championship", "Tournament", "Showdown", "Challenge", "Duel", "Clash",
		"Battle", "Cup", "Open", "Classic", "Derby", "Invitational", "Series",
		"Gauntlet", "Final",
	}
	places = []string{
		"at the Office", "in the Break Room", "by the Coffee Machine",
		"in the Basement", "on the West Coast", "after Hours", "on a Friday",
		"in the Meeting Room", "down the Hall",
	}
)

func pick(rng Random, words []string) string {
	return words[rng.IntN(len(words))]
}

// Name generates a display name for a tournament
func Name(rng Random) string {
	var parts []string
	switch rng.IntN(4) {
	case 0:
		parts = []string{"The", pick(rng, adjectives), pick(rng, prefixes), pick(rng, events)}
	case 1:
		parts = []string{pick(rng, prefixes), pick(rng, events), pick(rng, places)}
	case 2:
		parts = []string{"The", pick(rng, adjectives), pick(rng, events), pick(rng, places)}
	default:
		parts = []string{pick(rng, prefixes) + "-" + pick(rng, prefixes), pick(rng, events)}
	}
	return strings.ToUpper(strings.Join(parts, " "))
}
