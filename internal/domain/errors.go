package domain

import "errors"

// Domain errors
var (
	ErrLeaderboardNotFound = errors.New("leaderboard not found")
	ErrPlayerNotFound      = errors.New("player not found in leaderboard")
	ErrMatchNotFound       = errors.New("match not found")
	ErrLeaderboardExists   = errors.New("leaderboard already exists")
	ErrPlayerExists        = errors.New("player already exists in leaderboard")
	ErrInvalidLeaderboard  = errors.New("invalid leaderboard configuration")
	ErrInvalidMatch        = errors.New("invalid match")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrNotEnoughPlayers    = errors.New("not enough players for a tournament")
	ErrStarterNotTracked   = errors.New("leaderboard does not track starters")
	ErrStarterAlreadySet   = errors.New("match starter already recorded")
	ErrNothingToUndo       = errors.New("no matches to undo")
	ErrLedgerDiverged      = errors.New("season and all-time ledgers have diverged")
	ErrInternalError       = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPlayerNotFound) ||
		errors.Is(err, ErrLeaderboardNotFound) ||
		errors.Is(err, ErrMatchNotFound)
}

// IsValidationError reports errors caused by malformed caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidMatch) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidLeaderboard) ||
		errors.Is(err, ErrNotEnoughPlayers) ||
		errors.Is(err, ErrStarterNotTracked)
}

// IsConflictError reports errors where the request is valid but the ledger state rejects it.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrLeaderboardExists) ||
		errors.Is(err, ErrPlayerExists) ||
		errors.Is(err, ErrStarterAlreadySet) ||
		errors.Is(err, ErrNothingToUndo)
}

// IsConsistencyError reports that the paired ledgers no longer agree.
func IsConsistencyError(err error) bool {
	return errors.Is(err, ErrLedgerDiverged)
}
