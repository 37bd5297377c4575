package tournament

import "errors"

var (
	ErrPlayerNotFound   = errors.New("player not found")
	ErrSelfMatch        = errors.New("winner and loser must be different players")
	ErrInvalidName      = errors.New("player name is required")
	ErrNotEnoughPlayers = errors.New("at least two players are required for pairing")
	ErrOddPlayerCount   = errors.New("pairing requires an even number of players")
)

// Kind groups errors by how callers should react to them.
type Kind string

const (
	KindNone         Kind = ""
	KindNotFound     Kind = "not_found"
	KindPrecondition Kind = "precondition"
	KindInvalid      Kind = "invalid"
	KindStore        Kind = "store"
)

// KindOf classifies err. Anything not raised by this package is treated as a
// store failure.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPlayerNotFound):
		return KindNotFound
	case errors.Is(err, ErrNotEnoughPlayers), errors.Is(err, ErrOddPlayerCount):
		return KindPrecondition
	case errors.Is(err, ErrSelfMatch), errors.Is(err, ErrInvalidName):
		return KindInvalid
	default:
		return KindStore
	}
}
