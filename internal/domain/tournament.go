package domain

// Player is a registered tournament entrant. Wins and Matches are the cached
// counters maintained at match-recording time.
type Player struct {
	ID      int64
	Name    string
	Wins    int
	Matches int
}

// Match is an immutable, append-only game outcome.
type Match struct {
	ID       int64
	WinnerID int64
	LoserID  int64
}

type Standing struct {
	PlayerID int64
	Name     string
	Wins     int
	Matches  int
}

// Losses is derived; a match is always either won or lost.
func (s Standing) Losses() int { return s.Matches - s.Wins }

type Pairing struct {
	ID1   int64
	Name1 string
	ID2   int64
	Name2 string
}
