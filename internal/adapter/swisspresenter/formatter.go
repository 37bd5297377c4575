package swisspresenter

import (
	"errors"
	"strconv"
	"strings"

	"github.com/park285/swiss-tournament-bot/internal/domain"
	"github.com/park285/swiss-tournament-bot/internal/msgcat"
	"github.com/park285/swiss-tournament-bot/internal/tournament"
	"github.com/park285/swiss-tournament-bot/internal/util"
)

// Formatter renders tournament results into chat text through the message catalog.
type Formatter struct {
	cat    *msgcat.Catalog
	prefix string
}

func NewFormatter(cat *msgcat.Catalog, prefix string) *Formatter {
	return &Formatter{cat: cat, prefix: strings.TrimSpace(prefix)}
}

func (f *Formatter) Prefix() string { return f.prefix }

func (f *Formatter) render(key string, data map[string]any) string {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Prefix"]; !ok {
		data["Prefix"] = f.prefix
	}
	return f.cat.RenderOr("swiss."+key, data, key)
}

func (f *Formatter) Help() string { return f.render("help", nil) }

func (f *Formatter) Registered(id int64, name string) string {
	return f.render("register.ok", map[string]any{"ID": id, "Name": name})
}

func (f *Formatter) Reported(winnerID, loserID int64) string {
	return f.render("report.ok", map[string]any{"WinnerID": winnerID, "LoserID": loserID})
}

// Usage returns the usage line for register or report.
func (f *Formatter) Usage(cmd string) string { return f.render(cmd+".usage", nil) }

func (f *Formatter) BadID(v string) string {
	return f.render("error.bad_id", map[string]any{"Value": v})
}

func (f *Formatter) UnknownCommand() string { return f.render("error.unknown_command", nil) }

func (f *Formatter) Count(n int) string {
	return f.render("count.ok", map[string]any{"Count": n})
}

func (f *Formatter) ResetDone() string   { return f.render("reset.ok", nil) }
func (f *Formatter) ResetDenied() string { return f.render("reset.denied", nil) }

func (f *Formatter) ImageTitle() string { return f.render("standings.image_title", nil) }

// Standings lists every row; long tables are folded behind see-more.
func (f *Formatter) Standings(rows []domain.Standing) string {
	header := f.render("standings.header", nil)
	if len(rows) == 0 {
		return header + "\n" + f.render("standings.empty", nil)
	}
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, header)
	for i, r := range rows {
		lines = append(lines, f.render("standings.row", map[string]any{
			"Rank":    i + 1,
			"ID":      r.PlayerID,
			"Name":    r.Name,
			"Wins":    r.Wins,
			"Losses":  r.Losses(),
			"Matches": r.Matches,
		}))
	}
	return util.FoldWithHeader(strings.Join(lines, "\n"), header, f.render("standings.see_more", nil))
}

// Broadcast prefixes the standings with the scheduled-post header.
func (f *Formatter) Broadcast(rows []domain.Standing) string {
	return f.render("broadcast.header", nil) + "\n" + f.Standings(rows)
}

func (f *Formatter) Pairings(pairs []domain.Pairing) string {
	header := f.render("pairings.header", nil)
	lines := make([]string, 0, len(pairs)+1)
	lines = append(lines, header)
	for i, p := range pairs {
		lines = append(lines, f.render("pairings.row", map[string]any{
			"Table": i + 1,
			"ID1":   p.ID1,
			"Name1": p.Name1,
			"ID2":   p.ID2,
			"Name2": p.Name2,
		}))
	}
	return util.FoldWithHeader(strings.Join(lines, "\n"), header, f.render("standings.see_more", nil))
}

// Error maps a service error to a user-facing line. players is the current
// count, shown for odd-count rejections.
func (f *Formatter) Error(err error, requestID string, players int) string {
	switch tournament.KindOf(err) {
	case tournament.KindNotFound:
		return f.render("error.not_found", nil)
	case tournament.KindInvalid:
		if errors.Is(err, tournament.ErrSelfMatch) {
			return f.render("error.self_match", nil)
		}
		return f.render("error.invalid_name", nil)
	case tournament.KindPrecondition:
		if errors.Is(err, tournament.ErrOddPlayerCount) {
			return f.render("error.odd_count", map[string]any{"Count": strconv.Itoa(players)})
		}
		return f.render("error.not_enough", nil)
	default:
		return f.render("error.internal", map[string]any{"RequestID": requestID})
	}
}
