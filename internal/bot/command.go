package bot

import "strings"

const (
	CmdRegister  = "register"
	CmdReport    = "report"
	CmdStandings = "standings"
	CmdPairings  = "pairings"
	CmdCount     = "count"
	CmdReset     = "reset"
	CmdHelp      = "help"
)

var aliases = map[string]string{
	"register":  CmdRegister,
	"등록":        CmdRegister,
	"report":    CmdReport,
	"결과":        CmdReport,
	"standings": CmdStandings,
	"순위":        CmdStandings,
	"pairings":  CmdPairings,
	"대진":        CmdPairings,
	"count":     CmdCount,
	"인원":        CmdCount,
	"reset":     CmdReset,
	"초기화":       CmdReset,
	"help":      CmdHelp,
	"도움말":       CmdHelp,
}

type Command struct {
	Name string
	Args []string
	// Rest is the raw text after the command word, used for names with spaces.
	Rest string
	// Known is false for a prefixed word that is not a command.
	Known bool
}

// ParseCommand splits "<prefix><cmd> args..." and resolves aliases. The
// prefix may be followed by optional whitespace. ok is false when text does
// not start with prefix.
func ParseCommand(prefix, text string) (cmd Command, ok bool) {
	text = strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return Command{}, false
	}
	body := strings.TrimSpace(strings.TrimPrefix(text, prefix))
	if body == "" {
		return Command{Name: CmdHelp, Known: true}, true
	}
	word, rest, _ := strings.Cut(body, " ")
	rest = strings.TrimSpace(rest)
	name, known := aliases[strings.ToLower(word)]
	if !known {
		name = strings.ToLower(word)
	}
	return Command{Name: name, Args: strings.Fields(rest), Rest: rest, Known: known}, true
}
