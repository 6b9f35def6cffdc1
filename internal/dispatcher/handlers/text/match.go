package text

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/dshills/pagestorm/internal/dispatcher/command"
)

// Match is one search hit in character offsets.
type Match struct {
	Start int
	End   int
	// Replacement is the expanded replacement text for the hit.
	Replacement string
}

// compile builds the search pattern for cmd.
func compile(cmd command.Command) (*regexp.Regexp, error) {
	pattern := cmd.Search
	if !cmd.Regex {
		pattern = regexp.QuoteMeta(pattern)
	}
	if !cmd.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", command.ErrInvalidCommand, err)
	}
	return re, nil
}

// FindMatches returns the non-empty matches of cmd's search in text, in
// order. Only the first is returned unless cmd.All is set. Regular
// expression replacements may refer to submatches as $1 or ${name}.
func FindMatches(cmd command.Command, text, replacement string) ([]Match, error) {
	re, err := compile(cmd)
	if err != nil {
		return nil, err
	}

	var out []Match
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] == loc[1] {
			continue
		}
		repl := replacement
		if cmd.Regex {
			repl = string(re.ExpandString(nil, replacement, text, loc))
		}
		out = append(out, Match{
			Start:       utf8.RuneCountInString(text[:loc[0]]),
			End:         utf8.RuneCountInString(text[:loc[1]]),
			Replacement: repl,
		})
		if !cmd.All {
			break
		}
	}
	return out, nil
}
