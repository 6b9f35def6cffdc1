package paragraph

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dshills/pagestorm/internal/engine/doc"
)

// FindBoundary returns the character offset of a cut in text. before is
// text that ends at the cut and after is text that starts at it; either
// may be empty but not both. The first occurrence wins.
func FindBoundary(text, before, after string) (int, error) {
	var idx int
	switch {
	case before != "" && after != "":
		idx = strings.Index(text, before+after)
		if idx >= 0 {
			idx += len(before)
		}
	case before != "":
		idx = strings.Index(text, before)
		if idx >= 0 {
			idx += len(before)
		}
	case after != "":
		idx = strings.Index(text, after)
	default:
		return 0, fmt.Errorf("empty boundary: %w", doc.ErrAmbiguousBoundary)
	}
	if idx < 0 {
		return 0, fmt.Errorf("boundary %q|%q: %w", before, after, doc.ErrAmbiguousBoundary)
	}
	return utf8.RuneCountInString(text[:idx]), nil
}
