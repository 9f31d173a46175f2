package grouping

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// sortCollated sorts values in place using locale-aware collation.
// Strings the collator considers equal fall back to byte order so the
// result never depends on input order.
//
// A collate.Collator keeps internal buffers, so each call builds its own.
func sortCollated(locale language.Tag, values []string) {
	c := collate.New(locale)
	slices.SortFunc(values, func(a, b string) int {
		if r := c.CompareString(a, b); r != 0 {
			return r
		}
		return strings.Compare(a, b)
	})
}
