package attendance

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// maxExactFloatInt is the largest integer a float64 holds without rounding.
const maxExactFloatInt = 1 << 53

// Normalizer resolves recognition-side identifiers to roster identifiers.
// The recognition service and the roster backend do not agree on id typing,
// so a strict pass is followed by a pass over folded textual forms.
// The zero value is ready to use.
type Normalizer struct{}

// Normalize returns the roster id that raw denotes and true, or raw's textual
// form and false when no roster member matches.
func (Normalizer) Normalize(raw RawID, roster *Roster) (CanonicalID, bool) {
	exact := CanonicalID(raw.String())
	if roster.Contains(exact) {
		return exact, true
	}

	want := Fold(raw.String())
	if want != "" && roster != nil {
		for _, s := range roster.students {
			if Fold(string(s.ID)) == want {
				return s.ID, true
			}
		}
	}
	return exact, false
}

// Fold maps an identifier to the textual form used for loose comparison:
// NFKC (which folds full-width digits), trimmed, case-folded, and integer
// numerals in shortest decimal form ("042", "42.0" and "42" all fold to "42").
func Fold(s string) string {
	s = strings.TrimSpace(norm.NFKC.String(s))
	if s == "" {
		return ""
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) <= maxExactFloatInt {
		return strconv.FormatInt(int64(f), 10)
	}
	return cases.Fold().String(s)
}
