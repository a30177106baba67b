// Package version implements ordering of dot-separated version strings.
package version

import (
	"strconv"
	"strings"
)

// Compare orders two version strings by dot-separated segments.
// Segments are compared left-to-right as integers when both parse,
// otherwise lexically. A version with fewer segments is padded with
// zeros, so "1.2" and "1.2.0" compare equal.
// Returns: -1 if a < b, 0 if a == b, 1 if a > b.
func Compare(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	maxLen := len(as)
	if len(bs) > maxLen {
		maxLen = len(bs)
	}

	for i := 0; i < maxLen; i++ {
		av := segment(as, i)
		bv := segment(bs, i)

		an, aerr := strconv.Atoi(av)
		bn, berr := strconv.Atoi(bv)

		if aerr == nil && berr == nil {
			if an < bn {
				return -1
			}
			if an > bn {
				return 1
			}
			continue
		}

		if av < bv {
			return -1
		}
		if av > bv {
			return 1
		}
	}

	return 0
}

// segment returns the i-th dot segment, padding missing trailing
// segments with "0".
func segment(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return "0"
}

// IsGreater reports whether a orders strictly after b.
func IsGreater(a, b string) bool {
	return Compare(a, b) > 0
}
