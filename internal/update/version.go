package update

import (
	"strconv"
	"strings"
)

// stripTag removes a leading "v" from a release tag.
func stripTag(tag string) string {
	return strings.TrimPrefix(tag, "v")
}

// isNewer reports whether the candidate version should be offered over the
// current one. Identical strings are never an offer. Dotted-numeric
// versions compare field by field so 1.1.9 is not offered to a user on
// 1.2.0; tags that do not parse numerically fall back to a lexicographic
// tie-break on the differing field.
func isNewer(candidate, current string) bool {
	if candidate == current {
		return false
	}
	return compareVersions(candidate, current) > 0
}

// compareVersions returns 1 if v1 > v2, -1 if v1 < v2, 0 if equal.
func compareVersions(v1, v2 string) int {
	parts1 := strings.Split(v1, ".")
	parts2 := strings.Split(v2, ".")

	n := len(parts1)
	if len(parts2) > n {
		n = len(parts2)
	}
	for i := 0; i < n; i++ {
		var s1, s2 string
		if i < len(parts1) {
			s1 = parts1[i]
		}
		if i < len(parts2) {
			s2 = parts2[i]
		}
		a, err1 := strconv.Atoi(s1)
		b, err2 := strconv.Atoi(s2)
		if err1 != nil || err2 != nil {
			if c := strings.Compare(s1, s2); c != 0 {
				return c
			}
			continue
		}
		if a != b {
			if a > b {
				return 1
			}
			return -1
		}
	}
	return 0
}
