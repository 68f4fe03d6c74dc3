package mir

import (
	"strconv"
	"strings"
)

// compareVersions compares two dotted version strings segment by segment.
// Each segment is compared numerically if both sides parse as integers,
// otherwise lexicographically (spec.md §4.6: "non-numeric suffixes compared
// lexicographically"). Missing trailing segments compare as lower. This is
// adapted from the segment-walking idiom golang.org/x/mod/semver uses to
// compare dotted releases, but Meson versions are not strict semver (no
// leading "v", arbitrary segment counts), so the comparator is hand-rolled
// rather than calling semver.Compare directly.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}

	for i := 0; i < n; i++ {
		var sa, sb string
		if i < len(as) {
			sa = as[i]
		}
		if i < len(bs) {
			sb = bs[i]
		}

		if sa == sb {
			continue
		}

		ia, aok := strconv.Atoi(sa)
		ib, bok := strconv.Atoi(sb)
		if aok == nil && bok == nil {
			if ia != ib {
				if ia < ib {
					return -1
				}
				return 1
			}
			continue
		}

		if sa < sb {
			return -1
		}
		return 1
	}

	return 0
}

// VersionCompare implements String.version_compare(cmp): cmp is a leading
// comparison operator followed by whitespace and a version string, e.g.
// "< 3.7". It returns the boolean result of comparing receiver against that
// version, and ok=false if cmp's operator is not recognized.
func VersionCompare(receiver, cmp string) (result bool, ok bool) {
	cmp = strings.TrimSpace(cmp)

	ops := []string{"<=", ">=", "==", "!=", "<", ">"}
	var op, rest string
	for _, candidate := range ops {
		if strings.HasPrefix(cmp, candidate) {
			op = candidate
			rest = strings.TrimSpace(cmp[len(candidate):])
			break
		}
	}
	if op == "" {
		return false, false
	}

	c := compareVersions(receiver, rest)

	switch op {
	case "<":
		return c < 0, true
	case "<=":
		return c <= 0, true
	case "==":
		return c == 0, true
	case "!=":
		return c != 0, true
	case ">=":
		return c >= 0, true
	case ">":
		return c > 0, true
	default:
		return false, false
	}
}
