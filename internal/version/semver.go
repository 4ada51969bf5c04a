// Package version implements spec.md §4.3: constraint parsing, the
// version-list cache, and selection of the best match.
package version

import (
	"strconv"
	"strings"
	"sync"

	"github.com/vx-run/vx/internal/vxlog"
)

// parsed is a version broken into comparable release components and an
// optional pre-release suffix.
type parsed struct {
	release    []int
	prerelease string
	valid      bool
}

var (
	warnOnceMu sync.Mutex
	warnedRaw  = map[string]bool{}
)

func parseVersion(v string) parsed {
	main := v
	pre := ""

	if idx := strings.IndexByte(v, '-'); idx >= 0 {
		main = v[:idx]
		pre = v[idx+1:]
	}

	parts := strings.Split(main, ".")
	release := make([]int, 0, len(parts))

	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			warnUnparseable(v)
			return parsed{valid: false}
		}

		release = append(release, n)
	}

	if len(release) == 0 {
		warnUnparseable(v)
		return parsed{valid: false}
	}

	return parsed{release: release, prerelease: pre, valid: true}
}

func warnUnparseable(v string) {
	warnOnceMu.Lock()
	alreadyWarned := warnedRaw[v]
	warnedRaw[v] = true
	warnOnceMu.Unlock()

	if alreadyWarned {
		return
	}

	vxlog.Global().Warn("unparseable version, sorting last", "version", v)
}

// Compare orders a and b using lexical-then-numeric component ordering
// (standard semver precedence), with pre-release suffixes ordered below
// the release per spec.md §4.3. Unparseable versions sort last. Returns
// -1, 0, or 1.
func Compare(a, b string) int {
	pa := parseVersion(a)
	pb := parseVersion(b)

	if !pa.valid && !pb.valid {
		return strings.Compare(a, b)
	}

	if !pa.valid {
		return 1
	}

	if !pb.valid {
		return -1
	}

	if c := compareIntSlices(pa.release, pb.release); c != 0 {
		return c
	}

	switch {
	case pa.prerelease == "" && pb.prerelease == "":
		return 0
	case pa.prerelease == "":
		return 1 // release > prerelease of the same version
	case pb.prerelease == "":
		return -1
	default:
		return strings.Compare(pa.prerelease, pb.prerelease)
	}
}

func compareIntSlices(a, b []int) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		var av, bv int

		if i < len(a) {
			av = a[i]
		}

		if i < len(b) {
			bv = b[i]
		}

		if av != bv {
			if av < bv {
				return -1
			}

			return 1
		}
	}

	return 0
}

// Less reports whether a sorts before b under Compare.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// IsPrerelease reports whether v carries a pre-release suffix.
func IsPrerelease(v string) bool {
	return strings.IndexByte(v, '-') >= 0
}
