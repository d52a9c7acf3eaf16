package pointers

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a release of the host executable.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%02d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion parses versions written as "1.06.0" or "1.6.0".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(s), "v"), ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("malformed version %q", s)
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return Version{}, fmt.Errorf("malformed version %q", s)
		}
		n[i] = v
	}
	return Version{n[0], n[1], n[2]}, nil
}

// Latest is the newest supported version.
var Latest = Version{1, 6, 0}
