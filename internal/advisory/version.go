package advisory

import (
	"strconv"
	"strings"
)

// Version is a loosely parsed semantic version. Missing minor or patch
// components compare as zero.
type Version struct {
	Parts      [3]int
	Prerelease string
}

// ParseVersion reads the lower bound of a declared version spec such as
// "^4.17.15", "==2.0.1", ">=1.2, <2" or "v0.14.0". Wildcards and tags like
// "latest" do not parse.
func ParseVersion(spec string) (Version, bool) {
	s := strings.TrimSpace(spec)
	if i := strings.IndexAny(s, ", |"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimLeft(s, "^~>=<!v ")
	if s == "" {
		return Version{}, false
	}
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}

	var v Version
	core := s
	if i := strings.IndexByte(s, '-'); i >= 0 {
		core, v.Prerelease = s[:i], s[i+1:]
	}
	fields := strings.Split(core, ".")
	if len(fields) > 3 {
		fields = fields[:3]
	}
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			if i == 0 {
				return Version{}, false
			}
			break
		}
		v.Parts[i] = n
	}
	return v, true
}

// Compare returns -1, 0 or 1. A prerelease sorts before its release.
func (v Version) Compare(o Version) int {
	for i := range v.Parts {
		switch {
		case v.Parts[i] < o.Parts[i]:
			return -1
		case v.Parts[i] > o.Parts[i]:
			return 1
		}
	}
	switch {
	case v.Prerelease == o.Prerelease:
		return 0
	case v.Prerelease == "":
		return 1
	case o.Prerelease == "":
		return -1
	case v.Prerelease < o.Prerelease:
		return -1
	default:
		return 1
	}
}

func (v Version) String() string {
	s := strconv.Itoa(v.Parts[0]) + "." + strconv.Itoa(v.Parts[1]) + "." + strconv.Itoa(v.Parts[2])
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	return s
}
