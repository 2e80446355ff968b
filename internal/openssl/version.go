package openssl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	FamilyOpenSSL  = "OpenSSL"
	FamilyLibreSSL = "LibreSSL"
)

var versionRe = regexp.MustCompile(`^(OpenSSL|LibreSSL)\s+(\d+)\.(\d+)(?:\.(\d+))?([a-z]*)`)

// Version is the parsed output of "<toolkit> version".
type Version struct {
	Family string
	Major  int
	Minor  int
	Patch  int
	Raw    string
}

func (v Version) String() string {
	return fmt.Sprintf("%s %d.%d.%d", v.Family, v.Major, v.Minor, v.Patch)
}

// ParseVersion parses lines like "OpenSSL 3.0.13 30 Jan 2024" or "LibreSSL 3.3.6".
func ParseVersion(output string) (Version, error) {
	line := strings.TrimSpace(output)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}

	m := versionRe.FindStringSubmatch(line)
	if m == nil {
		return Version{}, fmt.Errorf("%w: unrecognized output %q", ErrVersionProbe, line)
	}

	v := Version{Family: m[1], Raw: line}
	v.Major, _ = strconv.Atoi(m[2])
	v.Minor, _ = strconv.Atoi(m[3])
	if m[4] != "" {
		v.Patch, _ = strconv.Atoi(m[4])
	}
	return v, nil
}
