package utilities

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Parse reads Go duration strings such as "1m30s". A bare integer is taken
// as seconds, which is how most environment overrides are written.
func Parse(s string) (time.Duration, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return 0, errors.New("empty duration")
	}
	if secs, err := strconv.ParseInt(in, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(in)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid duration %q", s)
	}
	return d, nil
}

// ParseOrDefault returns def for blank input and otherwise behaves like
// Parse.
func ParseOrDefault(s string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return Parse(s)
}
