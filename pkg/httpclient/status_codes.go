package httpclient

import (
	"fmt"
	"strconv"
	"strings"
)

// StatusCodeSet is a set of HTTP status codes built from a list such as
// "200-299,401,404".
type StatusCodeSet struct {
	ranges [][2]int
}

// ParseStatusCodes parses a comma separated list of codes and inclusive
// ranges. Empty input yields nil.
func ParseStatusCodes(s string) (*StatusCodeSet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	set := &StatusCodeSet{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		minCode, err := parseCode(lo)
		if err != nil {
			return nil, err
		}
		maxCode := minCode
		if isRange {
			if maxCode, err = parseCode(hi); err != nil {
				return nil, err
			}
			if maxCode < minCode {
				return nil, fmt.Errorf("invalid status code range %q", part)
			}
		}
		set.AddRange(minCode, maxCode)
	}
	return set, nil
}

// MustParseStatusCodes is ParseStatusCodes that panics on error.
func MustParseStatusCodes(s string) *StatusCodeSet {
	set, err := ParseStatusCodes(s)
	if err != nil {
		panic(err)
	}
	return set
}

func parseCode(s string) (int, error) {
	code, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid status code %q: %w", s, err)
	}
	if code < 100 || code > 599 {
		return 0, fmt.Errorf("status code %d out of range", code)
	}
	return code, nil
}

// AddRange adds the inclusive range [minCode, maxCode].
func (s *StatusCodeSet) AddRange(minCode, maxCode int) {
	s.ranges = append(s.ranges, [2]int{minCode, maxCode})
}

// Contains reports whether code is in the set.
func (s *StatusCodeSet) Contains(code int) bool {
	if s == nil {
		return false
	}
	for _, r := range s.ranges {
		if code >= r[0] && code <= r[1] {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the set is nil or has no codes.
func (s *StatusCodeSet) IsEmpty() bool {
	return s == nil || len(s.ranges) == 0
}

// String renders the set in the parseable form.
func (s *StatusCodeSet) String() string {
	if s.IsEmpty() {
		return ""
	}
	parts := make([]string, 0, len(s.ranges))
	for _, r := range s.ranges {
		if r[0] == r[1] {
			parts = append(parts, strconv.Itoa(r[0]))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", r[0], r[1]))
		}
	}
	return strings.Join(parts, ",")
}
