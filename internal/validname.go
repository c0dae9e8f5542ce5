package internal

import (
	"regexp"
	"strings"
)

const (
	// A valid name must start with a letter, digit or underscore.
	// It may contain any character after that except control and slash.
	pattern = `^[\pL\pN_][^\pC/]*$`
	// It may not end with a whitespace character, or be a reserved word.
	antiPattern = `(\pZ|^(u?byte|char|string|u?short|u?int|u?int64|uint64|float|double|enum|opaque|compound))$`
)

var (
	re     = regexp.MustCompile(pattern)
	antiRe = regexp.MustCompile(antiPattern)
)

// IsValidName returns true if name is a valid NetCDF object name.
func IsValidName(name string) bool {
	return re.MatchString(name) && !antiRe.MatchString(name)
}

// IsValidKey returns true if key is a slash-separated path of valid names,
// such as "group/variable". A single leading slash is allowed.
func IsValidKey(key string) bool {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if !IsValidName(part) {
			return false
		}
	}
	return true
}
