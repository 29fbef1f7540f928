package storage

import (
	"regexp"
	"strings"
)

const (
	// ShortIDLen is the number of characters after the resource prefix kept
	// in CLI output.
	ShortIDLen = 8
	// MinPrefixLen is the minimum prefix length considered for ID matching.
	MinPrefixLen = 4
)

// IDRegexp matches service-assigned resource IDs such as asst_AbC123.
var IDRegexp = regexp.MustCompile(`\b(asst|thread|run|msg|step|call)_[A-Za-z0-9]+\b`)

// ShortID shortens a resource ID for display, keeping its type prefix.
func ShortID(id string) string {
	kind, rest, ok := strings.Cut(id, "_")
	if !ok {
		if len(id) > ShortIDLen {
			return id[:ShortIDLen]
		}
		return id
	}
	if len(rest) > ShortIDLen {
		rest = rest[:ShortIDLen]
	}
	return kind + "_" + rest
}
