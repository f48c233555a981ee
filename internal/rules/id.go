package rules

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// IDPrefix starts every derived rule ID.
const IDPrefix = "rule_"

// ID derives the stable identifier of a rule line: "rule_" followed by the
// lowercase hex xxhash64 of the trimmed text. The same text always yields
// the same ID in every process.
func ID(content string) string {
	return IDPrefix + strconv.FormatUint(xxhash.Sum64String(strings.TrimSpace(content)), 16)
}

// Normalize returns the form of a submitted rule that is written to disk:
// trailing line terminators removed and surrounding whitespace trimmed.
func Normalize(content string) string {
	return strings.TrimSpace(strings.TrimRight(content, "\r\n"))
}
