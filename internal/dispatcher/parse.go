package dispatcher

import (
	"strconv"
	"strings"
)

// parseHex parses a lowercase-or-mixed-case hex string into a uint64. It
// mirrors strtoul(s, nil, 16) from the reference implementation: no sign,
// no "0x" prefix expected.
func parseHex(s string) (uint64, bool) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// cutComma splits "a,b" into ("a", "b", true), or reports false if no comma
// is present — the same malformed-payload signal the reference
// implementation treats as "silently drop, no reply".
func cutComma(s string) (string, string, bool) {
	return strings.Cut(s, ",")
}

func cutColon(s string) (string, string, bool) {
	return strings.Cut(s, ":")
}

func cutEquals(s string) (string, string, bool) {
	return strings.Cut(s, "=")
}

// selectElementSize picks the element size a memory read/write should use: 4
// when address and length are both 4-aligned, 2 when 2-aligned and length
// is 2 or 4, otherwise 1.
func selectElementSize(addr uint64, length int) int {
	if addr%4 == 0 && length%4 == 0 {
		return 4
	}
	if addr%2 == 0 && (length == 2 || length == 4) {
		return 2
	}
	return 1
}
