package gpu

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// capacityUnits maps a unit token to its size in megabytes.
var capacityUnits = []struct {
	token string
	mb    int64
}{
	{"MB", 1},
	{"GB", 1024},
}

// ParseCapacityMB extracts a memory capacity in megabytes from a free-form
// string such as "8192 MB", "8 GB" or "16GB". The first occurrence of
// digits, optional whitespace and a known unit token wins. Strings with no
// such occurrence, or whose size does not fit in an int64, yield 0.
func ParseCapacityMB(s string) int64 {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			continue
		}
		j := i
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		mb, ok := matchUnit(strings.TrimLeftFunc(s[j:], unicode.IsSpace))
		if !ok {
			// A shorter run starting later in the same digits cannot be
			// followed by a unit either.
			i = j - 1
			continue
		}
		n, err := strconv.ParseInt(s[i:j], 10, 64)
		if err != nil || n > math.MaxInt64/mb {
			return 0
		}
		return n * mb
	}
	return 0
}

func matchUnit(s string) (int64, bool) {
	for _, u := range capacityUnits {
		if len(s) >= len(u.token) && strings.EqualFold(s[:len(u.token)], u.token) {
			return u.mb, true
		}
	}
	return 0, false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
