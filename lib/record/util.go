package record

import "strconv"

// ParseNumericID parses a store id that must be a positive integer, as used by
// the SQL backends. ok is false for anything else, such ids can never exist.
func ParseNumericID(id string) (n int64, ok bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
