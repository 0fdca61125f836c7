package convert

import (
	"strconv"
	"strings"
)

// ProgressTimeKey is the progress key carrying elapsed output time in
// microseconds, despite its name.
const ProgressTimeKey = "out_time_ms"

// ParseProgressLine extracts the out_time_ms value from one progress line.
// Other keys, malformed lines and negative or unknown values report false.
func ParseProgressLine(line string) (int64, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || strings.TrimSpace(key) != ProgressTimeKey {
		return 0, false
	}

	elapsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || elapsed < 0 {
		return 0, false
	}
	return elapsed, true
}

// Percent maps elapsed against total to a floored 0..100 percentage.
func Percent(elapsed, total int64) int {
	if total <= 0 || elapsed <= 0 {
		return 0
	}
	if elapsed >= total {
		return 100
	}
	return int(elapsed * 100 / total)
}
