package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultInterval is how long the batch controller sleeps on an empty queue.
const DefaultInterval = 60 * time.Second

// ParseInterval parses a poll interval.
// Supports 2 formats:
// - plain integer → seconds ("30")
// - Go duration → "90s", "5m", "1h30m"
// The interval must be positive.
func ParseInterval(input string) (time.Duration, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, fmt.Errorf("empty interval")
	}

	var d time.Duration
	if secs, err := strconv.Atoi(input); err == nil {
		d = time.Duration(secs) * time.Second
	} else {
		parsed, perr := time.ParseDuration(input)
		if perr != nil {
			return 0, fmt.Errorf("invalid interval %q (supported: seconds like 30, or durations like 90s, 5m, 1h30m)", input)
		}
		d = parsed
	}

	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %q", input)
	}
	return d, nil
}
