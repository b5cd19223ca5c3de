package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/chatcal/internal/event"
)

// NormalizeTime checks an "H:MM" or "HH:MM" 24-hour clock string and
// returns it zero-padded.
func NormalizeTime(s string) (string, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return "", fmt.Errorf("time %q is not HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("hour in %q out of range", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("minute in %q out of range", s)
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// ValidateDate checks that s is a real calendar date in YYYY-MM-DD form.
func ValidateDate(s string) error {
	if _, err := time.Parse(event.DateLayout, s); err != nil {
		return fmt.Errorf("date %q is not YYYY-MM-DD: %w", s, err)
	}
	return nil
}
