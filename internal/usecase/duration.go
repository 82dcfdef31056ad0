package usecase

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/recipebox/backend/internal/domain"
)

var (
	// ISO-8601 durations as used by schema.org, e.g. "PT1H30M", "P1DT2H"
	isoDurationPattern = regexp.MustCompile(`(?i)^P(?:(\d+(?:\.\d+)?)W)?(?:(\d+(?:\.\d+)?)D)?(?:T(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

	// Human durations, e.g. "1 hr 20 mins", "45 minutes", "2h"
	humanDurationPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(days?|d|hours?|hrs?|h|minutes?|mins?|m)\b`)

	bareNumberPattern = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)

// ParseDuration reads an ISO-8601 or human-readable duration into minutes.
// Unparseable and zero durations yield nil.
func ParseDuration(s string) *domain.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if d, ok := parseISODuration(s); ok {
		return d
	}
	return parseHumanDuration(s)
}

func parseISODuration(s string) (*domain.Duration, bool) {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil || strings.EqualFold(s, "P") || strings.EqualFold(s, "PT") {
		return nil, false
	}

	factors := []float64{7 * 24 * 60, 24 * 60, 60, 1, 1.0 / 60}
	total := 0.0
	for i, f := range factors {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return nil, false
		}
		total += v * f
	}

	return minutesOrNil(total), true
}

func parseHumanDuration(s string) *domain.Duration {
	if bareNumberPattern.MatchString(s) {
		v, _ := strconv.ParseFloat(s, 64)
		return minutesOrNil(v)
	}

	matches := humanDurationPattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}

	total := 0.0
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		unit := strings.ToLower(m[2])
		switch {
		case strings.HasPrefix(unit, "d"):
			total += v * 24 * 60
		case strings.HasPrefix(unit, "h"):
			total += v * 60
		default:
			total += v
		}
	}
	return minutesOrNil(total)
}

func minutesOrNil(total float64) *domain.Duration {
	n := int(math.Round(total))
	if n <= 0 {
		return nil
	}
	return domain.Minutes(n)
}

// FormatDuration renders minutes the way recipe text exports write them
func FormatDuration(d *domain.Duration) string {
	if d == nil {
		return ""
	}
	mins := int(d.ToTimeDuration().Minutes())
	h, m := mins/60, mins%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%d hr %d mins", h, m)
	case h > 0:
		return fmt.Sprintf("%d hr", h)
	default:
		return fmt.Sprintf("%d mins", m)
	}
}
