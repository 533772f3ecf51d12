// Package timespec parses the human-friendly duration and resolution
// syntax used throughout the update worker's configuration: update
// rates ("5m", "1h aligned"), the "N" now-sentinel, and custom RRA
// resolution specs ("5m for 2d, 1h for 90d").
package timespec

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// unitSeconds maps the single-letter suffixes recognised by ToSeconds.
// Month and year are fixed at 31 and 365 days respectively, matching
// the source system's calendar-agnostic approximation.
var unitSeconds = map[byte]int64{
	's': 1,
	'm': 60,
	'h': 60 * 60,
	'd': 60 * 60 * 24,
	'w': 60 * 60 * 24 * 7,
	't': 60 * 60 * 24 * 31,
	'y': 60 * 60 * 24 * 365,
}

// ToSeconds converts a duration string like "5m" or "90d" to seconds.
// A bare integer (no recognised suffix) is interpreted as seconds
// already. Unknown suffixes fall back to the same behavior.
func ToSeconds(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	last := s[len(s)-1]
	if mult, ok := unitSeconds[last]; ok {
		n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
		if err != nil {
			return 0
		}
		return n * mult
	}
	n, err := strconv.ParseInt(strings.TrimRightFunc(s, unicode.IsLetter), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Now is overridable in tests to keep RoundToGranularity deterministic.
var Now = func() int64 { return time.Now().Unix() }

// RoundToGranularity resolves the "N" now-sentinel and truncates "when"
// down to the nearest multiple of g. A g of 0 or less disables rounding.
func RoundToGranularity(when string, g int64) int64 {
	var w int64
	if when == "N" {
		w = Now()
	} else {
		w, _ = strconv.ParseInt(when, 10, 64)
	}
	if g <= 0 {
		return w
	}
	return w - (w % g)
}

var updateRatePattern = regexp.MustCompile(`^(\d+)([a-zA-Z]*)\s*(aligned)?$`)

// ParseUpdateRate parses strings of the form "<number><unit>?( aligned)?",
// e.g. "300", "5m", "5m aligned". On mismatch it returns (0, false).
func ParseUpdateRate(s string) (seconds int64, aligned bool) {
	m := updateRatePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	unit := m[2]
	mult := int64(1)
	if unit != "" {
		if u, ok := unitSeconds[strings.ToLower(unit)[0]]; ok {
			mult = u
		}
	}
	return n * mult, m[3] == "aligned"
}

// Archive is one resolution archive: sample every (multiplier * base
// update rate) seconds, retaining count samples.
type Archive struct {
	Multiplier int64
	Count      int64
}

var stepForSpanPattern = regexp.MustCompile(`^\s*(\d+[a-zA-Z]*)\s+for\s+(\d+[a-zA-Z]*)\s*$`)
var pairPattern = regexp.MustCompile(`^\s*(\d+)\s+(\d+)\s*$`)

// ParseCustomResolution parses a "custom <spec>" resolution string into
// an ordered list of archives. The first element establishes the base
// resolution: either a bare count (using updateRate as the step) or a
// "<step> for <span>" pair. Subsequent elements are either "<a> <b>"
// multiplier/count pairs or further "<step> for <span>" forms. Every
// count is inflated by 10% (minimum +1) to tolerate write latency.
func ParseCustomResolution(spec string, updateRate int64) []Archive {
	var archives []Archive
	parts := strings.Split(spec, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var a Archive
		if i == 0 {
			if m := stepForSpanPattern.FindStringSubmatch(part); m != nil {
				step := ToSeconds(m[1])
				span := ToSeconds(m[2])
				if step <= 0 || updateRate <= 0 {
					continue
				}
				a = Archive{Multiplier: step / updateRate, Count: span / step}
			} else {
				n, err := strconv.ParseInt(part, 10, 64)
				if err != nil {
					continue
				}
				a = Archive{Multiplier: 1, Count: n}
			}
		} else if m := stepForSpanPattern.FindStringSubmatch(part); m != nil {
			step := ToSeconds(m[1])
			span := ToSeconds(m[2])
			if step <= 0 || updateRate <= 0 {
				continue
			}
			a = Archive{Multiplier: step / updateRate, Count: span / step}
		} else if m := pairPattern.FindStringSubmatch(part); m != nil {
			mult, _ := strconv.ParseInt(m[1], 10, 64)
			cnt, _ := strconv.ParseInt(m[2], 10, 64)
			a = Archive{Multiplier: mult, Count: cnt}
		} else {
			continue
		}
		a.Count = inflate(a.Count)
		archives = append(archives, a)
	}
	return archives
}

func inflate(count int64) int64 {
	bonus := count / 10
	if bonus < 1 {
		bonus = 1
	}
	return count + bonus
}

// NormalProfile returns the fixed archive set for the "normal"
// resolution profile: 5-min for 48h, 30-min for 9d, 2h for 45d, 1d for
// 450d, expressed relative to a base update rate of 5 minutes.
func NormalProfile() []Archive {
	return []Archive{
		{Multiplier: 1, Count: inflate((48 * 3600) / 300)},
		{Multiplier: 6, Count: inflate((9 * 24 * 3600) / (6 * 300))},
		{Multiplier: 24, Count: inflate((45 * 24 * 3600) / (24 * 300))},
		{Multiplier: 288, Count: inflate((450 * 24 * 3600) / (288 * 300))},
	}
}

// HugeProfile returns the fixed archive set for the "huge" resolution
// profile: 5-min resolution retained for 400 days.
func HugeProfile() []Archive {
	return []Archive{
		{Multiplier: 1, Count: inflate((400 * 24 * 3600) / 300)},
	}
}
