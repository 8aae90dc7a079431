// Package ram parses and formats human-readable memory quantities
// (e.g. "1536M", "2G") used for JVM heap sizing.
package ram

import (
	"fmt"
	"strconv"
	"strings"
)

// FloorMB is the smallest heap craftd will ever hand to a server process.
const FloorMB = 512

// Parse converts a human-readable memory quantity to whole megabytes.
// Bare numbers are already megabytes. Suffixes K/M/G/T/P (case-insensitive,
// optional trailing "B" or "iB") scale by powers of 1024 relative to
// megabytes. Missing, unparsable, or non-positive input returns defaultMB.
func Parse(raw string, defaultMB int) int {
	s := strings.TrimSpace(strings.ToUpper(raw))
	if s == "" {
		return defaultMB
	}

	s = strings.TrimSuffix(s, "IB")
	s = strings.TrimSuffix(s, "B")

	mult := 1.0
	if len(s) > 0 {
		switch s[len(s)-1] {
		case 'K':
			mult = 1.0 / 1024
			s = s[:len(s)-1]
		case 'M':
			s = s[:len(s)-1]
		case 'G':
			mult = 1024
			s = s[:len(s)-1]
		case 'T':
			mult = 1024 * 1024
			s = s[:len(s)-1]
		case 'P':
			mult = 1024 * 1024 * 1024
			s = s[:len(s)-1]
		}
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return defaultMB
	}

	mb := int(value * mult)
	if mb <= 0 {
		return defaultMB
	}
	return mb
}

// Format renders a megabyte count back to the canonical JVM flag form.
// Exact gigabyte multiples are emitted as "NG", everything else as "NM".
// Non-positive input falls back to the floor.
func Format(mb int) string {
	if mb <= 0 {
		return fmt.Sprintf("%dM", FloorMB)
	}
	if mb%1024 == 0 {
		return fmt.Sprintf("%dG", mb/1024)
	}
	return fmt.Sprintf("%dM", mb)
}

// Clamp enforces max >= min, raising max to min when a caller supplies an
// inverted pair.
func Clamp(minMB, maxMB int) (int, int) {
	if maxMB < minMB {
		maxMB = minMB
	}
	return minMB, maxMB
}
