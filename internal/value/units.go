package value

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// durationUnits maps a literal suffix to its nanosecond multiplier,
// matching the nuon duration suffixes of spec.md §6.
var durationUnits = map[string]int64{
	"ns":  int64(time.Nanosecond),
	"us":  int64(time.Microsecond),
	"ms":  int64(time.Millisecond),
	"sec": int64(time.Second),
	"s":   int64(time.Second),
	"min": int64(time.Minute),
	"hr":  int64(time.Hour),
	"day": int64(24 * time.Hour),
	"wk":  int64(7 * 24 * time.Hour),
}

// filesizeUnits maps a literal suffix to its byte multiplier. Decimal (SI)
// units are powers of 1000; binary units (kib/mib/gib/...) are powers of
// 1024, per spec.md §6.
var filesizeUnits = map[string]int64{
	"b":   1,
	"kb":  1_000,
	"mb":  1_000_000,
	"gb":  1_000_000_000,
	"tb":  1_000_000_000_000,
	"kib": 1 << 10,
	"mib": 1 << 20,
	"gib": 1 << 30,
	"tib": 1 << 40,
}

// ParseDuration parses a literal like "4sec", "1.5min", "123ms" into
// nanoseconds. Unlike time.ParseDuration it accepts the shell's own unit
// spellings (spec.md §6) and a single combined numeric+unit literal only
// (no "1h30m" compounding), matching the lexer's single-token duration
// literals.
func ParseDuration(lit string) (int64, error) {
	numPart, unit, err := splitNumberUnit(lit, durationUnits)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration literal %q: %w", lit, err)
	}
	mult, ok := durationUnits[unit]
	if !ok {
		return 0, fmt.Errorf("invalid duration literal %q: unknown unit %q", lit, unit)
	}
	return int64(f * float64(mult)), nil
}

// ParseFilesize parses a literal like "10mb", "2gib" into a byte count.
// Delegates the decimal/binary suffix table to humanize.ParseBytes, which
// already accepts both SI (kb/mb/gb) and IEC (kib/mib/gib) spellings per
// spec.md §6; our own filesizeUnits table stays only as a fallback for the
// few spellings humanize doesn't recognise (bare "b").
func ParseFilesize(lit string) (int64, error) {
	if n, err := humanize.ParseBytes(lit); err == nil {
		return int64(n), nil
	}
	numPart, unit, err := splitNumberUnit(lit, filesizeUnits)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid filesize literal %q: %w", lit, err)
	}
	mult, ok := filesizeUnits[unit]
	if !ok {
		return 0, fmt.Errorf("invalid filesize literal %q: unknown unit %q", lit, unit)
	}
	return int64(f * float64(mult)), nil
}

// splitNumberUnit splits a literal into its leading numeric run and
// trailing unit suffix, matching the suffix against the longest key in
// units so "sec" isn't mistaken for "s" + "ec".
func splitNumberUnit(lit string, units map[string]int64) (numPart, unit string, err error) {
	lit = strings.TrimSpace(lit)
	bestLen := -1
	for u := range units {
		if strings.HasSuffix(strings.ToLower(lit), u) && len(lit) > len(u) && len(u) > bestLen {
			bestLen = len(u)
			unit = u
		}
	}
	if bestLen < 0 {
		return "", "", fmt.Errorf("no recognised unit suffix in %q", lit)
	}
	numPart = lit[:len(lit)-bestLen]
	return numPart, unit, nil
}

// HumanizeBytes renders a byte count using decimal SI units, matching
// spec.md §6's "decimal SI by default" rule.
func HumanizeBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.Bytes(uint64(-n))
	}
	return humanize.Bytes(uint64(n))
}
