package value

import (
	"time"

	"github.com/araddon/dateparse"
)

// ParseDate parses a date literal in any of the many spellings the corpus's
// shell-likes accept (RFC3339, "2024-01-02", "Jan 2 2024", …), returning a
// timezone-aware time.Time per spec.md §3's "Date(timestamped, tz-aware)".
// Grounded on github.com/araddon/dateparse, since the shell accepts free-form
// date literals rather than a single fixed layout.
func ParseDate(lit string) (time.Time, error) {
	return dateparse.ParseAny(lit)
}

// FormatDate renders t in the canonical RFC3339 form spec.md §4.2
// (Interpolation) and §6 (nuon) both mandate for dates.
func FormatDate(t time.Time) string {
	return t.Format(time.RFC3339)
}

// ConvertTimezone returns t reinterpreted in loc, grounding the
// `date to-timezone` built-in supplemented from
// original_source/crates/nu-command/src/date/to_timezone.rs.
func ConvertTimezone(t time.Time, loc *time.Location) time.Time {
	return t.In(loc)
}
