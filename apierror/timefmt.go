package apierror

import (
	"regexp"
	"time"
)

// Backend validation errors embed raw UTC timestamps when describing
// conflicting time ranges ("busy from 2025-09-30T18:31:00.000Z to ...").
// Those get rewritten to the local timezone before display.
var isoTimestampRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})`)

const displayTimeLayout = "Jan 2, 2006 3:04 PM"

// ReformatTimestamps replaces every embedded ISO-8601 timestamp in msg with
// a locale-friendly local date/time. Surrounding text is preserved verbatim;
// anything that fails to parse is left untouched.
func ReformatTimestamps(msg string) string {
	return isoTimestampRe.ReplaceAllStringFunc(msg, func(raw string) string {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return raw
		}
		return t.Local().Format(displayTimeLayout)
	})
}
