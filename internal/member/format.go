package member

import (
	"strings"
	"time"
)

// DateLayout is the YYYY-MM-DD layout used for member-facing dates.
const DateLayout = "2006-01-02"

// timeNow is replaced in tests.
var timeNow = time.Now

// NextOpenDate returns the first day, formatted YYYY-MM-DD, on which a member
// may change profile visibility again. lastChange is the previous change;
// nil means today. It returns "" when openModifyDays is 0.
func NextOpenDate(openModifyDays int, lastChange *time.Time) string {
	if openModifyDays == 0 {
		return ""
	}

	base := timeNow()
	if lastChange != nil && !lastChange.IsZero() {
		base = *lastChange
	}
	return base.AddDate(0, 0, openModifyDays).Format(DateLayout)
}

// MaskID hides the middle half of a member ID with '*'. When the visible
// characters split unevenly the prefix keeps the extra one:
// "abcdefgh" → "ab****gh", "abcde" → "ab**e".
func MaskID(id string) string {
	r := []rune(id)
	n := len(r)
	hide := n / 2
	start := (n - hide + 1) / 2
	end := (n - hide) / 2

	var b strings.Builder
	b.Grow(len(id))
	b.WriteString(string(r[:start]))
	b.WriteString(strings.Repeat("*", hide))
	b.WriteString(string(r[n-end:]))
	return b.String()
}

// SplitZip splits a six-digit postal code into its front and back halves.
// Characters past the sixth are ignored; short codes yield short halves.
func SplitZip(code string) (string, string) {
	if code == "" {
		return "", ""
	}
	r := []rune(code)
	return string(r[:min(3, len(r))]), string(r[min(3, len(r)):min(6, len(r))])
}
