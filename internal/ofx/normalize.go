package ofx

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseDate parses an OFX datetime: YYYYMMDD[HHMM[SS[.XXX]]][[offset[:TZ]]].
// Without a bracketed offset the value is read in loc (time.Local if nil).
// A missing time of day means midnight.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	raw := s
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.Local
	}

	if open := strings.IndexByte(s, '['); open >= 0 {
		if !strings.HasSuffix(s, "]") {
			return time.Time{}, invalidDate(raw, "unterminated zone")
		}
		zone, ok := parseZone(s[open+1 : len(s)-1])
		if !ok {
			return time.Time{}, invalidDate(raw, "bad zone")
		}
		loc = zone
		s = strings.TrimSpace(s[:open])
	}

	var nsec int
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		frac := s[dot+1:]
		s = s[:dot]
		if len(s) != 14 || frac == "" || len(frac) > 9 || !isDigits(frac) {
			return time.Time{}, invalidDate(raw, "bad fractional seconds")
		}
		nsec, _ = strconv.Atoi(frac + strings.Repeat("0", 9-len(frac)))
	}

	if !isDigits(s) || (len(s) != 8 && len(s) != 12 && len(s) != 14) {
		return time.Time{}, invalidDate(raw, "expected 8, 12 or 14 digits")
	}

	field := func(from, to int) int {
		if to > len(s) {
			return 0
		}
		n, _ := strconv.Atoi(s[from:to])
		return n
	}
	year, month, day := field(0, 4), field(4, 6), field(6, 8)
	hour, minute, sec := field(8, 10), field(10, 12), field(12, 14)

	if month < 1 || month > 12 || day < 1 || day > daysIn(time.Month(month), year) ||
		hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, invalidDate(raw, "field out of range")
	}

	return time.Date(year, time.Month(month), day, hour, minute, sec, nsec, loc), nil
}

// ParseOffset returns the zone in a date's bracketed suffix, if it has one.
func ParseOffset(s string) (*time.Location, bool) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '[')
	if open < 0 || !strings.HasSuffix(s, "]") {
		return nil, false
	}
	return parseZone(s[open+1 : len(s)-1])
}

// parseZone reads "-5:EST", "0:GMT", "+5.30:IST" or "5.5". A two-digit
// fraction below 60 is minutes; any other fraction is decimal hours.
func parseZone(s string) (*time.Location, bool) {
	offset, name, _ := strings.Cut(s, ":")
	offset = strings.TrimSpace(offset)
	name = strings.TrimSpace(name)

	sign := 1
	switch {
	case strings.HasPrefix(offset, "-"):
		sign, offset = -1, offset[1:]
	case strings.HasPrefix(offset, "+"):
		offset = offset[1:]
	}

	hoursPart, fracPart, hasFrac := strings.Cut(offset, ".")
	if !isDigits(hoursPart) || (hasFrac && !isDigits(fracPart)) {
		return nil, false
	}
	hours, _ := strconv.Atoi(hoursPart)
	if hours > 14 {
		return nil, false
	}

	seconds := hours * 3600
	if hasFrac {
		if n, _ := strconv.Atoi(fracPart); len(fracPart) == 2 && n < 60 {
			seconds += n * 60
		} else {
			f, _ := strconv.ParseFloat("0."+fracPart, 64)
			seconds += int(f * 3600)
		}
	}

	if name == "" {
		name = "UTC" + offsetLabel(sign, seconds)
	}
	return time.FixedZone(name, sign*seconds), true
}

func offsetLabel(sign, seconds int) string {
	if seconds == 0 {
		return ""
	}
	prefix := "+"
	if sign < 0 {
		prefix = "-"
	}
	label := prefix + strconv.Itoa(seconds/3600)
	if m := seconds % 3600 / 60; m != 0 {
		label += ":" + strconv.Itoa(m)
	}
	return label
}

// ParseAmount parses a signed decimal amount exactly. A lone ',' is
// accepted as the decimal separator.
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(s)

	sign := ""
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		if s[0] == '-' {
			sign = "-"
		}
		s = s[1:]
	}

	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") || strings.Count(s, ",") > 1 {
			return decimal.Decimal{}, invalidAmount(raw)
		}
		s = strings.Replace(s, ",", ".", 1)
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart+fracPart == "" || !isDigits(intPart+fracPart) {
		return decimal.Decimal{}, invalidAmount(raw)
	}
	if intPart == "" {
		intPart = "0"
	}
	if fracPart == "" {
		fracPart = "0"
	}

	d, err := decimal.NewFromString(sign + intPart + "." + fracPart)
	if err != nil {
		return decimal.Decimal{}, &Error{Kind: ErrInvalidAmount, Value: raw, Err: err}
	}
	return d, nil
}

func invalidDate(value, reason string) error {
	return &Error{Kind: ErrInvalidDate, Value: value, Err: errors.New(reason)}
}

func invalidAmount(value string) error {
	return &Error{Kind: ErrInvalidAmount, Value: value}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
