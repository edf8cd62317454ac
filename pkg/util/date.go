package util

import (
	"fmt"
	"strconv"
	"time"
)

// SessionClose is the HHMM stamped on daily bars.
const SessionClose = 1500

// ParseYMD converts a YYYYMMDD integer into a date in loc.
func ParseYMD(ymd int, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("20060102", strconv.Itoa(ymd), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %d: %w", ymd, err)
	}
	return t, nil
}

// CombineDateTime builds the timestamp of a bar from its YYYYMMDD date and HHMM time.
func CombineDateTime(ymd, hhmm int, loc *time.Location) (time.Time, error) {
	d, err := ParseYMD(ymd, loc)
	if err != nil {
		return time.Time{}, err
	}
	h, m := hhmm/100, hhmm%100
	if hhmm < 0 || h > 23 || m > 59 {
		return time.Time{}, fmt.Errorf("parse time %d: out of range", hhmm)
	}
	return d.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute), nil
}

// YMD returns t's calendar date as a YYYYMMDD integer.
func YMD(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// CalendarDaysBetween counts calendar days from a's date to b's date, ignoring
// the clock. Both are compared in a's location.
func CalendarDaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// InDateRange reports whether a YYYYMMDD date lies within [from, to].
func InDateRange(ymd, from, to int) bool {
	return ymd >= from && ymd <= to
}
