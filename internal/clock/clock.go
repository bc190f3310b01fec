package clock

import (
	"fmt"
	"time"
)

// Date is a civil calendar date with no time-of-day component.
// All deadline arithmetic in the engine works on Dates.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf extracts the civil date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns the date at midnight UTC. Used as the canonical value for
// DATE columns and for day arithmetic.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Sub returns the number of civil days from o to d.
func (d Date) Sub(o Date) int {
	return int(d.Time().Sub(o.Time()).Hours() / 24)
}

func (d Date) Before(o Date) bool { return d.Time().Before(o.Time()) }
func (d Date) After(o Date) bool  { return d.Time().After(o.Time()) }

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d Date) String() string {
	return d.Time().Format("2006-01-02")
}

// Clock supplies "today" in a single configured timezone.
type Clock interface {
	Now() time.Time
	Today() Date
}

type systemClock struct {
	loc *time.Location
}

// NewSystem returns a Clock reading the wall clock in loc.
func NewSystem(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return &systemClock{loc: loc}
}

func (c *systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *systemClock) Today() Date {
	return DateOf(c.Now())
}

// Fixed is a Clock pinned to one instant. Tests advance it explicitly.
type Fixed struct {
	Current time.Time
}

func NewFixed(t time.Time) *Fixed {
	return &Fixed{Current: t}
}

func (c *Fixed) Now() time.Time { return c.Current }

func (c *Fixed) Today() Date { return DateOf(c.Current) }

// Advance moves the fixed clock forward by n civil days.
func (c *Fixed) Advance(n int) {
	c.Current = c.Current.AddDate(0, 0, n)
}
