package cryptotax

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateFormat is the ISO-8601 layout of a date.
const DateFormat = "2006-01-02"

// lenient layout: "2025-7-1" is accepted.
const readDateFormat = "2006-1-2"

// Date is a civil date, a day of the fiscal calendar. It carries no time zone:
// see Calendar for the instants a day spans.
type Date struct {
	y int
	m time.Month
	d int
}

// NewDate returns the date, normalized: NewDate(2025, 3, 0) is February 28th.
func NewDate(year int, month time.Month, day int) Date {
	y, m, d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Date()
	return Date{y, m, d}
}

// Today returns the current date in the local time zone.
func Today() Date { return NewDate(time.Now().Date()) }

func (d Date) Year() int      { return d.y }
func (d Date) String() string { return d.time().Format(DateFormat) }
func (d Date) IsZero() bool   { return d == Date{} }

// time is midnight UTC of d, a canonical instant used for comparisons only.
func (d Date) time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

func (d Date) Before(x Date) bool { return d.time().Before(x.time()) }
func (d Date) After(x Date) bool  { return d.time().After(x.time()) }

// Add returns d moved by days, negative or not.
func (d Date) Add(days int) Date { return NewDate(d.y, d.m, d.d+days) }

// StartOf returns the first day of the period containing d. Weeks start on
// Monday.
func (d Date) StartOf(p Period) Date {
	switch p {
	case Daily:
		return d
	case Weekly:
		return d.Add(-sinceMonday(d))
	case Monthly:
		return NewDate(d.y, d.m, 1)
	case Quarterly:
		return NewDate(d.y, firstMonthOfQuarter(d.m), 1)
	case Yearly:
		return NewDate(d.y, time.January, 1)
	}
	panic(fmt.Sprintf("unknown period %d", p))
}

// EndOf returns the last day of the period containing d.
func (d Date) EndOf(p Period) Date {
	switch p {
	case Daily:
		return d
	case Weekly:
		return d.Add(6 - sinceMonday(d))
	case Monthly:
		return NewDate(d.y, d.m+1, 0)
	case Quarterly:
		return NewDate(d.y, firstMonthOfQuarter(d.m)+3, 0)
	case Yearly:
		return NewDate(d.y, time.December, 31)
	}
	panic(fmt.Sprintf("unknown period %d", p))
}

func sinceMonday(d Date) int { return (int(d.time().Weekday()) + 6) % 7 }

func firstMonthOfQuarter(m time.Month) time.Month { return (m-1)/3*3 + 1 }

// ParseDate parses "2025-07-01", or the lenient "2025-7-1".
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(readDateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want %s: %w", s, DateFormat, err)
	}
	return NewDate(t.Date()), nil
}

// UnmarshalJSON reads a date string; the empty string is the zero date.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.String())
}
