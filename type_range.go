package cryptotax

import (
	"iter"
	"time"
)

// Range represents a range of dates.
type Range struct{ From, To Date }

// NewRange creates a new date range. If 'from' is after 'to', they are swapped.
func NewRange(from, to Date) Range {
	if from.After(to) {
		from, to = to, from
	}
	return Range{From: from, To: to}
}

// Contains return true date is included in the range (boundaries included)
func (r Range) Contains(date Date) bool { return (!date.Before(r.From) && !date.After(r.To)) }

// Len returns the number of days in the range, boundaries included.
func (r Range) Len() int {
	return int(r.To.time().Sub(r.From.time())/(24*time.Hour)) + 1
}

// Days returns an iterator that yields each date within the range, inclusive.
func (r Range) Days() iter.Seq[Date] {
	return func(yield func(Date) bool) {
		for d := r.From; !d.After(r.To); d = d.Add(1) {
			if !yield(d) {
				return
			}
		}
	}
}

// Periods returns an iterator that yields each sequential range of a given
// period 'p' that contains at least one day within the original range 'r'.
func (r Range) Periods(p Period) iter.Seq[Range] {
	return func(yield func(Range) bool) {
		for current := r.From; !current.After(r.To); {
			// Get the full period range containing the current date.
			periodRange := p.Range(current)
			if !yield(periodRange) {
				return
			}
			// Move to the day after the end of the yielded period to start the next iteration.
			current = periodRange.To.Add(1)
		}
	}
}

// Calendar maps instants to the filer's civil dates. Fiscal years run from
// January 1st to December 31st in that calendar.
type Calendar struct {
	loc *time.Location
}

// NewCalendar loads the calendar of an IANA time zone, like "Europe/Rome".
func NewCalendar(tz string) (Calendar, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Calendar{}, err
	}
	return Calendar{loc: loc}, nil
}

// Location returns the calendar's time zone, UTC for the zero Calendar.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// DateOf returns the civil date of t.
func (c Calendar) DateOf(t time.Time) Date { return NewDate(t.In(c.Location()).Date()) }

// YearOf returns the fiscal year t belongs to.
func (c Calendar) YearOf(t time.Time) int { return t.In(c.Location()).Year() }

// StartOfDay returns the first instant of d.
func (c Calendar) StartOfDay(d Date) time.Time {
	return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, c.Location())
}

// EndOfDay returns the last instant of d.
func (c Calendar) EndOfDay(d Date) time.Time {
	return c.StartOfDay(d.Add(1)).Add(-time.Nanosecond)
}

// FiscalYear returns the dates of a fiscal year.
func (c Calendar) FiscalYear(year int) Range {
	return Range{From: NewDate(year, time.January, 1), To: NewDate(year, time.December, 31)}
}
