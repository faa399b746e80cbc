// Package recurrence expands a compact repeating-event rule into a
// bounded, ordered sequence of concrete occurrences.
package recurrence

import (
	"fmt"
	"time"

	"github.com/starford/dagaz/internal/models"
)

const (
	// maxOccurrences is the hard safety ceiling applied regardless of
	// the rule's own bounds.
	maxOccurrences = 1000

	// maxIterations bounds the day-by-day candidate scan so a malformed
	// rule (huge interval, weekday set that never matches) terminates.
	maxIterations = 1 << 20

	// defaultHorizonDays bounds expansion when the rule carries neither
	// COUNT nor UNTIL.
	defaultHorizonDays = 365
)

var weekdays = map[string]time.Weekday{
	"SU": time.Sunday, "MO": time.Monday, "TU": time.Tuesday,
	"WE": time.Wednesday, "TH": time.Thursday, "FR": time.Friday,
	"SA": time.Saturday,
}

// Occurrence is one concrete instance of a recurring event.
type Occurrence struct {
	UID   string
	Start time.Time
	End   time.Time
}

// Expand produces the occurrences of rule anchored at base, in
// non-decreasing start order. Each occurrence keeps the base duration
// and gets a "<uid>-<n>" identifier with a zero-based counter.
//
// Expansion never fails: malformed or unbounded rules degrade to the
// default horizon and the hard occurrence ceiling.
func Expand(base Occurrence, rule models.RecurrenceRule) []Occurrence {
	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}
	duration := base.End.Sub(base.Start)

	limit := maxOccurrences
	if rule.Count > 0 && rule.Count < limit {
		limit = rule.Count
	}
	until := rule.Until
	if rule.Count == 0 && until.IsZero() {
		until = base.Start.AddDate(0, 0, defaultHorizonDays)
	}

	byDay := weekdaySet(rule.ByDay)
	byMonthDay := make(map[int]bool, len(rule.ByMonthDay))
	for _, d := range rule.ByMonthDay {
		byMonthDay[d] = true
	}

	var out []Occurrence
	cur := base.Start
	for iter := 0; len(out) < limit && iter < maxIterations; iter++ {
		if !until.IsZero() && cur.After(until) {
			break
		}

		include := false
		switch rule.Freq {
		case models.FreqDaily:
			// Candidate scan already advances by interval days.
			include = true
		case models.FreqWeekly:
			if len(byDay) > 0 {
				include = byDay[cur.Weekday()] && weeksSince(base.Start, cur)%interval == 0
			} else {
				include = true
			}
		case models.FreqMonthly:
			if len(byMonthDay) > 0 {
				include = byMonthDay[cur.Day()]
			} else {
				include = cur.Day() == base.Start.Day()
			}
		case models.FreqYearly:
			include = cur.Month() == base.Start.Month() && cur.Day() == base.Start.Day()
		}

		if include {
			out = append(out, Occurrence{
				UID:   fmt.Sprintf("%s-%d", base.UID, len(out)),
				Start: cur,
				End:   cur.Add(duration),
			})
		}

		// Constrained weekly/monthly variants scan day by day so that
		// several matching days inside one period are all enumerated;
		// unconstrained variants jump by the full period.
		switch rule.Freq {
		case models.FreqDaily:
			cur = cur.AddDate(0, 0, interval)
		case models.FreqWeekly:
			if len(byDay) > 0 {
				cur = cur.AddDate(0, 0, 1)
			} else {
				cur = cur.AddDate(0, 0, 7*interval)
			}
		case models.FreqMonthly:
			if len(byMonthDay) > 0 {
				cur = cur.AddDate(0, 0, 1)
			} else {
				cur = cur.AddDate(0, interval, 0)
			}
		case models.FreqYearly:
			cur = cur.AddDate(interval, 0, 0)
		default:
			// Unknown frequency: nothing can match, stop immediately.
			return out
		}
	}
	return out
}

// weekdaySet resolves BYDAY tokens, dropping unknown ones. A list with
// no valid token degrades to nil, i.e. the unconstrained weekly case.
func weekdaySet(tokens []string) map[time.Weekday]bool {
	var set map[time.Weekday]bool
	for _, tok := range tokens {
		if wd, ok := weekdays[tok]; ok {
			if set == nil {
				set = make(map[time.Weekday]bool, len(tokens))
			}
			set[wd] = true
		}
	}
	return set
}

// weeksSince counts whole 7-day blocks between the base start and the
// candidate, defining the weekly cycle boundary for interval checks.
func weeksSince(base, cur time.Time) int {
	days := int(cur.Sub(base).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days / 7
}
