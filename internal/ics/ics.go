// Package ics parses iCalendar exports and converts their events into
// calendar-only tasks, expanding recurring events into concrete
// occurrences.
//
// Only the fields the calendar needs are read: SUMMARY, DESCRIPTION,
// DTSTART, DTEND, UID, RRULE. Real-world exports are imperfect, so
// blocks missing a required field are dropped silently rather than
// failing the whole import.
package ics

import (
	"strconv"
	"strings"
	"time"

	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/recurrence"
)

const (
	dateLayout     = "20060102"
	dateTimeLayout = "20060102T150405"
)

// Event is one accepted VEVENT block, provider-neutral.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	UID         string
	Rule        *models.RecurrenceRule
}

// Parse extracts events from iCalendar content. Folded continuation
// lines (leading space or tab) are rejoined before field parsing. A
// block is accepted only when SUMMARY, DTSTART, DTEND, and UID are all
// present.
func Parse(content string) []Event {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	var events []Event
	var cur *Event
	var hasStart, hasEnd bool

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		for i+1 < len(lines) && (strings.HasPrefix(lines[i+1], " ") || strings.HasPrefix(lines[i+1], "\t")) {
			i++
			line += strings.TrimSpace(lines[i])
		}

		switch {
		case line == "BEGIN:VEVENT":
			cur = &Event{}
			hasStart, hasEnd = false, false

		case line == "END:VEVENT":
			if cur != nil && cur.Summary != "" && cur.UID != "" && hasStart && hasEnd {
				events = append(events, *cur)
			}
			cur = nil

		case cur != nil:
			colon := strings.Index(line, ":")
			if colon < 0 {
				continue
			}
			keyPart, value := line[:colon], line[colon+1:]
			key, _, _ := strings.Cut(keyPart, ";")

			switch key {
			case "SUMMARY":
				cur.Summary = unescapeText(value)
			case "DESCRIPTION":
				cur.Description = unescapeText(value)
			case "DTSTART":
				if t, ok := parseDateTime(value, keyPart); ok {
					cur.Start = t
					hasStart = true
				}
			case "DTEND":
				if t, ok := parseDateTime(value, keyPart); ok {
					cur.End = t
					hasEnd = true
				}
			case "UID":
				cur.UID = value
			case "RRULE":
				cur.Rule = parseRRule(value)
			}
		}
	}
	return events
}

// parseDateTime handles the two iCalendar value forms: an 8-digit
// date-only value (midnight, all-day semantics) and a full timestamp.
// A trailing Z zone marker is stripped, not converted: interchange
// times are treated as local wall-clock values.
func parseDateTime(value, keyPart string) (time.Time, bool) {
	v := strings.TrimSuffix(value, "Z")
	if strings.Contains(keyPart, "VALUE=DATE") || len(v) == 8 {
		t, err := time.ParseInLocation(dateLayout, v, time.Local)
		return t, err == nil
	}
	if len(v) >= len(dateTimeLayout) {
		t, err := time.ParseInLocation(dateTimeLayout, v[:len(dateTimeLayout)], time.Local)
		return t, err == nil
	}
	// Seconds occasionally omitted in the wild.
	if len(v) == 13 {
		t, err := time.ParseInLocation("20060102T1504", v, time.Local)
		return t, err == nil
	}
	return time.Time{}, false
}

// parseRRule reads the supported RRULE subset, e.g.
// FREQ=WEEKLY;BYDAY=MO,WE,FR;COUNT=10. Returns nil when no valid FREQ
// is present.
func parseRRule(value string) *models.RecurrenceRule {
	rule := &models.RecurrenceRule{}
	for _, part := range strings.Split(value, ";") {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch key {
		case "FREQ":
			switch models.Frequency(val) {
			case models.FreqDaily, models.FreqWeekly, models.FreqMonthly, models.FreqYearly:
				rule.Freq = models.Frequency(val)
			}
		case "INTERVAL":
			rule.Interval, _ = strconv.Atoi(val)
		case "COUNT":
			rule.Count, _ = strconv.Atoi(val)
		case "UNTIL":
			if t, ok := parseDateTime(val, "UNTIL"); ok {
				rule.Until = t
			}
		case "BYDAY":
			rule.ByDay = strings.Split(val, ",")
		case "BYMONTHDAY":
			for _, d := range strings.Split(val, ",") {
				if n, err := strconv.Atoi(d); err == nil {
					rule.ByMonthDay = append(rule.ByMonthDay, n)
				}
			}
		}
	}
	if rule.Freq == "" {
		return nil
	}
	return rule
}

// unescapeText reverses iCalendar text escaping for \n \, \; \\.
func unescapeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n', 'N':
				b.WriteByte('\n')
				i++
				continue
			case ',', ';', '\\':
				b.WriteByte(s[i+1])
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// ToTasks converts events to calendar-only tasks, expanding recurring
// ones first. An occurrence that starts at midnight and spans a full
// day or more becomes an all-day task (no time, no duration).
func ToTasks(events []Event) []*models.Task {
	var out []*models.Task
	for _, ev := range events {
		occs := []recurrence.Occurrence{{UID: ev.UID, Start: ev.Start, End: ev.End}}
		if ev.Rule != nil {
			occs = recurrence.Expand(occs[0], *ev.Rule)
		}
		for _, occ := range occs {
			span := int(occ.End.Sub(occ.Start).Minutes())
			allDay := occ.Start.Hour() == 0 && occ.Start.Minute() == 0 &&
				occ.Start.Second() == 0 && span >= 24*60

			task := &models.Task{
				ID:           "ics-" + occ.UID,
				Text:         ev.Summary,
				Date:         occ.Start.Format("2006-01-02"),
				Status:       models.StatusTodo,
				CalendarOnly: true,
				ICSUID:       occ.UID,
			}
			if !allDay {
				task.Time = occ.Start.Format("15:04")
				task.Duration = span
			}
			if ev.Rule != nil {
				task.Tags = []string{"recurring"}
			}
			out = append(out, task)
		}
	}
	return out
}

// SplitDuplicates partitions incoming tasks into those whose exact
// ICS UID already exists in the stored collection and those that are
// net new.
func SplitDuplicates(incoming, existing []*models.Task) (unique, duplicates []*models.Task) {
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		if t.ICSUID != "" {
			seen[t.ICSUID] = true
		}
	}
	for _, t := range incoming {
		if t.ICSUID != "" && seen[t.ICSUID] {
			duplicates = append(duplicates, t)
		} else {
			unique = append(unique, t)
		}
	}
	return unique, duplicates
}

// ExistingOccurrences returns stored tasks belonging to any recurring
// series present in the incoming batch, matched on the UID's leading
// segment before the occurrence-counter suffix.
func ExistingOccurrences(incoming, existing []*models.Task) []*models.Task {
	bases := make(map[string]bool, len(incoming))
	for _, t := range incoming {
		if t.ICSUID != "" {
			bases[baseUID(t.ICSUID)] = true
		}
	}
	var out []*models.Task
	for _, t := range existing {
		if t.ICSUID != "" && bases[baseUID(t.ICSUID)] {
			out = append(out, t)
		}
	}
	return out
}

func baseUID(uid string) string {
	base, _, _ := strings.Cut(uid, "-")
	return base
}
