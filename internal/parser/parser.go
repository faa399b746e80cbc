// Package parser converts between a single line of annotated markdown
// and a structured Task: checkbox status marker, inline #tags, schedule
// date/time, duration, and priority.
//
// Recognized line shape:
//
//	- [ ] Write report #work ⏳2025-10-06 ⏰14:30 ⏱1h30min !high
//
// The legacy combined form @2025-10-06 14:30 still decodes for
// documents written by older versions; Encode emits the ⏳/⏰ form only.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/dagaz/internal/models"
)

var (
	taskRe = regexp.MustCompile(`^[\s-]*\[([ xX>-])\]\s+(.+)$`)
	tagRe  = regexp.MustCompile(`#([A-Za-z0-9_-]+)`)

	scheduledRe = regexp.MustCompile(`⏳(\d{4}-\d{2}-\d{2})`)
	timeRe      = regexp.MustCompile(`⏰(\d{2}:\d{2})`)
	legacyRe    = regexp.MustCompile(`@(\d{4}-\d{2}-\d{2})(?:\s+(\d{2}:\d{2}))?`)

	// Combined hours+minutes must be tried before the single-unit form,
	// otherwise ⏱1h30min would half-match as ⏱1h.
	durationFullRe = regexp.MustCompile(`⏱(\d+)h(\d+)min`)
	durationRe     = regexp.MustCompile(`⏱(\d+)(min|h)`)

	priorityRe = regexp.MustCompile(`(?i)!(low|medium|high|critical)`)

	spaceRe = regexp.MustCompile(`\s+`)
)

// Decode parses a single document line. The second return value is
// false when the line is not a task line at all; that is an expected
// outcome, not an error.
func Decode(line, documentPath string, lineIndex int) (*models.Task, bool) {
	m := taskRe.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}

	rest := strings.TrimSpace(m[2])
	date, tm := extractDateTime(rest)

	t := &models.Task{
		Text:         cleanText(rest),
		Date:         date,
		Time:         tm,
		Duration:     extractDuration(rest),
		Tags:         extractTags(rest),
		Priority:     extractPriority(rest),
		Status:       statusFor(m[1]),
		DocumentPath: documentPath,
		Line:         lineIndex,
	}
	if documentPath != "" {
		t.ID = models.DocumentTaskID(documentPath, lineIndex)
	}
	return t, true
}

// Encode renders a task back into its single-line form. The output
// always decodes back to the same semantic fields.
func Encode(t *models.Task) string {
	parts := []string{"- [" + markerFor(t.Status) + "]"}
	if t.Text != "" {
		parts = append(parts, t.Text)
	}
	if t.Date != "" {
		parts = append(parts, "⏳"+t.Date)
	}
	if t.Time != "" {
		parts = append(parts, "⏰"+t.Time)
	}
	if t.Duration > 0 {
		parts = append(parts, "⏱"+formatDuration(t.Duration))
	}
	for _, tag := range t.Tags {
		parts = append(parts, "#"+tag)
	}
	if t.Priority != "" {
		parts = append(parts, "!"+string(t.Priority))
	}
	return strings.Join(parts, " ")
}

func statusFor(marker string) models.Status {
	switch strings.ToLower(marker) {
	case "x":
		return models.StatusDone
	case ">":
		return models.StatusInProgress
	case "-":
		return models.StatusCancelled
	default:
		return models.StatusTodo
	}
}

func markerFor(s models.Status) string {
	switch s {
	case models.StatusDone:
		return "x"
	case models.StatusInProgress:
		return ">"
	case models.StatusCancelled:
		return "-"
	default:
		return " "
	}
}

func extractTags(s string) []string {
	matches := tagRe.FindAllStringSubmatch(s, -1)
	var out []string
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// extractDateTime resolves the temporal tokens. The primary ⏳/⏰ pair
// wins over the legacy @ form when a line carries both; the legacy time
// is ignored entirely in that case.
func extractDateTime(s string) (date, tm string) {
	if m := scheduledRe.FindStringSubmatch(s); m != nil {
		date = m[1]
		if tmm := timeRe.FindStringSubmatch(s); tmm != nil {
			tm = tmm[1]
		}
		return date, tm
	}
	if m := legacyRe.FindStringSubmatch(s); m != nil {
		return m[1], m[2]
	}
	return "", ""
}

func extractDuration(s string) int {
	if m := durationFullRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		return h*60 + min
	}
	if m := durationRe.FindStringSubmatch(s); m != nil {
		v, _ := strconv.Atoi(m[1])
		if m[2] == "h" {
			return v * 60
		}
		return v
	}
	return 0
}

func extractPriority(s string) models.Priority {
	if m := priorityRe.FindStringSubmatch(s); m != nil {
		return models.Priority(strings.ToLower(m[1]))
	}
	return ""
}

// formatDuration renders total minutes as h/min tokens: 90 → "1h30min",
// 120 → "2h", 45 → "45min".
func formatDuration(minutes int) string {
	if minutes >= 60 {
		h, m := minutes/60, minutes%60
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh%dmin", h, m)
	}
	return fmt.Sprintf("%dmin", minutes)
}

// cleanText strips every recognized metadata token and collapses the
// remaining whitespace.
func cleanText(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	s = scheduledRe.ReplaceAllString(s, "")
	s = timeRe.ReplaceAllString(s, "")
	s = legacyRe.ReplaceAllString(s, "")
	s = priorityRe.ReplaceAllString(s, "")
	s = durationFullRe.ReplaceAllString(s, "")
	s = durationRe.ReplaceAllString(s, "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
