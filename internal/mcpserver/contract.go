package mcpserver

// TaskFormatContract describes the canonical task line format that
// LLM consumers should follow when writing task lines into documents.
const TaskFormatContract = `# Dagaz Task Line Format Contract

A task is a single Markdown checkbox line inside a vault document.

## Structure

` + "```" + `markdown
- [ ] Task text #tag-one #tag-two ⏳2025-10-06 ⏰14:30 ⏱1h30min !high
` + "```" + `

## Checkbox markers

| Marker  | Status      |
|---------|-------------|
| ` + "`[ ]`" + ` | todo        |
| ` + "`[>]`" + ` | in-progress |
| ` + "`[x]`" + ` | done        |
| ` + "`[-]`" + ` | cancelled   |

Any other marker means the line is NOT a task and is left untouched.

## Fields (all optional except the text)

1. **Scheduled date** ` + "`⏳YYYY-MM-DD`" + ` — the day the task appears on the calendar.
2. **Scheduled time** ` + "`⏰HH:MM`" + ` — 24-hour clock. Only meaningful together with a date.
3. **Duration** ` + "`⏱30min`" + `, ` + "`⏱2h`" + ` or ` + "`⏱1h30min`" + ` — planned length in minutes/hours.
4. **Tags** ` + "`#tag`" + ` — letters, digits, underscore and hyphen.
5. **Priority** ` + "`!low`" + `, ` + "`!medium`" + `, ` + "`!high`" + ` or ` + "`!critical`" + `.

A legacy form ` + "`@YYYY-MM-DD HH:MM`" + ` is still understood when reading, but
new lines MUST use the ` + "`⏳`" + `/` + "`⏰`" + ` markers. When both forms appear on one
line, the ` + "`⏳`" + `/` + "`⏰`" + ` markers win.

## Rules

1. Field order on write is: text, date, time, duration, tags, priority.
2. Everything on the line that is not a recognized field belongs to the task text.
3. Editing a task through Dagaz rewrites only its own line; the rest of
   the document is preserved byte for byte.
4. Encoding is UTF-8.

## Example

` + "```" + `markdown
# Sprint 12

- [ ] Review pull request ⏳2025-10-06 ⏰14:00 ⏱1h #work !high
- [>] Draft release notes ⏳2025-10-07 #work
- [x] Book team lunch #social
- [-] Migrate wiki
` + "```" + `
`
