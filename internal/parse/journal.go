package parse

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"labline/internal/domain"
)

// Journals use whatever date convention each author prefers, so entry
// boundaries are detected against all known formats.
var datePatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{4})\s*$`), "1/2/2006"},
	{regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s*$`), "2006-01-02"},
	{regexp.MustCompile(`(?i)^((?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4})\s*$`), "January 2 2006"},
	{regexp.MustCompile(`^(\d{1,2}-\d{1,2}-\d{4})\s*$`), "1-2-2006"},
}

var placeholderRe = regexp.MustCompile(`\[([a-z])\]`)
var blankRunsRe = regexp.MustCompile(`\n{3,}`)

// JournalText splits journal content into dated entries. A line that is
// only a date starts a new entry; a short name line right after the date
// is the author. A lone capitalized word after a blank line starts a new
// author block under the same date.
func JournalText(text, sourceName string) []domain.JournalEntry {
	var (
		entries      []domain.JournalEntry
		curDate      *time.Time
		curDateStr   string
		curAuthor    string
		curContent   []string
		collecting   bool
	)

	flush := func() {
		if curDate == nil || (len(curContent) == 0 && curAuthor == "") {
			return
		}
		entries = append(entries, buildEntry(curDate, curDateStr, curAuthor, curContent, sourceName))
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		stripped := strings.TrimSpace(line)

		if d, ok := tryParseDate(stripped); ok {
			flush()
			curDate = &d
			curDateStr = stripped
			curAuthor = ""
			curContent = nil
			collecting = false
			continue
		}

		if curDate != nil && curAuthor == "" && !collecting {
			if stripped == "" {
				continue
			}
			if len(stripped) < 40 && !strings.HasPrefix(stripped, "*") && !strings.HasPrefix(stripped, "-") {
				curAuthor = stripped
				collecting = true
			} else {
				collecting = true
				curContent = append(curContent, line)
			}
			continue
		}

		if curDate != nil && collecting && isAuthorBreak(stripped, curContent) {
			flush()
			curAuthor = stripped
			curContent = nil
			continue
		}

		if curDate != nil {
			collecting = true
			curContent = append(curContent, line)
		}
	}
	flush()
	return entries
}

func isAuthorBreak(stripped string, content []string) bool {
	if stripped == "" || len(stripped) >= 30 {
		return false
	}
	if strings.ContainsAny(stripped, "*-#") && (strings.HasPrefix(stripped, "*") ||
		strings.HasPrefix(stripped, "-") || strings.HasPrefix(stripped, "#")) {
		return false
	}
	if strings.ContainsAny(stripped, "0123456789") {
		return false
	}
	if strings.Contains(stripped, " ") {
		return false
	}
	first := rune(stripped[0])
	if first < 'A' || first > 'Z' {
		return false
	}
	if strings.ToLower(stripped[1:]) != stripped[1:] {
		return false
	}
	if len(content) == 0 || strings.TrimSpace(content[len(content)-1]) != "" {
		return false
	}
	return true
}

func tryParseDate(text string) (time.Time, bool) {
	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		dateStr := strings.ReplaceAll(m[1], ",", "")
		if t, err := time.Parse(p.layout, dateStr); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func buildEntry(date *time.Time, dateStr, author string, content []string, source string) domain.JournalEntry {
	text := strings.Join(content, "\n")
	text = placeholderRe.ReplaceAllString(text, "")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	return domain.JournalEntry{
		Date:       date,
		DateStr:    dateStr,
		Author:     author,
		Content:    strings.TrimSpace(text),
		SourceFile: source,
	}
}

// FilterEntries keeps entries whose date falls inside [start, end].
func FilterEntries(entries []domain.JournalEntry, start, end time.Time) []domain.JournalEntry {
	var out []domain.JournalEntry
	for _, e := range entries {
		if e.Date == nil {
			continue
		}
		if e.Date.Before(start) || e.Date.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// EntriesText renders journal entries as markdown for model input,
// newest first, grouped by date.
func EntriesText(entries []domain.JournalEntry) string {
	if len(entries) == 0 {
		return "No journal entries for this period."
	}

	sorted := make([]domain.JournalEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := sorted[i].Date, sorted[j].Date
		if di == nil {
			return false
		}
		if dj == nil {
			return true
		}
		return di.After(*dj)
	})

	var b strings.Builder
	b.WriteString("## Journal Entries\n\n")
	lastKey := ""
	for _, e := range sorted {
		key := e.DateStr
		if key == "" && e.Date != nil {
			key = e.Date.Format("2006-01-02")
		}
		if key != lastKey {
			fmt.Fprintf(&b, "### %s\n", key)
			lastKey = key
		}
		if e.Author != "" {
			fmt.Fprintf(&b, "**%s**\n", e.Author)
		}
		b.WriteString(e.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
