package parse

import (
	"fmt"
	"strconv"
	"strings"

	"labline/internal/domain"
)

// GoalsGrid parses the team goals sheet. Goal rows carry a short name
// in column B; requirements can continue over following rows until the
// next short name appears.
func GoalsGrid(rows [][]string) []domain.Goal {
	var goals []domain.Goal
	i := 0
	for i < len(rows) {
		shortName := cell(rows, i, 1)
		lower := strings.ToLower(shortName)

		if shortName == "" || lower == "high" || lower == "low" || lower == "individual % check:" {
			i++
			continue
		}
		if strings.HasPrefix(lower, "active goal") || strings.Contains(shortName, "/") {
			i++
			continue
		}

		reqLines := []string{cell(rows, i, 3)}
		pointsStr := cell(rows, i, 4)
		signOff := cell(rows, i, 5)
		dueDate := cell(rows, i, 6)
		goalType := cell(rows, i, 7)

		j := i + 1
		for j < len(rows) {
			if cell(rows, j, 1) != "" {
				break
			}
			if req := cell(rows, j, 3); req != "" {
				reqLines = append(reqLines, req)
			}
			if pointsStr == "" {
				pointsStr = cell(rows, j, 4)
			}
			if dueDate == "" {
				dueDate = cell(rows, j, 6)
			}
			j++
		}

		if lower == "total" {
			i = j
			continue
		}

		var reqs []string
		for _, l := range reqLines {
			if l != "" {
				reqs = append(reqs, l)
			}
		}
		points, _ := strconv.Atoi(pointsStr)

		goals = append(goals, domain.Goal{
			ShortName:    shortName,
			Requirements: strings.Join(reqs, "\n"),
			Points:       points,
			SignOff:      signOff,
			DueDate:      dueDate,
			Type:         goalType,
		})
		i = j
	}
	return goals
}

// GoalsText renders goals as markdown for model input.
func GoalsText(goals []domain.Goal) string {
	var b strings.Builder
	b.WriteString("## Team Goals\n\n")
	for _, g := range goals {
		fmt.Fprintf(&b, "### %s (%d pts)\n", g.ShortName, g.Points)
		fmt.Fprintf(&b, "**Due**: %s\n", g.DueDate)
		fmt.Fprintf(&b, "**Requirements**: %s\n", g.Requirements)
		if g.Notes != "" {
			fmt.Fprintf(&b, "**Notes**: %s\n", g.Notes)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
