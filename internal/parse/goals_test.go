package parse

import (
	"strings"
	"testing"
)

func sampleGoals() [][]string {
	return [][]string{
		{},
		{},
		{},
		{"", "Active goal (short)", "", "Active goal -reqs", "Team Points", "Sign off", "Due Date", "Type"},
		{"", "Stampede / Discoplex"},
		{"", "Clinical Verification Study", "", "Complete RSPAW protocol draft", "50", "KH", "2026-03-01", "stretch"},
		{"", "", "", "Submit to review board", "", "", "", ""},
		{"", "R2D2", "", "Retrofit two devices", "50", "", "2026-04-15", "core"},
		{"", "high"},
		{"", "Total", "", "", "100"},
	}
}

func TestGoalsGrid(t *testing.T) {
	goals := GoalsGrid(sampleGoals())
	if len(goals) != 2 {
		t.Fatalf("expected 2 goals, got %d: %+v", len(goals), goals)
	}

	clinical := goals[0]
	if clinical.ShortName != "Clinical Verification Study" {
		t.Fatalf("short name: %q", clinical.ShortName)
	}
	if clinical.Points != 50 {
		t.Fatalf("points: %d", clinical.Points)
	}
	if !strings.Contains(clinical.Requirements, "RSPAW") {
		t.Fatalf("requirements: %q", clinical.Requirements)
	}
	if !strings.Contains(clinical.Requirements, "review board") {
		t.Fatalf("multi-row requirements not joined: %q", clinical.Requirements)
	}
	if clinical.DueDate != "2026-03-01" {
		t.Fatalf("due date: %q", clinical.DueDate)
	}

	r2d2 := goals[1]
	if r2d2.ShortName != "R2D2" || r2d2.Points != 50 || r2d2.Type != "core" {
		t.Fatalf("r2d2: %+v", r2d2)
	}
}

func TestGoalsText(t *testing.T) {
	text := GoalsText(GoalsGrid(sampleGoals()))
	if !strings.Contains(text, "### Clinical Verification Study (50 pts)") {
		t.Fatalf("missing goal heading:\n%s", text)
	}
	if !strings.Contains(text, "**Due**: 2026-04-15") {
		t.Fatalf("missing due date:\n%s", text)
	}
}
