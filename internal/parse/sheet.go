// Package parse turns semi-structured lab documents into typed records.
// Sheet layouts vary between authors, so the grid parser scans for
// landmark cells instead of assuming fixed positions.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"labline/internal/domain"
)

var (
	filenameDateRe = regexp.MustCompile(`(\d{2})_(\d{2})_(\d{4})`)
	channelNumRe   = regexp.MustCompile(`CH\s*(\d)`)
)

// ExperimentGrid parses one experiment sheet from a grid of cell values.
func ExperimentGrid(rows [][]string, sourceName string) *domain.Experiment {
	exp := &domain.Experiment{SourceFile: sourceName}
	exp.Date = DateFromFilename(sourceName)

	parseHeaderMetadata(rows, exp)

	if ctRow, ok := findCtTableStart(rows); ok {
		parseChannelAssignments(rows, ctRow, exp)
		parseCtTable(rows, ctRow, exp)
	}

	parseTrialDetails(rows, exp)
	parseReagents(rows, exp)
	return exp
}

// DateFromFilename extracts an MM_DD_YYYY date embedded in a file name.
func DateFromFilename(name string) *time.Time {
	m := filenameDateRe.FindStringSubmatch(name)
	if m == nil {
		return nil
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}

func cell(rows [][]string, r, c int) string {
	if r < 0 || r >= len(rows) {
		return ""
	}
	row := rows[r]
	if c < 0 || c >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[c])
}

// parseHeaderMetadata pulls Purpose, Experiments, Tester, Device, Notes
// and Resume from column A of the first ~40 rows. Multiline fields keep
// collecting from column C until the next known label appears.
func parseHeaderMetadata(rows [][]string, exp *domain.Experiment) {
	for i := range rows {
		if i > 40 {
			break
		}
		colA := strings.ToLower(cell(rows, i, 0))
		switch {
		case colA == "purpose":
			exp.Purpose = cell(rows, i, 2)
		case strings.HasPrefix(colA, "experiment"):
			exp.ExperimentsDesc = collectMultiline(rows, i, 6,
				"tester", "device", "notes", "resume", "fam", "rox")
		case strings.HasPrefix(colA, "tester"):
			exp.Tester = cell(rows, i, 2)
		case colA == "device":
			exp.Device = cell(rows, i, 2)
		case strings.HasPrefix(colA, "notes"):
			exp.Notes = collectMultiline(rows, i, 10,
				"resume", "video", "fam", "rox", "device", "tester")
		case strings.HasPrefix(colA, "resume"):
			exp.Resume = collectMultiline(rows, i, 10, "fam", "rox", "notes")
		}
	}
}

func collectMultiline(rows [][]string, start, span int, stopLabels ...string) string {
	lines := []string{cell(rows, start, 2)}
	for j := start + 1; j < len(rows) && j < start+span; j++ {
		nextA := strings.ToLower(cell(rows, j, 0))
		if nextA != "" && hasAnyPrefix(nextA, stopLabels) {
			break
		}
		if v := cell(rows, j, 2); v != "" {
			lines = append(lines, v)
		}
	}
	return strings.Join(lines, "\n")
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// findCtTableStart locates the FAM/ROX Ct summary table header. The
// header row has FAM in column A plus TRIAL or RUN ID somewhere in it.
func findCtTableStart(rows [][]string) (int, bool) {
	for i, row := range rows {
		if strings.ToUpper(cell(rows, i, 0)) != "FAM" {
			continue
		}
		var parts []string
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				parts = append(parts, strings.ToUpper(strings.TrimSpace(c)))
			}
		}
		rowText := strings.Join(parts, " ")
		if strings.Contains(rowText, "TRIAL") || strings.Contains(rowText, "RUN ID") {
			return i, true
		}
	}
	return 0, false
}

func parseChannelAssignments(rows [][]string, ctRow int, exp *domain.Experiment) {
	for offset := 1; offset < 6; offset++ {
		r := ctRow + offset
		colA := strings.ToUpper(cell(rows, r, 0))
		if !strings.HasPrefix(colA, "CH") {
			continue
		}
		if num, ok := channelNum(colA); ok {
			exp.Channels = append(exp.Channels, domain.ChannelAssignment{
				Channel:     num,
				Label:       cell(rows, r, 1),
				Fluorophore: "FAM",
			})
		}
	}

	for offset := 5; offset < 12; offset++ {
		r := ctRow + offset
		if strings.ToUpper(cell(rows, r, 0)) != "ROX" {
			continue
		}
		for roxOffset := 1; roxOffset < 6; roxOffset++ {
			rr := r + roxOffset
			roxA := strings.ToUpper(cell(rows, rr, 0))
			if !strings.HasPrefix(roxA, "CH") {
				continue
			}
			if num, ok := channelNum(roxA); ok {
				exp.Channels = append(exp.Channels, domain.ChannelAssignment{
					Channel:     num,
					Label:       cell(rows, rr, 1),
					Fluorophore: "ROX",
				})
			}
		}
		break
	}
}

func channelNum(text string) (int, bool) {
	m := channelNumRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

// findCtColumns locates the FAM and ROX Ct column groups from the sub
// header row under the table start. Falls back to the common layout when
// detection fails.
func findCtColumns(rows [][]string, ctRow int) (famStart, roxStart int) {
	famStart, roxStart = -1, -1
	headerRow := ctRow + 1
	if headerRow >= len(rows) {
		return 6, 11
	}

	var ctPositions []int
	for c, val := range rows[headerRow] {
		v := strings.ToLower(strings.TrimSpace(val))
		if strings.Contains(v, "ct") && (strings.Contains(v, "ch0") || strings.Contains(v, "ch 0")) {
			ctPositions = append(ctPositions, c)
		}
	}
	switch {
	case len(ctPositions) >= 2:
		famStart, roxStart = ctPositions[0], ctPositions[1]
	case len(ctPositions) == 1:
		famStart = ctPositions[0]
		roxStart = famStart + 5
	}

	if famStart < 0 {
		for c, val := range rows[headerRow] {
			if strings.Contains(strings.ToLower(val), "ct") {
				if famStart < 0 {
					famStart = c
				} else {
					roxStart = c
					break
				}
			}
		}
	}
	if famStart < 0 {
		famStart = 6
	}
	if roxStart < 0 {
		roxStart = famStart + 5
	}
	return famStart, roxStart
}

// parseCtValue returns nil for "-" or empty, the float otherwise. A
// zero means no amplification and is kept distinct from missing.
func parseCtValue(val string) *float64 {
	val = strings.TrimSpace(val)
	if val == "" || val == "-" {
		return nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseCtTable(rows [][]string, ctRow int, exp *domain.Experiment) {
	famStart, roxStart := findCtColumns(rows, ctRow)

	trialCol, runIDCol, notesCol := -1, -1, -1
	if ctRow < len(rows) {
		for c, val := range rows[ctRow] {
			switch v := strings.ToUpper(strings.TrimSpace(val)); {
			case v == "TRIAL":
				trialCol = c
			case strings.Contains(v, "RUN ID") || strings.Contains(v, "RUN_ID"):
				runIDCol = c
			case v == "NOTES":
				notesCol = c
			}
		}
	}
	if trialCol < 0 {
		trialCol = 2
	}
	if runIDCol < 0 {
		runIDCol = 3
	}

	for r := ctRow + 2; r < len(rows) && r < ctRow+15; r++ {
		trialStr := cell(rows, r, trialCol)
		runID := cell(rows, r, runIDCol)
		if trialStr == "" && runID == "" {
			continue
		}
		colA := strings.ToUpper(cell(rows, r, 0))
		if (colA == "ROX" || colA == "") && runID == "" {
			continue
		}
		if runID == "" {
			continue
		}

		trialNum, _ := strconv.Atoi(trialStr)

		trial := domain.Trial{
			Num:   trialNum,
			RunID: runID,
			CtFAM: ctGroup(rows, r, famStart),
			CtROX: ctGroup(rows, r, roxStart),
		}
		if notesCol >= 0 {
			trial.Notes = cell(rows, r, notesCol)
		}
		exp.Trials = append(exp.Trials, trial)
	}
}

func ctGroup(rows [][]string, r, start int) domain.CtValues {
	return domain.CtValues{
		Ch0: parseCtValue(cell(rows, r, start)),
		Ch1: parseCtValue(cell(rows, r, start+1)),
		Ch2: parseCtValue(cell(rows, r, start+2)),
		Ch3: parseCtValue(cell(rows, r, start+3)),
		Ch4: parseCtValue(cell(rows, r, start+4)),
	}
}

// parseTrialDetails walks the RUN ID: blocks below the Ct table and
// attaches sample setup, batch, notes, files and sequence to the
// matching trial.
func parseTrialDetails(rows [][]string, exp *domain.Experiment) {
	type detailStart struct {
		row   int
		runID string
	}
	var starts []detailStart
	for i := range rows {
		colA := strings.ToUpper(cell(rows, i, 0))
		if strings.HasPrefix(colA, "RUN ID:") {
			starts = append(starts, detailStart{row: i, runID: cell(rows, i, 2)})
		}
	}

	for idx, s := range starts {
		endRow := len(rows)
		if idx+1 < len(starts) {
			endRow = starts[idx+1].row
		} else if s.row+100 < endRow {
			endRow = s.row + 100
		}

		var trial *domain.Trial
		for t := range exp.Trials {
			if exp.Trials[t].RunID == s.runID {
				trial = &exp.Trials[t]
				break
			}
		}
		if trial == nil {
			continue
		}

		for r := s.row + 1; r < endRow; r++ {
			colA := strings.ToLower(cell(rows, r, 0))
			switch {
			case strings.HasPrefix(colA, "sample setup"):
				trial.SampleSetup = cell(rows, r, 2)
			case strings.HasPrefix(colA, "batch number"):
				trial.BatchNumber = cell(rows, r, 2)
			case strings.Contains(colA, "notes") && !strings.HasPrefix(colA, "run"):
				if trial.RunNotes == "" {
					trial.RunNotes = cell(rows, r, 2)
				}
			case strings.HasPrefix(colA, "video"):
				trial.VideoFile = cell(rows, r, 2)
			case strings.HasPrefix(colA, "report"):
				trial.ReportFile = cell(rows, r, 2)
			case strings.HasPrefix(colA, "sequence setup"):
				trial.Sequence = parseSequenceSection(rows, r)
			}
		}
	}
}

func parseSequenceSection(rows [][]string, startRow int) *domain.SequenceSetup {
	seq := &domain.SequenceSetup{ChipType: cell(rows, startRow, 2)}
	headerRow := startRow + 1
	if headerRow >= len(rows) {
		return seq
	}

	currentStep := ""
	for r := headerRow + 1; r < len(rows) && r < startRow+15; r++ {
		name := cell(rows, r, 2)
		temp := cell(rows, r, 3)
		if name == "" && temp == "" {
			break
		}
		if name != "" {
			currentStep = name
		}
		if temp != "" {
			seq.Steps = append(seq.Steps, domain.SequenceStep{
				Name:   currentStep,
				TempC:  temp,
				TimeS:  cell(rows, r, 4),
				Cycles: cell(rows, r, 5),
				Offset: cell(rows, r, 6),
			})
		}
	}
	return seq
}

// parseReagents finds the reagent block in the header area. Two layouts
// exist: one shared list, or five per-channel columns side by side.
func parseReagents(rows [][]string, exp *domain.Experiment) {
	reagentRow, reagentCol := -1, -1
	for i := 0; i < len(rows) && i < 5; i++ {
		for c := range rows[i] {
			val := strings.ToLower(strings.TrimSpace(rows[i][c]))
			if strings.HasPrefix(val, "reagent") {
				reagentRow, reagentCol = i, c
				break
			}
		}
		if reagentRow >= 0 {
			break
		}
	}
	if reagentRow < 0 {
		for i := 0; i < len(rows) && i < 5; i++ {
			for c := range rows[i] {
				val := strings.ToLower(strings.TrimSpace(rows[i][c]))
				if strings.Contains(val, "number of samples") || strings.Contains(val, "master mix") {
					reagentRow, reagentCol = i, c
					break
				}
			}
			if reagentRow >= 0 {
				break
			}
		}
	}
	if reagentRow < 0 {
		return
	}

	var parts []string
	for _, c := range rows[reagentRow] {
		if strings.TrimSpace(c) != "" {
			parts = append(parts, strings.ToLower(strings.TrimSpace(c)))
		}
	}
	headerText := strings.Join(parts, " ")
	if strings.Contains(headerText, "channel 0") || strings.Contains(headerText, "channel 1") {
		parsePerChannelReagents(rows, reagentRow, reagentCol, exp)
	} else {
		parseSingleReagentList(rows, reagentRow, reagentCol, exp)
	}
}

func parseSingleReagentList(rows [][]string, startRow, startCol int, exp *domain.Experiment) {
	var formulation domain.ReagentFormulation

	volCol := -1
	for i := startRow; i < len(rows) && i < startRow+5; i++ {
		for c := startCol; c < len(rows[i]) && c < startCol+5; c++ {
			val := strings.ToLower(strings.TrimSpace(rows[i][c]))
			if strings.Contains(val, "volume") || strings.Contains(val, "ul") {
				volCol = c
				break
			}
		}
		if volCol >= 0 {
			break
		}
	}
	if volCol < 0 {
		volCol = startCol + 3
	}
	nameCol := startCol
	if startCol+1 < volCol {
		nameCol = startCol + 1
	}

	for r := startRow + 2; r < len(rows) && r < startRow+25; r++ {
		name := cell(rows, r, nameCol)
		if name == "" {
			name = cell(rows, r, startCol)
		}
		volStr := cell(rows, r, volCol)
		if name == "" && volStr == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(name), "total") {
			formulation.TotalVolumeUL, _ = strconv.ParseFloat(volStr, 64)
			break
		}
		vol, _ := strconv.ParseFloat(volStr, 64)
		lower := strings.ToLower(name)
		if name != "" && lower != "reagent" && lower != "reagent description" {
			formulation.Reagents = append(formulation.Reagents, domain.ReagentItem{Name: name, VolumeUL: vol})
		}
	}

	if len(formulation.Reagents) > 0 {
		exp.Formulations = append(exp.Formulations, formulation)
	}
}

func parsePerChannelReagents(rows [][]string, startRow, startCol int, exp *domain.Experiment) {
	if startRow >= len(rows) {
		return
	}
	var channelStarts []int
	limit := len(rows[startRow])
	if startCol+30 < limit {
		limit = startCol + 30
	}
	for c := startCol; c < limit; c++ {
		val := strings.ToLower(cell(rows, startRow, c))
		if strings.HasPrefix(val, "channel") || strings.Contains(val, "number of samples") {
			channelStarts = append(channelStarts, c)
		}
	}
	if len(channelStarts) == 0 {
		return
	}

	for chIdx, chCol := range channelStarts {
		ch := chIdx
		formulation := domain.ReagentFormulation{Channel: &ch}
		if n, err := strconv.Atoi(cell(rows, startRow+1, chCol+1)); err == nil {
			formulation.NumSamples = &n
		}
		for r := startRow + 3; r < len(rows) && r < startRow+25; r++ {
			name := cell(rows, r, chCol)
			volStr := cell(rows, r, chCol+1)
			if name == "" && volStr == "" {
				continue
			}
			if strings.HasPrefix(strings.ToLower(name), "total") {
				formulation.TotalVolumeUL, _ = strconv.ParseFloat(volStr, 64)
				break
			}
			vol, _ := strconv.ParseFloat(volStr, 64)
			if name != "" {
				formulation.Reagents = append(formulation.Reagents, domain.ReagentItem{Name: name, VolumeUL: vol})
			}
		}
		if len(formulation.Reagents) > 0 {
			exp.Formulations = append(exp.Formulations, formulation)
		}
	}
}

// ExperimentText renders an experiment as markdown for model input.
func ExperimentText(exp *domain.Experiment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### Experiment: %s\n", exp.SourceFile)
	if exp.Date != nil {
		fmt.Fprintf(&b, "**Date**: %s\n", exp.Date.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "**Purpose**: %s\n", exp.Purpose)
	if exp.ExperimentsDesc != "" {
		fmt.Fprintf(&b, "**Experiments**: %s\n", exp.ExperimentsDesc)
	}
	fmt.Fprintf(&b, "**Tester**: %s\n", exp.Tester)
	fmt.Fprintf(&b, "**Device**: %s\n", exp.Device)
	if exp.Notes != "" {
		fmt.Fprintf(&b, "**Notes**: %s\n", exp.Notes)
	}

	if len(exp.Channels) > 0 {
		b.WriteString("\n**Channel Assignments**:\n")
		for _, ca := range exp.Channels {
			if ca.Label != "" {
				fmt.Fprintf(&b, "  - %s CH %d: %s\n", ca.Fluorophore, ca.Channel, ca.Label)
			}
		}
	}

	if len(exp.Trials) > 0 {
		b.WriteString("\n**Ct Values**:\n")
		b.WriteString("| Trial | Run ID | FAM Ch0 | FAM Ch1 | FAM Ch2 | FAM Ch3 | FAM Ch4 | " +
			"ROX Ch0 | ROX Ch1 | ROX Ch2 | ROX Ch3 | ROX Ch4 | Notes |\n")
		b.WriteString("|" + strings.Repeat("---|", 13) + "\n")
		for _, t := range exp.Trials {
			fmt.Fprintf(&b, "| %d | %s |", t.Num, t.RunID)
			for _, v := range t.CtFAM.Values() {
				fmt.Fprintf(&b, " %s |", fmtCt(v))
			}
			for _, v := range t.CtROX.Values() {
				fmt.Fprintf(&b, " %s |", fmtCt(v))
			}
			fmt.Fprintf(&b, " %s |\n", t.Notes)
		}
	}

	for _, t := range exp.Trials {
		if t.Sequence != nil && len(t.Sequence.Steps) > 0 {
			fmt.Fprintf(&b, "\n**Sequence Setup** (%s):\n", t.Sequence.ChipType)
			for _, step := range t.Sequence.Steps {
				fmt.Fprintf(&b, "  - %s: %sC, %ss, %s cycles, offset %s\n",
					step.Name, step.TempC, step.TimeS, step.Cycles, step.Offset)
			}
			break
		}
	}

	if exp.Resume != "" {
		fmt.Fprintf(&b, "\n**Resume/Conclusions**: %s\n", exp.Resume)
	}
	return strings.TrimRight(b.String(), "\n")
}

func fmtCt(v *float64) string {
	if v == nil {
		return "-"
	}
	if *v == 0 {
		return "0.00"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
