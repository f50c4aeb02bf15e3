package domain

import "time"

// Experiment is one parsed device-testing sheet.
type Experiment struct {
	SourceFile      string     `json:"source_file"`
	Date            *time.Time `json:"date,omitempty"`
	Purpose         string     `json:"purpose,omitempty"`
	ExperimentsDesc string     `json:"experiments_desc,omitempty"`
	Tester          string     `json:"tester,omitempty"`
	Device          string     `json:"device,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	Resume          string     `json:"resume,omitempty"`

	Channels     []ChannelAssignment  `json:"channels,omitempty"`
	Trials       []Trial              `json:"trials,omitempty"`
	Formulations []ReagentFormulation `json:"formulations,omitempty"`
}

// Trial is one row of the Ct summary table plus its per-run detail
// section when present.
type Trial struct {
	Num         int            `json:"num"`
	RunID       string         `json:"run_id"`
	CtFAM       CtValues       `json:"ct_fam"`
	CtROX       CtValues       `json:"ct_rox"`
	Notes       string         `json:"notes,omitempty"`
	SampleSetup string         `json:"sample_setup,omitempty"`
	BatchNumber string         `json:"batch_number,omitempty"`
	RunNotes    string         `json:"run_notes,omitempty"`
	VideoFile   string         `json:"video_file,omitempty"`
	ReportFile  string         `json:"report_file,omitempty"`
	Sequence    *SequenceSetup `json:"sequence,omitempty"`
}

// CtValues holds the five channel Ct readings for one fluorophore.
// nil means no reading ("-" in the sheet); 0 means no amplification.
type CtValues struct {
	Ch0 *float64 `json:"ch0,omitempty"`
	Ch1 *float64 `json:"ch1,omitempty"`
	Ch2 *float64 `json:"ch2,omitempty"`
	Ch3 *float64 `json:"ch3,omitempty"`
	Ch4 *float64 `json:"ch4,omitempty"`
}

// Values returns the channel readings in channel order.
func (c CtValues) Values() []*float64 {
	return []*float64{c.Ch0, c.Ch1, c.Ch2, c.Ch3, c.Ch4}
}

type ChannelAssignment struct {
	Channel     int    `json:"channel"`
	Label       string `json:"label"`
	Fluorophore string `json:"fluorophore"`
}

type SequenceSetup struct {
	ChipType string         `json:"chip_type,omitempty"`
	Steps    []SequenceStep `json:"steps,omitempty"`
}

type SequenceStep struct {
	Name   string `json:"name"`
	TempC  string `json:"temp_c"`
	TimeS  string `json:"time_s"`
	Cycles string `json:"cycles"`
	Offset string `json:"offset"`
}

type ReagentFormulation struct {
	Channel       *int          `json:"channel,omitempty"`
	NumSamples    *int          `json:"num_samples,omitempty"`
	Reagents      []ReagentItem `json:"reagents,omitempty"`
	TotalVolumeUL float64       `json:"total_volume_ul,omitempty"`
}

type ReagentItem struct {
	Name     string  `json:"name"`
	VolumeUL float64 `json:"volume_ul"`
}

// JournalEntry is one dated block from a team journal or meeting doc.
type JournalEntry struct {
	Date       *time.Time `json:"date,omitempty"`
	DateStr    string     `json:"date_str,omitempty"`
	Author     string     `json:"author,omitempty"`
	Content    string     `json:"content"`
	SourceFile string     `json:"source_file,omitempty"`
}

// Goal is one row of the team goals sheet.
type Goal struct {
	ShortName    string `json:"short_name"`
	Requirements string `json:"requirements,omitempty"`
	Points       int    `json:"points,omitempty"`
	SignOff      string `json:"sign_off,omitempty"`
	DueDate      string `json:"due_date,omitempty"`
	Type         string `json:"type,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// WeeklyData bundles everything gathered for one reporting window.
type WeeklyData struct {
	WeekStart   time.Time      `json:"week_start"`
	WeekEnd     time.Time      `json:"week_end"`
	Experiments []Experiment   `json:"experiments"`
	Journal     []JournalEntry `json:"journal"`
	Goals       []Goal         `json:"goals"`
}

// Analysis is the stage-1 output of the weekly pipeline.
type Analysis struct {
	Raw              string               `json:"raw"`
	UpdatedLearnings *CumulativeLearnings `json:"updated_learnings,omitempty"`
}

// Recommendations is the stage-2 output of the weekly pipeline.
type Recommendations struct {
	Raw string `json:"raw"`
}

// CumulativeLearnings accumulates durable knowledge across weekly runs.
type CumulativeLearnings struct {
	KeyLearnings  []string          `json:"key_learnings"`
	OpenQuestions []string          `json:"open_questions"`
	Families      map[string]string `json:"experiment_history_summary"`
	GoalProgress  map[string]string `json:"goal_progress"`
	LastUpdated   string            `json:"last_updated,omitempty"`
	WeeksAnalyzed int               `json:"weeks_analyzed,omitempty"`
}

// HalfYearSummary is the structured result of processing one period.
type HalfYearSummary struct {
	Period      string `json:"period"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Summary     string `json:"summary"`
	Experiments int    `json:"experiments_processed"`
	Documents   int    `json:"documents_processed"`
}

// ProjectArc is the whole-project narrative synthesized from all
// approved period summaries.
type ProjectArc struct {
	GeneratedAt string   `json:"generated_at"`
	Narrative   string   `json:"narrative"`
	Periods     []string `json:"periods"`
}
