package analyze

import (
	"fmt"
	"strings"
)

const halfYearSummaryPrompt = `You are building a comprehensive history of a TB diagnostics R&D project.

## Previous Half-Year Summaries
%s

## This Half-Year: Experiment Batch Summaries
%s

## This Half-Year: Journal & Meeting Insights
%s

Generate a comprehensive summary for this half-year (%s, %s to %s) covering:

1. MILESTONES & ACHIEVEMENTS
   - What was accomplished this period
   - Performance benchmarks reached (best LOD, sensitivity, specificity)

2. TECHNICAL EVOLUTION
   - How the device, assays, chemistry, or sequences changed
   - Key decisions made and their rationale (e.g., switching polymerases)
   - New experiment families started

3. KEY FINDINGS
   - Most important scientific discoveries
   - What worked well and what didn't
   - Experiment families that were concluded with results

4. CHALLENGES & FAILURES
   - What was tried and didn't work
   - Recurring problems (hardware, reagent, sample issues)
   - How challenges were resolved (or if they remain open)

5. TEAM & PROCESS
   - Who was working on what
   - Any process improvements or organizational changes

6. STATE AT END OF PERIOD
   - Where things stood at the end of this half-year
   - What the immediate next priorities were

If there is no data for this period, note that and summarize what is known.`

const experimentBatchPrompt = `For each experiment in this batch, extract:
- What was being tested and why
- Key results (best Ct values, LOD achieved, pass/fail)
- What was learned (conclusions from the Resume field)
- Experiment family it belongs to (e.g., "LOD testing", "Preheat sequence optimization")

## Experiment Data
%s`

const journalInsightsPrompt = `Read the following journal/meeting entries from a TB diagnostics R&D project.
Identify and summarize:

1. Major technical decisions and their rationale
2. Hardware/firmware milestones
3. Team changes or organizational shifts
4. Problems encountered and how they were resolved
5. Key findings or breakthroughs mentioned

## Journal Entries
%s`

const projectArcPrompt = `You have summaries from 4 years of a TB diagnostics R&D project.
Synthesize these into a comprehensive project narrative:

1. PROJECT EVOLUTION: How has the device/test evolved from concept to current state?
2. ASSAY JOURNEY: How did the assay strategy evolve? (IS6110, IS1081, rpoB, Human)
3. CHEMISTRY DECISIONS: DsBio HS vs fTaq - what's the history?
4. SAMPLE TYPES: Evolution from liquid controls to tongue swabs to sputum
5. DEVICE GENERATIONS: V1 -> V2 -> V3 progression
6. PERFORMANCE TRAJECTORY: How has LOD, sensitivity, specificity improved over time?
7. FAILED APPROACHES: What dead ends were explored and abandoned?
8. CURRENT STATE OF THE ART: Where does the project stand today?
9. OPEN QUESTIONS: What fundamental questions remain unanswered?
10. INSTITUTIONAL KNOWLEDGE: Key facts any new team member should know

## Half-Year Summaries
%s`

const weeklyAnalysisPrompt = `## Institutional Knowledge (project history)
%s

## This Week's Experiment Data
%s

## Cumulative Learnings (from recent weeks)
%s

## Team Journal Entries (this week)
%s

## Your Analysis Tasks:

1. EXPERIMENT FAMILY CLASSIFICATION
   - For each experiment this week, identify its family/series
   - Classify as: NEW (first time investigating this question), CONTINUATION (same setup as a previous experiment), or MODIFICATION (changed one or more variables from a previous experiment)
   - If a continuation/modification, reference the previous experiment(s)
   - In sparse weeks (1-3 experiments), focus on lineage rather than statistics

2. EXECUTIVE SUMMARY (for leadership)
   - 3-5 bullet points covering the week's most important findings
   - Written for a non-scientist audience (clear, jargon-minimized)

3. EXPERIMENT-BY-EXPERIMENT ANALYSIS (for scientists)
   - For each experiment, evaluate:
     - Did the experiment achieve its stated purpose?
     - What do the Ct values tell us? (ONLY compare within same experiment family)
     - If continuation/modification: how do results compare to previous runs in this series? Did the variable change improve or worsen performance?
     - Quality assessment: consistent replicates? controls amplifying?
   - DO NOT compare Ct values across different experiment families/setups

4. CONTRADICTION & ANOMALY CHECK
   - Flag any results that contradict previous findings or expected behavior
   - Flag unexpected Ct values (unusually high, unusually low, or missing)
   - Flag when scientist Resume conclusions don't match the raw data
   - For each flag, explain why it might have occurred and whether it needs follow-up

5. CROSS-EXPERIMENT INSIGHTS
   - Identify patterns or trends across this week's experiments
   - Note any emerging conclusions about assay/polymerase/sample combinations

6. UPDATED CUMULATIVE LEARNINGS
   - Return an updated version of the cumulative learnings as a JSON block wrapped in ` + "```json ... ```" + ` with these fields:
     - key_learnings: list of strings (add new, keep valid existing ones)
     - open_questions: list of strings (remove answered, add new)
     - experiment_history_summary: dict with experiment family summaries
     - goal_progress: dict with goal status updates`

const constraintExtractionPrompt = `Read the following team journal entries and meeting minutes from this week.
Extract practical constraints for experiment planning:

1. DEVICE STATUS: Which devices (TS-003, TS-005, TS-006, etc.) are:
   - Working normally (used in recent experiments)
   - Having issues (debugging, firmware updates, hardware problems)
   - Being modified or updated

2. SCIENTIST AVAILABILITY: Based on journal entries, who is:
   - Actively running experiments (available for more)
   - Focused on engineering/hardware tasks (likely busy)
   - Mentioned as absent or on other projects

3. CONSUMABLE/REAGENT STATUS:
   - Any reagent batches mentioned as running low or being ordered
   - New reagent batches arriving
   - Consumable issues (cartridge assembly problems, vial issues)

4. BLOCKERS & DEPENDENCIES:
   - Anything the team is waiting on (parts, approvals, external samples)
   - Firmware or software updates needed before certain experiments
   - Equipment being repaired or calibrated

Return as structured JSON wrapped in ` + "```json ... ```" + `.

## Journal Entries
%s`

const recommendationPrompt = `## Team Goals (with deadlines and requirements)
%s

## Analysis Summary (from Stage 1)
%s

## Practical Constraints (auto-extracted from journals)
%s

## Your Recommendation Tasks:

1. GOAL URGENCY ASSESSMENT
   - For each goal, assess: days remaining, estimated %% complete, risk level
   - Flag any goals at risk of being missed

2. STRATEGIC DIRECTION (for PM)
   - What should the team focus on this week and why?
   - Are there any pivots needed based on recent results?
   - Explicitly connect your strategy to specific goals and deadlines

3. SPECIFIC EXPERIMENT RECOMMENDATIONS (3-5 experiments)
   For each recommended experiment:
   - **Title**: Descriptive experiment name
   - **Rationale**: Why this experiment, what question does it answer
   - **Goal alignment**: Which goal(s) it advances and how
   - **Parameters**:
     - Assay(s): which assays to use
     - Polymerase: DsBio HS or fTaq (and why)
     - Sample type: tongue swab, sputum, liquid control, etc.
     - Concentrations: specific copy numbers to test
     - Sequence: which thermocycling protocol (e.g., V6 preheat+touchdown)
     - Device: which device to use (considering availability)
   - **Assigned to**: Suggested scientist (considering availability and expertise)
   - **Expected outcome**: What result would be a success?
   - **Decision criteria**: What will we learn, and what decision does it inform?
   - **Priority**: High / Medium / Low

4. EXPERIMENTS TO AVOID
   - Any experiments that would be redundant given existing data
   - Any experiments that are premature (need prerequisite results first)`

func formatHalfYearPrompt(previous []string, experiments, journal, period, start, end string) string {
	prev := "None (this is the first period)"
	if len(previous) > 0 {
		prev = strings.Join(previous, "\n\n")
	}
	if experiments == "" {
		experiments = "No experiment data found for this period."
	}
	if journal == "" {
		journal = "No journal data found for this period."
	}
	return fmt.Sprintf(halfYearSummaryPrompt, prev, experiments, journal, period, start, end)
}
