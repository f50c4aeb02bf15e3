package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"labline/internal/domain"
)

const ledgerName = "REGISTRY.md"

type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) path() string {
	return filepath.Join(s.Dir, ledgerName)
}

// Load reads the ledger. A missing file is an empty registry.
func (s *Store) Load() ([]domain.Period, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return parseLedger(string(data))
}

// Save rewrites the whole ledger file.
func (s *Store) Save(periods []domain.Period) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path(), []byte(renderLedger(periods)), 0o644)
}

// Get returns one period by name.
func (s *Store) Get(name string) (domain.Period, error) {
	periods, err := s.Load()
	if err != nil {
		return domain.Period{}, err
	}
	for _, p := range periods {
		if p.Name == name {
			return p, nil
		}
	}
	return domain.Period{}, fmt.Errorf("%w: %s", ErrUnknownPeriod, name)
}

// SetStatus moves a period to a new status, enforcing forward-only
// transitions. The ledger is re-read first so concurrent edits by an
// operator are not clobbered.
func (s *Store) SetStatus(name string, to domain.Status) error {
	periods, err := s.Load()
	if err != nil {
		return err
	}
	for i := range periods {
		if periods[i].Name != name {
			continue
		}
		if err := EnsureTransition(name, periods[i].Status, to); err != nil {
			return err
		}
		periods[i].Status = to
		return s.Save(periods)
	}
	return fmt.Errorf("%w: %s", ErrUnknownPeriod, name)
}

// Sync registers any configured periods missing from the ledger as
// pending. Existing entries keep their status.
func (s *Store) Sync(configured []domain.Period) ([]domain.Period, error) {
	seen := map[string]bool{}
	for _, p := range configured {
		if seen[p.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePeriod, p.Name)
		}
		seen[p.Name] = true
	}
	existing, err := s.Load()
	if err != nil {
		return nil, err
	}
	byName := map[string]domain.Period{}
	for _, p := range existing {
		byName[p.Name] = p
	}
	var out []domain.Period
	changed := false
	for _, p := range configured {
		if cur, ok := byName[p.Name]; ok {
			cur.SourceID = p.SourceID
			cur.Start = p.Start
			cur.End = p.End
			out = append(out, cur)
			continue
		}
		p.Status = domain.StatusPending
		out = append(out, p)
		changed = true
	}
	if changed || len(existing) != len(out) {
		if err := s.Save(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func renderLedger(periods []domain.Period) string {
	var b strings.Builder
	b.WriteString("# Period Registry\n\n")
	b.WriteString("| Period | Source | Start | End | Status |\n")
	b.WriteString("|--------|--------|-------|-----|--------|\n")
	for _, p := range periods {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			p.Name, p.SourceID,
			p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"),
			p.Status)
	}
	return b.String()
}

func parseLedger(text string) ([]domain.Period, error) {
	var periods []domain.Period
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") {
			continue
		}
		cells := splitRow(line)
		if len(cells) != 5 {
			continue
		}
		if cells[0] == "Period" || strings.HasPrefix(cells[0], "---") || strings.HasPrefix(cells[0], "--") {
			continue
		}
		start, err := time.Parse("2006-01-02", cells[2])
		if err != nil {
			return nil, fmt.Errorf("ledger row %s: bad start date %q", cells[0], cells[2])
		}
		end, err := time.Parse("2006-01-02", cells[3])
		if err != nil {
			return nil, fmt.Errorf("ledger row %s: bad end date %q", cells[0], cells[3])
		}
		// Operators hand-edit this file; accept any capitalization.
		status := domain.Status(strings.ToLower(strings.TrimSpace(cells[4])))
		if !domain.ValidStatus(status) {
			return nil, fmt.Errorf("ledger row %s: unknown status %q", cells[0], cells[4])
		}
		periods = append(periods, domain.Period{
			Name:     cells[0],
			SourceID: cells[1],
			Start:    start,
			End:      end,
			Status:   status,
		})
	}
	return periods, nil
}

func splitRow(line string) []string {
	parts := strings.Split(strings.Trim(line, "|"), "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}
