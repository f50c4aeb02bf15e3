package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models labline.yml.
type Config struct {
	Project struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"project"`
	Source struct {
		// Kind selects the document store implementation. "fs" reads a
		// local mirror directory; anything else must be wired by the
		// caller.
		Kind            string `yaml:"kind"`
		Root            string `yaml:"root"`
		FolderID        string `yaml:"folder_id"`
		ReportsFolderID string `yaml:"reports_folder_id"`
	} `yaml:"source"`
	Periods  []PeriodSpec `yaml:"periods"`
	Analysis struct {
		Model     string `yaml:"model"`
		APIKeyEnv string `yaml:"api_key_env"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"analysis"`
	Knowledge struct {
		Dir string `yaml:"dir"`
	} `yaml:"knowledge"`
	Reports struct {
		Dir string `yaml:"dir"`
	} `yaml:"reports"`
}

// PeriodSpec declares one reporting period at configuration time.
type PeriodSpec struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Start  string `yaml:"start"`
	End    string `yaml:"end"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with ll config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Project.ID == "" {
		return fmt.Errorf("config.project.id is required")
	}
	if c.Source.Kind == "fs" && c.Source.Root == "" {
		return fmt.Errorf("config.source.root is required for source.kind=fs")
	}
	if c.Analysis.BatchSize < 0 {
		return fmt.Errorf("config.analysis.batch_size must be >= 0")
	}
	seen := map[string]bool{}
	var prevStart time.Time
	for i, p := range c.Periods {
		if p.Name == "" {
			return fmt.Errorf("config.periods[%d].name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate period %s", p.Name)
		}
		seen[p.Name] = true
		if p.Source == "" {
			return fmt.Errorf("period %s has no source", p.Name)
		}
		start, err := time.Parse("2006-01-02", p.Start)
		if err != nil {
			return fmt.Errorf("period %s start: %w", p.Name, err)
		}
		end, err := time.Parse("2006-01-02", p.End)
		if err != nil {
			return fmt.Errorf("period %s end: %w", p.Name, err)
		}
		if end.Before(start) {
			return fmt.Errorf("period %s ends before it starts", p.Name)
		}
		if i > 0 && !start.After(prevStart) {
			return fmt.Errorf("period %s out of chronological order", p.Name)
		}
		prevStart = start
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "labline.yml")
}

// BatchSize returns the configured experiment batch size or the default.
func (c *Config) BatchSize() int {
	if c.Analysis.BatchSize > 0 {
		return c.Analysis.BatchSize
	}
	return 12
}

// KnowledgeDir resolves the knowledge dir against the workspace.
func (c *Config) KnowledgeDir(workspace string) string {
	dir := c.Knowledge.Dir
	if dir == "" {
		dir = "knowledge"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(workspace, dir)
}

// ReportsDir resolves the reports dir against the workspace.
func (c *Config) ReportsDir(workspace string) string {
	dir := c.Reports.Dir
	if dir == "" {
		dir = "reports"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(workspace, dir)
}

// Default returns the default Config struct for a project.
func Default(projectID string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(fmt.Sprintf(defaultTemplate, projectID)), &cfg)
	cfg.Project.ID = projectID
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(projectID string) string {
	return fmt.Sprintf(defaultTemplate, projectID)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `project:
  id: %s
  name: ""

source:
  kind: fs
  root: ./data/mirror
  folder_id: ""
  reports_folder_id: ""

periods:
  - name: H1_2022
    source: H1_2022
    start: 2022-01-01
    end: 2022-06-30
  - name: H2_2022
    source: H2_2022
    start: 2022-07-01
    end: 2022-12-31
  - name: H1_2023
    source: H1_2023
    start: 2023-01-01
    end: 2023-06-30
  - name: H2_2023
    source: H2_2023
    start: 2023-07-01
    end: 2023-12-31
  - name: H1_2024
    source: H1_2024
    start: 2024-01-01
    end: 2024-06-30
  - name: H2_2024
    source: H2_2024
    start: 2024-07-01
    end: 2024-12-31
  - name: H1_2025
    source: H1_2025
    start: 2025-01-01
    end: 2025-06-30
  - name: H2_2025
    source: H2_2025
    start: 2025-07-01
    end: 2025-12-31

analysis:
  model: gemini-2.5-pro
  api_key_env: LABLINE_API_KEY
  batch_size: 12

knowledge:
  dir: knowledge

reports:
  dir: reports
`
