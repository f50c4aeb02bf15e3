package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"labline/internal/analyze"
	"labline/internal/config"
	"labline/internal/db"
	"labline/internal/engine"
	"labline/internal/knowledge"
	"labline/internal/migrate"
	"labline/internal/publish"
	"labline/internal/registry"
	"labline/internal/server"
	"labline/internal/source"
)

var rootCmd = &cobra.Command{
	Use:   "ll",
	Short: "Labline CLI",
	Long: `Labline turns a team's raw lab records into reviewed knowledge.
- Bootstrap: walks the configured half-year periods, pulls experiment
  sheets and journals from the document store, and drafts an LLM summary
  for each period. Drafts wait for human review.
- Promote: approves a draft; approved summaries become context for
  later periods and for the project arc.
- Weekly: analyzes the last week's experiments and journal entries
  against the project arc and cumulative learnings, then publishes a
  report with recommendations.
The period ledger lives in knowledge/REGISTRY.md; run history and the
event log live in the .labline workspace database.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("LABLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(bootstrapCmd())
	rootCmd.AddCommand(promoteCmd())
	rootCmd.AddCommand(weeklyCmd())
	rootCmd.AddCommand(arcCmd())
	rootCmd.AddCommand(periodsCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func bootstrapCmd() *cobra.Command {
	var opts engine.BootstrapOptions
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Draft summaries for pending periods",
		Long:  "Walks the configured periods in order and drafts every pending one. Drafted and complete periods are skipped, so an interrupted run resumes where it left off.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAnalysisEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				summary, err := e.RunBootstrap(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(summary)
				}
				fmt.Printf("Drafted: %d  Skipped: %d  Failed: %d\n",
					summary.Run.Drafted, summary.Run.Skipped, summary.Run.Failed)
				for _, d := range summary.Drafts {
					fmt.Printf("  draft: %s\n", d)
				}
				for _, f := range summary.Failures {
					fmt.Printf("  failed %s (%s): %s\n", f.Period, f.Kind, f.Message)
				}
				if summary.Run.Drafted > 0 {
					fmt.Println("Review the drafts, then approve with: ll promote <period>")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.Period, "period", "", "process a single period")
	cmd.Flags().StringVar(&opts.FolderID, "folder", "", "override the source folder")
	return cmd
}

func promoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promote <period>",
		Short: "Approve a drafted period summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Promote(ctx, name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				fmt.Printf("Promoted %s (%s)\n", p.Name, p.Status)
				return nil
			})
		},
	}
	return cmd
}

func weeklyCmd() *cobra.Command {
	var opts engine.WeeklyOptions
	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Run the weekly analysis and publish a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAnalysisEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				result, err := e.RunWeekly(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(result)
				}
				fmt.Printf("Week: %s to %s\n",
					result.WeekStart.Format("2006-01-02"), result.WeekEnd.Format("2006-01-02"))
				fmt.Printf("Experiments: %d  Journal entries: %d\n", result.Experiments, result.JournalEntries)
				if result.ReportPath != "" {
					fmt.Printf("Report: %s\n", result.ReportPath)
				} else {
					fmt.Println("Dry run, report not published.")
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&opts.DaysBack, "days", 7, "days to look back")
	cmd.Flags().StringVar(&opts.FolderID, "folder", "", "override the source folder")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "analyze without publishing")
	cmd.Flags().BoolVar(&opts.AllFiles, "all", false, "ignore the date window")
	return cmd
}

func arcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arc",
		Short: "Synthesize the project arc from approved summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAnalysisEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				arc, err := e.SynthesizeArc(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(arc)
				}
				fmt.Printf("Arc synthesized from %d periods: %s\n", len(arc.Periods), strings.Join(arc.Periods, ", "))
				return nil
			})
		},
	}
	return cmd
}

func periodsCmd() *cobra.Command {
	p := &cobra.Command{Use: "periods", Short: "Inspect the period registry"}
	p.AddCommand(periodsListCmd())
	p.AddCommand(periodsShowCmd())
	return p
}

func periodsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List periods",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				periods, err := e.Periods(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(periods)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Period", "Source", "Start", "End", "Status"})
				for _, p := range periods {
					tw.AppendRow(table.Row{
						p.Name, p.SourceID,
						p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"),
						p.Status,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func periodsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <period>",
		Short: "Show one period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.GetPeriod(ctx, name)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func runsCmd() *cobra.Command {
	r := &cobra.Command{Use: "runs", Short: "Inspect pipeline runs"}
	r.AddCommand(runsListCmd())
	r.AddCommand(runsShowCmd())
	return r
}

func runsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				runs, err := e.Repo.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(runs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Kind", "Started", "Drafted", "Skipped", "Failed"})
				for _, r := range runs {
					tw.AppendRow(table.Row{
						r.ID, r.Kind, r.StartedAt.Format(time.RFC3339),
						r.Drafted, r.Skipped, r.Failed,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs")
	return cmd
}

func runsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a run with its failures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				run, err := e.Repo.GetRun(ctx, id)
				if err != nil {
					return err
				}
				failures, err := e.Repo.ListRunFailures(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"run":      run,
					"failures": failures,
				})
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Event log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Inspect workspace config"}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func configInitCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter labline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(projectID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "id", "labline", "project id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				authCfg := server.AuthConfig{JWTSecret: os.Getenv("LABLINE_JWT_SECRET")}
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				if authCfg.JWTSecret == "" {
					fmt.Println("LABLINE_JWT_SECRET not set, serving without auth")
				}
				fmt.Printf("Serving Labline API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	knowDir := cfg.KnowledgeDir(workspace)
	e.Registry = registry.NewStore(knowDir)
	e.Knowledge = knowledge.NewStore(knowDir)
	e.Publisher = publish.NewMarkdownPublisher(cfg.ReportsDir(workspace))
	src, err := buildSource(cfg)
	if err != nil {
		return err
	}
	e.Source = src
	return fn(ctx, e)
}

// withAnalysisEngine additionally wires the model client, which needs an
// API key. Read-only commands avoid that requirement via withEngine.
func withAnalysisEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		keyEnv := e.Config.Analysis.APIKeyEnv
		if keyEnv == "" {
			keyEnv = "LABLINE_API_KEY"
		}
		summarizer, err := analyze.NewGeminiSummarizer(ctx, os.Getenv(keyEnv), e.Config.Analysis.Model)
		if err != nil {
			return fmt.Errorf("model client: %w (set %s)", err, keyEnv)
		}
		e.Summarizer = summarizer
		return fn(ctx, e)
	})
}

func buildSource(cfg *config.Config) (source.Store, error) {
	switch cfg.Source.Kind {
	case "fs", "":
		return source.NewFSStore(cfg.Source.Root), nil
	default:
		return nil, fmt.Errorf("unsupported source.kind %q", cfg.Source.Kind)
	}
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
