package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/dagster-io/skills/internal"
	"github.com/dagster-io/skills/internal/apperr"
	"github.com/dagster-io/skills/internal/report"
	"github.com/dagster-io/skills/internal/skill"
	"github.com/dagster-io/skills/internal/skillservice"
	pkgconfig "github.com/dagster-io/skills/pkg/config"
)

var version = "dev"

// errFailed marks a command whose problems were already printed.
var errFailed = errors.New("check failed")

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// session is what every one-shot command works with.
type session struct {
	skills  []skill.Skill
	svc     *skillservice.Service
	printer *report.Printer
}

func newSession(cmd *cli.Command) (*session, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := internal.NewLogger(os.Stderr, cfg.App.LogLevel)
	skills, err := internal.LoadSkills(cfg, cmd.Args().Slice())
	if err != nil {
		return nil, nil, err
	}
	svc, closeFn, err := internal.NewService(cfg, skills, false, logger)
	if err != nil {
		return nil, nil, err
	}
	return &session{
		skills:  skills,
		svc:     svc,
		printer: report.New(cmd.Root().Writer, cmd.Root().ErrWriter, cmd.Bool("no-color")),
	}, closeFn, nil
}

// display renders a skill-relative path the way the user is likely to type
// it: relative to the working directory when possible.
func display(s skill.Skill, rel string) string {
	abs := filepath.Join(s.Root, filepath.FromSlash(rel))
	wd, err := os.Getwd()
	if err != nil {
		return abs
	}
	if r, err := filepath.Rel(wd, abs); err == nil && !strings.HasPrefix(r, "..") {
		return r
	}
	return abs
}

func displayIssues(s skill.Skill, issues apperr.Issues) apperr.Issues {
	out := make(apperr.Issues, len(issues))
	for i, is := range issues {
		is.Path = display(s, is.Path)
		out[i] = is
	}
	return out
}

// printIssues reports validation failures and swallows them into errFailed.
func (ss *session) printIssues(s skill.Skill, err error) error {
	var issues apperr.Issues
	if errors.As(err, &issues) {
		ss.printer.Issues("Front matter validation errors:", displayIssues(s, issues))
		return errFailed
	}
	return err
}

func generateAction(ctx context.Context, cmd *cli.Command) error {
	ss, closeFn, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	failed := false
	for _, s := range ss.skills {
		res, err := ss.svc.Generate(ctx, s.Name)
		if err != nil {
			if err := ss.printIssues(s, err); !errors.Is(err, errFailed) {
				return err
			}
			failed = true
			continue
		}
		written := make([]string, len(res.Written))
		for i, p := range res.Written {
			written[i] = display(s, p)
		}
		ss.printer.Updated(written)
		if len(res.Skipped) > 0 {
			ss.printer.Skipped(displayIssues(s, res.Skipped))
			failed = true
		}
	}
	if failed {
		return errFailed
	}
	return nil
}

func validateAction(ctx context.Context, cmd *cli.Command) error {
	ss, closeFn, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	failed := false
	for _, s := range ss.skills {
		issues, err := ss.svc.Validate(ctx, s.Name)
		if err != nil {
			return err
		}
		if len(issues) > 0 {
			ss.printer.Issues("Front matter validation errors:", displayIssues(s, issues))
			failed = true
		}
	}
	if failed {
		return errFailed
	}
	ss.printer.Valid()
	return nil
}

func checkAction(ctx context.Context, cmd *cli.Command) error {
	ss, closeFn, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	failed := false
	for _, s := range ss.skills {
		plan, err := ss.svc.Plan(ctx, s.Name)
		if err != nil {
			if err := ss.printIssues(s, err); !errors.Is(err, errFailed) {
				return err
			}
			failed = true
			continue
		}
		for _, u := range plan.Drift() {
			ss.printer.Drift(display(s, u.Path))
			if cmd.Bool("diff") {
				ss.printer.Diff(u.Path, u.Current, u.Next)
			}
			failed = true
		}
		if len(plan.Skipped) > 0 {
			ss.printer.Skipped(displayIssues(s, plan.Skipped))
			failed = true
		}
	}
	if failed {
		ss.printer.Hint("Run 'skillindex generate <skill-root>' to update.")
		return errFailed
	}
	ss.printer.InSync()
	return nil
}

func linksAction(ctx context.Context, cmd *cli.Command) error {
	ss, closeFn, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	asJSON := cmd.Bool("json")
	var reports []any
	failed := false
	for _, s := range ss.skills {
		rep, err := ss.svc.Report(ctx, s.Name)
		if err != nil {
			return err
		}
		if asJSON {
			reports = append(reports, rep)
			failed = failed || len(rep.Issues()) > 0
			continue
		}
		if !ss.printer.Links(rep) {
			failed = true
		}
	}
	if asJSON {
		var v any = reports
		if len(reports) == 1 {
			v = reports[0]
		}
		if err := ss.printer.JSON(v); err != nil {
			return err
		}
	}
	if failed {
		return errFailed
	}
	return nil
}

func blocksAction(ctx context.Context, cmd *cli.Command) error {
	ss, closeFn, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	var out []report.Block
	for _, s := range ss.skills {
		blocks, err := ss.svc.Blocks(ctx, s.Name, cmd.String("lang"))
		if err != nil {
			return err
		}
		for _, b := range blocks {
			out = append(out, report.Block{
				Label: fmt.Sprintf("%s:%d", display(s, b.Path), b.StartLine),
				Lang:  b.Lang,
				Flags: b.Flags,
			})
		}
	}
	ss.printer.Blocks(out)
	return nil
}

func runOptions(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithRoots(cmd.Args().Slice()),
		internal.WithVersion(version),
	}, nil
}

func watchAction(ctx context.Context, cmd *cli.Command) error {
	opts, err := runOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RunWatch(ctx, opts...)
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	opts, err := runOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcpAction(ctx context.Context, cmd *cli.Command) error {
	opts, err := runOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func newApp() *cli.Command {
	rootsUsage := "[skill-root...]"
	return &cli.Command{
		Name:      "skillindex",
		Usage:     "Validate reference frontmatter, generate skill indices and check link reachability",
		Version:   version,
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable coloured output",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "generate",
				Usage:     "Validate frontmatter, regenerate indices and write changed files",
				ArgsUsage: rootsUsage,
				Action:    generateAction,
			},
			{
				Name:      "validate",
				Usage:     "Validate reference frontmatter only",
				ArgsUsage: rootsUsage,
				Action:    validateAction,
			},
			{
				Name:      "check",
				Usage:     "Fail if any generated index is out of date; never writes",
				ArgsUsage: rootsUsage,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "diff", Usage: "Show the pending change of every stale file"},
				},
				Action: checkAction,
			},
			{
				Name:      "links",
				Usage:     "Report broken links and files unreachable from the entry file",
				ArgsUsage: rootsUsage,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Print the full link report as JSON"},
				},
				Action: linksAction,
			},
			{
				Name:      "blocks",
				Usage:     "List fenced code blocks",
				ArgsUsage: rootsUsage,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "lang", Value: "python", Usage: "Only blocks in this language (empty for all)"},
				},
				Action: blocksAction,
			},
			{
				Name:      "watch",
				Usage:     "Regenerate indices whenever a skill changes",
				ArgsUsage: rootsUsage,
				Action:    watchAction,
			},
			{
				Name:      "serve",
				Usage:     "Run the HTTP API with live events and the file watcher",
				ArgsUsage: rootsUsage,
				Action:    serveAction,
			},
			{
				Name:      "mcp",
				Usage:     "Serve MCP tools on stdin/stdout",
				ArgsUsage: rootsUsage,
				Action:    mcpAction,
			},
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		if !errors.Is(err, errFailed) {
			slog.Error("application error", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}
