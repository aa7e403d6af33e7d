package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/zenibako/cueforge/config"
	"github.com/zenibako/cueforge/cue"
	"github.com/zenibako/cueforge/cuelist"
	"github.com/zenibako/cueforge/playback"
	"github.com/zenibako/cueforge/templates"
	"github.com/zenibako/cueforge/workspace"
	"k8s.io/utils/clock"
)

// errBrokenCues makes validate exit non-zero.
var errBrokenCues = errors.New("workspace has broken cues")

func newEngine(cfg *config.Config) *playback.Simulator {
	return playback.NewSimulator(clock.RealClock{}, playback.SimulatorOptions{
		QueueSize:   cfg.Engine.QueueSize,
		EventBuffer: cfg.Engine.EventBuffer,
		Tick:        cfg.PositionInterval(),
	})
}

// loadReadOnly restores a workspace file into a manager without taking
// its lock.
func loadReadOnly(cfg *config.Config, path string) (*cuelist.Manager, error) {
	doc, err := workspace.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := cuelist.New(newEngine(cfg), cuelist.WithSweepInterval(cfg.ReconcileInterval()))
	if err := m.Restore(doc); err != nil {
		log.Warn("Workspace loaded with errors", "path", path, "error", err)
	}
	return m, nil
}

func workspaceArg(cfg *config.Config, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Workspace.DefaultPath != "" {
		return cfg.Workspace.DefaultPath, nil
	}
	return "", errors.New("no workspace given and no workspace.default_path configured")
}

type cueRow struct {
	c     cue.Cue
	depth int
}

func treeRows(cues []cue.Cue, depth int) []cueRow {
	var out []cueRow
	for _, c := range cues {
		out = append(out, cueRow{c: c, depth: depth})
		if g, ok := c.(*cue.GroupCue); ok {
			out = append(out, treeRows(g.Children(), depth+1)...)
		}
	}
	return out
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2f", d.Seconds())
}

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list [workspace]",
		Short: "Print the cues of a workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := workspaceArg(cfg, args)
			if err != nil {
				return err
			}
			m, err := loadReadOnly(cfg, path)
			if err != nil {
				return err
			}
			defer m.Close()

			standby := m.StandByID()
			var rows [][]string
			for _, r := range treeRows(m.Cues(), 0) {
				marker := ""
				if r.c.ID() == standby {
					marker = "▶"
				}
				rows = append(rows, []string{
					marker,
					r.c.Number(),
					strings.Repeat("  ", r.depth) + r.c.Name(),
					r.c.Type().String(),
					formatSeconds(r.c.PreWait()),
					formatSeconds(r.c.Duration()),
					formatSeconds(r.c.PostWait()),
					r.c.Status().String(),
					m.TargetDisplayText(r.c),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), m.WorkspaceTitle())
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"", "Number", "Name", "Type", "Pre", "Duration", "Post", "Status", "Target"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
}

func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [workspace]",
		Short: "Check every cue of a workspace and report the broken ones",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := workspaceArg(cfg, args)
			if err != nil {
				return err
			}
			m, err := loadReadOnly(cfg, path)
			if err != nil {
				return err
			}
			defer m.Close()

			stats := m.CueStatistics()
			broken := m.BrokenCues()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d cues, %d broken\n", stats.Total, len(broken))
			if len(broken) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(broken))
			for _, c := range broken {
				rows = append(rows, []string{c.Number(), c.Name(), c.Type().String(), m.TargetDisplayText(c)})
			}
			fmt.Fprintln(out, renderTable([]string{"Number", "Name", "Type", "Target"}, rows, []columnAlignment{alignRight}))
			return errBrokenCues
		},
	}
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <qlab.json> <workspace>",
		Short: "Convert a QLab workspace export into a new workspace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read QLab export: %w", err)
			}
			name, tmpls, warnings, err := templates.FromQLab(data)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				log.Warn(w)
			}

			m := cuelist.New(newEngine(cfg))
			defer m.Close()
			created := 0
			for _, t := range tmpls {
				result := m.GenerateCues(templates.CueGenerationRequest{Template: t, CueNumber: t.Number})
				for _, e := range result.Errors {
					log.Warn("Import problem", "cue", t.Number, "error", e)
				}
				created += len(result.CuesCreated)
			}
			m.SetWorkspaceName(name)
			if err := m.SaveWorkspaceAs(args[1]); err != nil {
				return err
			}
			name = m.WorkspaceTitle()
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d cues from %q into %s\n", created, name, m.WorkspacePath())
			return nil
		},
	}
}
