package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/zenibako/cueforge/cuelist"
)

func consoleTitle(m *cuelist.Manager) string {
	standby := "nothing"
	if c := m.StandByCue(); c != nil {
		standby = strings.TrimSpace(c.Number() + " " + c.Name())
	}
	return fmt.Sprintf("%s  |  standby: %s", m.WorkspaceTitle(), standby)
}

func consoleStatus(m *cuelist.Manager) string {
	active := m.ActiveCues()
	numbers := make([]string, 0, len(active))
	for _, c := range active {
		numbers = append(numbers, c.Number())
	}
	status := fmt.Sprintf("%d running", len(active))
	if len(numbers) > 0 {
		status += " (" + strings.Join(numbers, ", ") + ")"
	}
	if m.IsPaused() {
		status += ", paused"
	}
	if n := m.BrokenCueCount(); n > 0 {
		status += fmt.Sprintf(", %d broken", n)
	}
	if m.HasUnsavedChanges() {
		status += ", unsaved"
	}
	return status
}

// runConsole shows a transport menu until the operator quits.
func runConsole(ctx context.Context, m *cuelist.Manager) error {
	for {
		var action string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title(consoleTitle(m)).
					Description(consoleStatus(m)).
					Options(
						huh.NewOption("Go", "go"),
						huh.NewOption("Stop all", "stop"),
						huh.NewOption("Pause", "pause"),
						huh.NewOption("Resume", "resume"),
						huh.NewOption("Next cue", "next"),
						huh.NewOption("Panic", "panic"),
						huh.NewOption("Save workspace", "save"),
						huh.NewOption("Quit", "quit"),
					).
					Value(&action),
			),
		)
		if err := form.RunWithContext(ctx); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return errQuit
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("console: %w", err)
		}

		switch action {
		case "go":
			m.Go()
		case "stop":
			m.Stop()
		case "pause":
			m.Pause()
		case "resume":
			m.Resume()
		case "next":
			m.AdvanceStandBy()
		case "panic":
			m.Panic()
		case "save":
			if err := m.SaveWorkspace(""); err != nil {
				log.Error("Failed to save workspace", "error", err)
			}
		case "quit":
			if m.HasUnsavedChanges() && m.WorkspacePath() != "" {
				save := true
				confirm := huh.NewConfirm().
					Title("Save changes before quitting?").
					Value(&save)
				if err := huh.NewForm(huh.NewGroup(confirm)).RunWithContext(ctx); err == nil && save {
					if err := m.SaveWorkspace(""); err != nil {
						log.Error("Failed to save workspace", "error", err)
					}
				}
			}
			return errQuit
		}
	}
}
