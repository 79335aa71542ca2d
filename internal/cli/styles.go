// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Centralized styling for all CLI commands in strand.
//
// All commands use these shared styles instead of defining their own, so
// disabling color in one place covers the whole tree.

package cli

import (
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/strand/internal/config"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	pinStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))
)

// applyStyles strips styling when color output is disabled.
func applyStyles(cfg *config.Config) {
	if cfg.UI.Color {
		return
	}
	plain := lipgloss.NewStyle()
	headerStyle = plain.Padding(0, 1)
	titleStyle = plain
	idStyle = plain
	userStyle = plain
	assistantStyle = plain
	noticeStyle = plain
	errorStyle = plain
	statusStyle = plain
	dateStyle = plain
	pinStyle = plain
}

// truncate shortens a string to the given display width, multibyte-aware.
func truncate(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

// relativeDate formats a timestamp the way humans scan lists: recent
// entries by time of day, older ones by date.
func relativeDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	diff := time.Since(t)
	switch {
	case diff < 24*time.Hour:
		return t.Local().Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Local().Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Local().Format("Jan 02 15:04")
	default:
		return t.Local().Format("2006-01-02")
	}
}
