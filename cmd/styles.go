// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package cmd

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// level colors follow the catppuccin latte/mocha palettes
var levelColors = map[log.Level]lipgloss.AdaptiveColor{
	log.DebugLevel: {Light: "#1e66f5", Dark: "#89b4fa"}, // blue
	log.InfoLevel:  {Light: "#179299", Dark: "#94e2d5"}, // teal
	log.WarnLevel:  {Light: "#df8e1d", Dark: "#f9e2af"}, // yellow
	log.ErrorLevel: {Light: "#d20f39", Dark: "#f38ba8"}, // red
	log.FatalLevel: {Light: "#8839ef", Dark: "#cba6f7"}, // mauve
}

// DefaultStyles returns the logger styles shared by every rehearse binary
func DefaultStyles() *log.Styles {
	styles := log.DefaultStyles()

	for level, color := range levelColors {
		styles.Levels[level] = styles.Levels[level].Foreground(color)
	}

	return styles
}
