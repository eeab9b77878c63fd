// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package rehearse

import (
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/goccy/go-yaml"
	"github.com/muesli/termenv"

	"github.com/rehearse-dev/rehearse/schema"
	v0 "github.com/rehearse-dev/rehearse/schema/v0"
)

// chromaStyle picks a highlight style matching the terminal background
func chromaStyle() string {
	if lipgloss.HasDarkBackground() {
		return "catppuccin-mocha"
	}
	return "catppuccin-latte"
}

// printScript echoes the script a step is about to run, syntax highlighted
// behind a gutter when the terminal supports color
func printScript(logger *log.Logger, lang, script string) {
	script = strings.TrimSpace(script)

	// plain output renders the same way make echoes recipes
	if termenv.EnvNoColor() {
		logger.Print(script)
		return
	}

	if lang == "" {
		lang = "shell"
	}

	var buf strings.Builder
	if err := quick.Highlight(&buf, script, lang, "terminal256", chromaStyle()); err != nil {
		logger.Debugf("failed to highlight: %v", err)
		for line := range strings.SplitSeq(script, "\n") {
			logger.Printf("  %s", line)
		}
		return
	}

	gutter := lipgloss.NewStyle().Background(lipgloss.AdaptiveColor{
		Light: "#ccd0da", // catppuccin-latte surface0
		Dark:  "#313244", // catppuccin-mocha surface0
	}).Render(" ")

	for line := range strings.SplitSeq(buf.String(), "\n") {
		logger.Printf("%s %s", gutter, line)
	}
}

// printBuiltin echoes a builtin step's with block as yaml
func printBuiltin(logger *log.Logger, builtin schema.With) {
	b, err := yaml.MarshalWithOptions(v0.Step{With: builtin}, yaml.Indent(2), yaml.IndentSequence(true))
	if err != nil {
		logger.Debugf("failed to marshal builtin: %v", err)
		return
	}

	if termenv.EnvNoColor() {
		logger.Printf("%s", strings.TrimSpace(string(b)))
		return
	}

	var buf strings.Builder
	if err := quick.Highlight(&buf, string(b), "yaml", "terminal256", chromaStyle()); err != nil {
		logger.Debugf("failed to highlight: %v", err)
		logger.Printf("%s", string(b))
		return
	}

	logger.Printf("%s", strings.TrimSpace(buf.String()))
}
