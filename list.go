// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package rehearse

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	v0 "github.com/rehearse-dev/rehearse/schema/v0"
)

// NewJobList renders an aligned listing of the jobs in a workflow
func NewJobList(wf v0.Workflow) string {
	nameStyle := lipgloss.NewStyle().Bold(true)
	faint := lipgloss.NewStyle().Faint(true)

	names := wf.Jobs.OrderedJobNames()

	width := 0
	for _, name := range names {
		if len(name) > width {
			width = len(name)
		}
	}

	var sb strings.Builder
	for _, name := range names {
		job, _ := wf.Jobs.Find(name)

		details := make([]string, 0, 3)
		if job.RunsOn != "" {
			details = append(details, job.RunsOn)
		}
		if len(job.Needs) > 0 {
			details = append(details, fmt.Sprintf("needs: %s", strings.Join(job.Needs, ", ")))
		}
		if job.Strategy != nil {
			if combos, err := job.Strategy.Matrix.Expand(); err == nil && len(combos) > 1 {
				details = append(details, fmt.Sprintf("%d combinations", len(combos)))
			}
		}

		sb.WriteString("  " + nameStyle.Render(fmt.Sprintf("%-*s", width, name)))
		if len(details) > 0 {
			sb.WriteString("  ")
			sb.WriteString(faint.Render(strings.Join(details, " · ")))
		}
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}
