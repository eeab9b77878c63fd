// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package rehearse

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"

	v0 "github.com/rehearse-dev/rehearse/schema/v0"
)

// Explain renders a human-readable description of a workflow, or of the
// named jobs within it, as terminal-friendly markdown
func Explain(wf v0.Workflow, jobNames ...string) (string, error) {
	names := jobNames
	if len(names) == 0 {
		names = wf.Jobs.OrderedJobNames()
	}

	var md strings.Builder

	title := wf.Name
	if title == "" {
		title = "workflow"
	}
	fmt.Fprintf(&md, "# %s\n\n", title)

	fmt.Fprintf(&md, "Triggers: %s\n\n", strings.Join(wf.On.Events(), ", "))

	if wf.On.WorkflowDispatch != nil && len(wf.On.WorkflowDispatch.Inputs) > 0 {
		md.WriteString("## Inputs\n\n")
		md.WriteString("| Name | Description | Required | Default |\n")
		md.WriteString("| --- | --- | --- | --- |\n")

		inputNames := make([]string, 0, len(wf.On.WorkflowDispatch.Inputs))
		for name := range wf.On.WorkflowDispatch.Inputs {
			inputNames = append(inputNames, name)
		}
		slices.Sort(inputNames)

		for _, name := range inputNames {
			param := wf.On.WorkflowDispatch.Inputs[name]
			required := param.Required == nil || *param.Required
			def := ""
			if param.Default != nil {
				def = fmt.Sprintf("`%v`", param.Default)
			} else if param.DefaultFromEnv != "" {
				def = fmt.Sprintf("`$%s`", param.DefaultFromEnv)
			}
			fmt.Fprintf(&md, "| `%s` | %s | %t | %s |\n", name, param.Description, required, def)
		}
		md.WriteString("\n")
	}

	for _, name := range names {
		job, ok := wf.Jobs.Find(name)
		if !ok {
			return "", fmt.Errorf("job %q not found", name)
		}

		fmt.Fprintf(&md, "## %s\n\n", name)

		if job.RunsOn != "" {
			fmt.Fprintf(&md, "Runs on `%s`. ", job.RunsOn)
		}
		if len(job.Needs) > 0 {
			fmt.Fprintf(&md, "Needs %s. ", strings.Join(job.Needs, ", "))
		}
		if job.Strategy != nil {
			if combos, err := job.Strategy.Matrix.Expand(); err == nil {
				fmt.Fprintf(&md, "Expands to %d matrix combination(s). ", len(combos))
			}
		}
		md.WriteString("\n\n")

		for i, step := range job.Steps {
			label := step.Name
			if label == "" && step.Uses != "" {
				label = step.Uses
			}
			if label != "" {
				fmt.Fprintf(&md, "%d. %s\n", i+1, label)
			} else {
				fmt.Fprintf(&md, "%d.\n", i+1)
			}
			if step.Run != "" {
				shell := step.Shell
				if shell == "" {
					shell = "sh"
				}
				fmt.Fprintf(&md, "\n   ```%s\n", shell)
				for line := range strings.SplitSeq(strings.TrimSpace(step.Run), "\n") {
					fmt.Fprintf(&md, "   %s\n", line)
				}
				md.WriteString("   ```\n")
			}
		}
		md.WriteString("\n")
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", err
	}

	return r.Render(md.String())
}
