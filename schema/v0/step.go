// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package v0

import (
	"github.com/invopop/jsonschema"

	"github.com/rehearse-dev/rehearse/schema"
)

// Step is a single step in a job
//
// While a step can have any combination of `run` and `uses` fields, only one
// of them should be set at a time. This is enforced by JSON schema validation.
type Step struct {
	// Run is the command/script to run
	Run string `json:"run,omitempty"`
	// Uses is a reference to a builtin or a job in another workflow
	Uses string `json:"uses,omitempty"`
	// With is a map of additional parameters for the step/job call
	With schema.With `json:"with,omitempty"`
	// Env is set for the duration of the step
	Env schema.Env `json:"env,omitempty"`
	// ID is a unique identifier for the step
	ID string `json:"id,omitempty"`
	// Name is a human-readable name for the step, pure sugar
	Name string `json:"name,omitempty"`
	// If controls whether the step is executed
	If string `json:"if,omitempty"`
	// Shell is the interpreter the script runs under
	Shell string `json:"shell,omitempty"`
	// Dir is the directory to run the step in
	Dir string `json:"dir,omitempty"`
	// Timeout bounds how long the step may run
	Timeout string `json:"timeout,omitempty"`
	// ContinueOnError records a step failure without failing the job
	ContinueOnError bool `json:"continue-on-error,omitempty"`
}

// JSONSchemaExtend extends the JSON schema for a step
func (Step) JSONSchemaExtend(s *jsonschema.Schema) {
	not := &jsonschema.Schema{
		Not: &jsonschema.Schema{},
	}

	props := jsonschema.NewProperties()
	props.Set("run", &jsonschema.Schema{
		Type:        "string",
		Description: "Command/script to run",
	})
	props.Set("uses", &jsonschema.Schema{
		Type:        "string",
		Description: "Location of a builtin or a job in another workflow",
	})
	props.Set("with", &jsonschema.Schema{
		Type:        "object",
		Description: "Additional parameters for the step/job call",
		PatternProperties: map[string]*jsonschema.Schema{
			EnvVariablePattern.String(): {
				OneOf: []*jsonschema.Schema{
					{Type: "string"},
					{Type: "boolean"},
					{Type: "integer"},
				},
			},
		},
		AdditionalProperties: jsonschema.FalseSchema,
	})
	props.Set("env", &jsonschema.Schema{
		Type:        "object",
		Description: "Environment variables set for the duration of the step",
	})
	props.Set("id", &jsonschema.Schema{
		Type:        "string",
		Description: "Unique identifier for the step, required to access step outputs",
		Pattern:     JobNamePattern.String(),
	})
	props.Set("name", &jsonschema.Schema{
		Type:        "string",
		Description: "Human-readable name for the step, pure sugar",
	})
	props.Set("if", &jsonschema.Schema{
		Type:        "string",
		Description: "Expression that controls whether the step is executed",
	})
	props.Set("shell", &jsonschema.Schema{
		Type:        "string",
		Description: "Interpreter the script runs under",
		Enum:        []any{"sh", "bash", "pwsh", "powershell"},
	})
	props.Set("dir", &jsonschema.Schema{
		Type:        "string",
		Description: "Relative directory to run the step in",
	})
	props.Set("timeout", &jsonschema.Schema{
		Type:        "string",
		Description: "Maximum duration the step may run (e.g. 30s, 5m)",
	})
	props.Set("continue-on-error", &jsonschema.Schema{
		Type:        "boolean",
		Description: "Record a step failure without failing the job",
	})

	runProps := jsonschema.NewProperties()
	runProps.Set("run", &jsonschema.Schema{Type: "string"})
	runProps.Set("uses", not)
	oneOfRun := &jsonschema.Schema{
		Required:   []string{"run"},
		Properties: runProps,
	}

	usesProps := jsonschema.NewProperties()
	usesProps.Set("run", not)
	usesProps.Set("uses", &jsonschema.Schema{Type: "string"})
	usesProps.Set("shell", not)
	oneOfUses := &jsonschema.Schema{
		Required:   []string{"uses"},
		Properties: usesProps,
	}

	s.Properties = props
	s.OneOf = []*jsonschema.Schema{
		oneOfRun,
		oneOfUses,
	}
}
