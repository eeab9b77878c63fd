// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

// Package v0 contains the v0 workflow schema for rehearse
package v0

import (
	"github.com/invopop/jsonschema"

	"github.com/rehearse-dev/rehearse/schema"
)

// SchemaVersion is the current schema version for workflows
const SchemaVersion = "v0"

// Workflow represents a "ci.yaml" file
type Workflow struct {
	SchemaVersion string           `json:"schema-version"`
	Name          string           `json:"name,omitempty"`
	On            On               `json:"on"`
	Env           schema.Env       `json:"env,omitempty"`
	Jobs          JobMap           `json:"jobs,omitempty"`
	Aliases       map[string]Alias `json:"aliases,omitempty"`
}

// Alias defines how a package URL alias should be resolved
type Alias struct {
	Type         string `json:"type,omitempty"`
	Base         string `json:"base,omitempty"`
	TokenFromEnv string `json:"token-from-env,omitempty"`
	Path         string `json:"path,omitempty"`
}

// JSONSchemaExtend extends the JSON schema for an alias
func (Alias) JSONSchemaExtend(schema *jsonschema.Schema) {
	if typ, ok := schema.Properties.Get("type"); ok && typ != nil {
		typ.Description = "Type of the alias, maps to a package URL type"
		typ.Enum = []any{"github", "gitlab"}
	}
	if base, ok := schema.Properties.Get("base"); ok && base != nil {
		base.Description = "Base URL for the underlying client (e.g. https://mygitlab.com )"
	}
	if tokenFromEnv, ok := schema.Properties.Get("token-from-env"); ok && tokenFromEnv != nil {
		tokenFromEnv.Description = "Environment variable containing the token for authentication"
		tokenFromEnv.Pattern = EnvVariablePattern.String()
	}
	if path, ok := schema.Properties.Get("path"); ok && path != nil {
		path.Description = "Relative path to another workflow file this alias points at"
	}
}

// JSONSchemaExtend extends the JSON schema for a workflow
func (Workflow) JSONSchemaExtend(schema *jsonschema.Schema) {
	if schemaVersion, ok := schema.Properties.Get("schema-version"); ok && schemaVersion != nil {
		schemaVersion.Description = "Workflow schema version"
		schemaVersion.Enum = []any{SchemaVersion}
		schemaVersion.AdditionalProperties = jsonschema.FalseSchema
	}
	if name, ok := schema.Properties.Get("name"); ok && name != nil {
		name.Description = "Human-readable name for the workflow"
	}
	if on, ok := schema.Properties.Get("on"); ok && on != nil {
		on.Description = "Events that trigger this workflow"
	}
	if env, ok := schema.Properties.Get("env"); ok && env != nil {
		env.Description = "Environment variables set for every job in the workflow"
	}
	if jobs, ok := schema.Properties.Get("jobs"); ok && jobs != nil {
		jobs.Description = "Map of jobs where the key is the job name"
		jobs.PatternProperties = map[string]*jsonschema.Schema{
			JobNamePattern.String(): {
				Ref:         "#/$defs/Job",
				Description: "A job definition, aka a collection of steps",
			},
		}
		jobs.AdditionalProperties = jsonschema.FalseSchema
	}
	if aliases, ok := schema.Properties.Get("aliases"); ok && aliases != nil {
		aliases.Description = "Aliases for package URLs to create shorthand references"
		aliases.PatternProperties = map[string]*jsonschema.Schema{
			JobNamePattern.String(): {
				Ref:         "#/$defs/Alias",
				Description: "An alias to a package URL",
			},
		}
		aliases.AdditionalProperties = jsonschema.FalseSchema
	}
}

// WorkFlowSchema returns a JSON schema for a rehearse workflow
func WorkFlowSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: false, ExpandedStruct: true}
	schema := reflector.Reflect(&Workflow{})

	schema.ID = "https://raw.githubusercontent.com/rehearse-dev/rehearse/main/rehearse.schema.json"

	return schema
}
