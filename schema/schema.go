// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

// Package schema provides the workflow types and schema for rehearse
package schema

// Versioned is a tiny struct used to grab the schema version for a workflow
type Versioned struct {
	// SchemaVersion is the workflow schema that this workflow follows
	SchemaVersion string `json:"schema-version"`
}

// With is a map of string keys and primitive values used to pass parameters to called jobs and builtins
type With = map[string]any

// Env is a map of environment variable names to values
type Env = map[string]any

// Combination is a single realization of a job matrix, one value per axis
type Combination = map[string]any
