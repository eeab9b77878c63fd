// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package v0

import (
	"cmp"
	"slices"

	"github.com/invopop/jsonschema"

	"github.com/rehearse-dev/rehearse/schema"
)

// Job is an ordered list of steps plus the scheduling knobs around them
type Job struct {
	// Name is a human-readable name for the job, pure sugar
	Name string `json:"name,omitempty"`
	// RunsOn labels the platform the job expects, informational when running locally
	RunsOn string `json:"runs-on,omitempty"`
	// Needs lists jobs that must succeed before this one starts
	Needs []string `json:"needs,omitempty"`
	// If controls whether the job is executed
	If string `json:"if,omitempty"`
	// Env is set for every step in the job
	Env schema.Env `json:"env,omitempty"`
	// Strategy fans the job out over a matrix
	Strategy *Strategy `json:"strategy,omitempty"`
	// Defaults applies to every run step in the job
	Defaults Defaults `json:"defaults,omitempty"`
	// Outputs are templated after the last step and exposed to dependent jobs
	Outputs map[string]string `json:"outputs,omitempty"`
	// Steps run strictly in order
	Steps []Step `json:"steps"`
}

// Strategy controls how matrix combinations of a job are scheduled
type Strategy struct {
	// Matrix of axis values the job is instantiated across
	Matrix Matrix `json:"matrix"`
	// FailFast cancels sibling combinations on the first failure, defaults to true
	FailFast *bool `json:"fail-fast,omitempty"`
	// MaxParallel caps how many combinations run at once, 0 means unbounded
	MaxParallel int `json:"max-parallel,omitempty"`
}

// Defaults holds settings applied to every run step of a job
type Defaults struct {
	Run RunDefaults `json:"run,omitempty"`
}

// RunDefaults holds the shell and directory applied to run steps without their own
type RunDefaults struct {
	Shell string `json:"shell,omitempty"`
	Dir   string `json:"dir,omitempty"`
}

// JSONSchemaExtend extends the JSON schema for a job
func (Job) JSONSchemaExtend(schema *jsonschema.Schema) {
	schema.Description = "A job definition, aka a collection of steps"

	if runsOn, ok := schema.Properties.Get("runs-on"); ok && runsOn != nil {
		runsOn.Description = "Platform label the job expects, informational when running locally"
	}
	if needs, ok := schema.Properties.Get("needs"); ok && needs != nil {
		needs.Description = "Jobs that must succeed before this one starts"
	}
	if ifProp, ok := schema.Properties.Get("if"); ok && ifProp != nil {
		ifProp.Description = "Expression that controls whether the job is executed"
	}
	if steps, ok := schema.Properties.Get("steps"); ok && steps != nil {
		steps.Description = "Job steps, run strictly in order"
	}
	if outputs, ok := schema.Properties.Get("outputs"); ok && outputs != nil {
		outputs.Description = "Values templated after the last step and exposed to dependent jobs"
	}
}

// JobMap is a map of jobs, where the key is the job name
type JobMap map[string]Job

// JSONSchemaExtend extends the JSON schema for a job map
func (JobMap) JSONSchemaExtend(schema *jsonschema.Schema) {
	schema.PropertyNames = &jsonschema.Schema{
		Pattern: JobNamePattern.String(),
	}
}

// Find returns a job by name
func (jm JobMap) Find(call string) (Job, bool) {
	job, ok := jm[call]
	return job, ok
}

// OrderedJobNames returns a list of job names in alphabetical order
func (jm JobMap) OrderedJobNames() []string {
	names := make([]string, 0, len(jm))
	for k := range jm {
		names = append(names, k)
	}
	slices.SortStableFunc(names, cmp.Compare)
	return names
}
