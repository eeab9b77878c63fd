// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package v0

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rehearse-dev/rehearse/schema"
)

func TestRead(t *testing.T) {
	t.Run("valid workflow", func(t *testing.T) {
		wf, err := Read(strings.NewReader(`
schema-version: v0
name: ci
on:
  push:
    branches: [main]
jobs:
  lint:
    steps:
      - run: echo lint
`))
		require.NoError(t, err)
		assert.Equal(t, SchemaVersion, wf.SchemaVersion)
		assert.Equal(t, "ci", wf.Name)
		require.Len(t, wf.Jobs, 1)
		assert.Equal(t, []string{"main"}, wf.On.Push.Branches)
	})

	t.Run("unsupported schema version", func(t *testing.T) {
		_, err := Read(strings.NewReader(`schema-version: v999`))
		require.EqualError(t, err, `unsupported schema version: expected "v0", got "v999"`)
	})

	t.Run("missing schema version", func(t *testing.T) {
		_, err := Read(strings.NewReader(`name: ci`))
		require.EqualError(t, err, `unsupported schema version: expected "v0", got ""`)
	})

	t.Run("seeks back to the start", func(t *testing.T) {
		r := strings.NewReader("schema-version: v0\njobs:\n  a:\n    steps:\n      - run: echo\n")
		_, err := r.Seek(5, 0)
		require.NoError(t, err)

		wf, err := Read(r)
		require.NoError(t, err)
		assert.Equal(t, SchemaVersion, wf.SchemaVersion)
	})
}

func TestValidate(t *testing.T) {
	valid := func() Workflow {
		return Workflow{
			SchemaVersion: SchemaVersion,
			On:            On{Push: &PushTrigger{}},
			Jobs: JobMap{
				"test": Job{
					Steps: []Step{{Run: "echo hi"}},
				},
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, Validate(valid()))
	})

	testCases := []struct {
		name        string
		mutate      func(*Workflow)
		expectedErr string
	}{
		{
			name:        "no jobs",
			mutate:      func(wf *Workflow) { wf.Jobs = nil },
			expectedErr: "no jobs available",
		},
		{
			name:        "no triggers",
			mutate:      func(wf *Workflow) { wf.On = On{} },
			expectedErr: "no triggers defined",
		},
		{
			name: "bad dispatch input name",
			mutate: func(wf *Workflow) {
				wf.On.WorkflowDispatch = &WorkflowDispatch{Inputs: InputMap{"0bad": {}}}
			},
			expectedErr: `.on.workflow_dispatch.inputs.0bad does not satisfy "^[_a-zA-Z][a-zA-Z0-9_-]*$"`,
		},
		{
			name: "bad dispatch input validate regex",
			mutate: func(wf *Workflow) {
				wf.On.WorkflowDispatch = &WorkflowDispatch{Inputs: InputMap{"version": {Validate: "["}}}
			},
			expectedErr: ".on.workflow_dispatch.inputs.version: error parsing regexp: missing closing ]: `[`",
		},
		{
			name:        "bad workflow env name",
			mutate:      func(wf *Workflow) { wf.Env = schema.Env{"BAD-NAME": "x"} },
			expectedErr: `.env "BAD-NAME" does not satisfy "^[a-zA-Z_]+[a-zA-Z0-9_]*$"`,
		},
		{
			name: "bad job name",
			mutate: func(wf *Workflow) {
				wf.Jobs["0bad"] = Job{Steps: []Step{{Run: "echo"}}}
				delete(wf.Jobs, "test")
			},
			expectedErr: `job name "0bad" does not satisfy "^[_a-zA-Z][a-zA-Z0-9_-]*$"`,
		},
		{
			name: "needs self reference",
			mutate: func(wf *Workflow) {
				wf.Jobs["test"] = Job{Needs: []string{"test"}, Steps: []Step{{Run: "echo"}}}
			},
			expectedErr: ".jobs.test.needs cannot reference itself",
		},
		{
			name: "needs unknown job",
			mutate: func(wf *Workflow) {
				wf.Jobs["test"] = Job{Needs: []string{"build"}, Steps: []Step{{Run: "echo"}}}
			},
			expectedErr: `.jobs.test.needs "build" not found`,
		},
		{
			name: "needs cycle",
			mutate: func(wf *Workflow) {
				wf.Jobs["a"] = Job{Needs: []string{"b"}, Steps: []Step{{Run: "echo"}}}
				wf.Jobs["b"] = Job{Needs: []string{"a"}, Steps: []Step{{Run: "echo"}}}
			},
			expectedErr: `.jobs.b.needs "a" creates a dependency cycle`,
		},
		{
			name: "bad job output name",
			mutate: func(wf *Workflow) {
				wf.Jobs["test"] = Job{Outputs: map[string]string{"out-put": "x"}, Steps: []Step{{Run: "echo"}}}
			},
			expectedErr: `.jobs.test.outputs "out-put" does not satisfy "^[a-zA-Z_]+[a-zA-Z0-9_]*$"`,
		},
		{
			name: "negative max-parallel",
			mutate: func(wf *Workflow) {
				wf.Jobs["test"] = Job{Strategy: &Strategy{MaxParallel: -1}, Steps: []Step{{Run: "echo"}}}
			},
			expectedErr: ".jobs.test.strategy.max-parallel must not be negative",
		},
		{
			name: "bad matrix exclude key",
			mutate: func(wf *Workflow) {
				wf.Jobs["test"] = Job{
					Strategy: &Strategy{Matrix: Matrix{
						Axes:    map[string][]any{"os": {"ubuntu-latest"}},
						Exclude: []schema.Combination{{"arch": "arm64"}},
					}},
					Steps: []Step{{Run: "echo"}},
				}
			},
			expectedErr: `.jobs.test.strategy.matrix: matrix exclude key "arch" is not an axis`,
		},
		{
			name: "both run and uses",
			mutate: func(wf *Workflow) {
				wf.Jobs["test"] = Job{Steps: []Step{{Run: "echo", Uses: "builtin:echo"}}}
			},
			expectedErr: ".jobs.test[0] has both run and uses fields set",
		},
		{
			name: "neither run nor uses",
			mutate: func(wf *Workflow) {
				wf.Jobs["test"] = Job{Steps: []Step{{Name: "hmm"}}}
			},
			expectedErr: ".jobs.test[0] must have one of [run, uses] fields set",
		},
		{
			name: "duplicate step IDs",
			mutate: func(wf *Workflow) {
				wf.Jobs["test"] = Job{Steps: []Step{{Run: "echo", ID: "a"}, {Run: "echo", ID: "a"}}}
			},
			expectedErr: `.jobs.test[0] and .jobs.test[1] have the same ID "a"`,
		},
		{
			name: "unsupported uses scheme",
			mutate: func(wf *Workflow) {
				wf.Jobs["test"] = Job{Steps: []Step{{Uses: "ftp://example.com/ci.yaml"}}}
			},
			expectedErr: `.jobs.test[0].uses "ftp" is not one of [file, http, https, pkg, oci, builtin]`,
		},
		{
			name: "absolute step dir",
			mutate: func(wf *Workflow) {
				wf.Jobs["test"] = Job{Steps: []Step{{Run: "echo", Dir: "/tmp"}}}
			},
			expectedErr: `.jobs.test[0].dir "/tmp" must not be absolute`,
		},
		{
			name: "invalid step timeout",
			mutate: func(wf *Workflow) {
				wf.Jobs["test"] = Job{Steps: []Step{{Run: "echo", Timeout: "eleven"}}}
			},
			expectedErr: `.jobs.test[0].timeout "eleven" is not a valid time duration`,
		},
		{
			name: "bad step env name",
			mutate: func(wf *Workflow) {
				wf.Jobs["test"] = Job{Steps: []Step{{Run: "echo", Env: schema.Env{"1BAD": "x"}}}}
			},
			expectedErr: `.jobs.test[0].env "1BAD" does not satisfy "^[a-zA-Z_]+[a-zA-Z0-9_]*$"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			wf := valid()
			tc.mutate(&wf)
			require.EqualError(t, Validate(wf), tc.expectedErr)
		})
	}
}

func TestReadAndValidate(t *testing.T) {
	wf, err := ReadAndValidate(strings.NewReader(`
schema-version: v0
on:
  workflow_dispatch:
    inputs:
      message:
        description: What to print
        default: hello
jobs:
  greet:
    steps:
      - run: echo "${{ input "message" }}"
`))
	require.NoError(t, err)
	assert.Equal(t, []string{schema.EventWorkflowDispatch}, wf.On.Events())

	_, err = ReadAndValidate(strings.NewReader(`
schema-version: v0
on:
  push: {}
jobs: {}
`))
	require.EqualError(t, err, "no jobs available")
}
