// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package rehearse

import (
	"fmt"
	"io"
	"runtime"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rehearse-dev/rehearse/schema"
	v0 "github.com/rehearse-dev/rehearse/schema/v0"
)

func TestTemplateString(t *testing.T) {
	tc := TemplateContext{
		Inputs: schema.With{"message": "hello", "count": 3},
		Matrix: schema.Combination{"python-version": "3.13"},
		From: CommandOutputs{
			"setup": {"venv": ".venv"},
		},
		Needs: JobOutputs{
			"build": {"artifact": "dist/pkg.whl"},
		},
	}

	testCases := []struct {
		name        string
		str         string
		expected    string
		expectedErr string
	}{
		{
			name:     "no expressions",
			str:      "python -m flake8 spec2nii",
			expected: "python -m flake8 spec2nii",
		},
		{
			name:     "input",
			str:      `echo "${{ input "message" }}"`,
			expected: `echo "hello"`,
		},
		{
			name:     "non-string input",
			str:      `retries=${{ input "count" }}`,
			expected: "retries=3",
		},
		{
			name:     "matrix",
			str:      `pyenv local ${{ matrix "python-version" }}`,
			expected: "pyenv local 3.13",
		},
		{
			name:     "from step outputs",
			str:      `source ${{ from "setup" "venv" }}/bin/activate`,
			expected: "source .venv/bin/activate",
		},
		{
			name:     "needs job outputs",
			str:      `twine upload ${{ needs "build" "artifact" }}`,
			expected: "twine upload dist/pkg.whl",
		},
		{
			name:     "platform fields",
			str:      "${{ .OS }} ${{ .ARCH }}",
			expected: fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH),
		},
		{
			name:        "unknown input",
			str:         `${{ input "nope" }}`,
			expectedErr: `input "nope" does not exist in [count message]`,
		},
		{
			name:        "unknown matrix axis",
			str:         `${{ matrix "os" }}`,
			expectedErr: `matrix has no axis "os"`,
		},
		{
			name:        "unknown step",
			str:         `${{ from "nope" "venv" }}`,
			expectedErr: `no outputs from step "nope"`,
		},
		{
			name:        "unknown job",
			str:         `${{ needs "nope" "artifact" }}`,
			expectedErr: `no outputs from job "nope"`,
		},
		{
			name:        "parse error",
			str:         "${{ input",
			expectedErr: "unclosed action",
		},
	}

	ctx := log.WithContext(t.Context(), log.New(io.Discard))

	for _, tcase := range testCases {
		t.Run(tcase.name, func(t *testing.T) {
			t.Parallel()

			result, err := TemplateString(ctx, tc, tcase.str, false)
			if tcase.expectedErr != "" {
				require.ErrorContains(t, err, tcase.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tcase.expected, result)
		})
	}

	t.Run("dry run renders placeholders instead of failing", func(t *testing.T) {
		result, err := TemplateString(ctx, TemplateContext{}, `${{ input "missing" }}`, true)
		require.NoError(t, err)
		assert.Contains(t, result, "input missing")
	})

	t.Run("which expands registered shortcuts", func(t *testing.T) {
		RegisterWhichShortcut("mytool", "/opt/bin/mytool")

		result, err := TemplateString(ctx, TemplateContext{}, `${{ which "mytool" }}`, false)
		require.NoError(t, err)
		assert.Equal(t, "/opt/bin/mytool", result)
	})
}

func TestTemplateWithMap(t *testing.T) {
	ctx := log.WithContext(t.Context(), log.New(io.Discard))
	tc := TemplateContext{Inputs: schema.With{"name": "world"}}

	out, err := TemplateWithMap(ctx, tc, schema.With{
		"greeting": `hello ${{ input "name" }}`,
		"numeric":  42,
		"nested": map[string]any{
			"inner": `${{ input "name" }}`,
		},
		"list": []any{`${{ input "name" }}`, true},
	}, false)
	require.NoError(t, err)

	assert.Equal(t, "hello world", out["greeting"])
	assert.Equal(t, 42, out["numeric"])
	assert.Equal(t, map[string]any{"inner": "world"}, out["nested"])
	assert.Equal(t, []any{"world", true}, out["list"])

	empty, err := TemplateWithMap(ctx, tc, nil, false)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestMergeWithAndParams(t *testing.T) {
	boolPtr := func(b bool) *bool { return &b }
	ctx := log.WithContext(t.Context(), log.New(io.Discard))

	testCases := []struct {
		name        string
		with        schema.With
		params      v0.InputMap
		env         map[string]string
		expected    schema.With
		expectedErr string
	}{
		{
			name:     "no params",
			with:     schema.With{"extra": "kept"},
			expected: schema.With{"extra": "kept"},
		},
		{
			name:        "missing required input",
			params:      v0.InputMap{"version": {}},
			expectedErr: `missing required input: "version"`,
		},
		{
			name:     "optional input may be absent",
			params:   v0.InputMap{"version": {Required: boolPtr(false)}},
			expected: schema.With{},
		},
		{
			name:     "default applied",
			params:   v0.InputMap{"version": {Default: "3.13"}},
			expected: schema.With{"version": "3.13"},
		},
		{
			name:     "default from env wins over default",
			params:   v0.InputMap{"version": {Default: "3.13", DefaultFromEnv: "PY_VERSION"}},
			env:      map[string]string{"PY_VERSION": "3.12"},
			expected: schema.With{"version": "3.12"},
		},
		{
			name:     "provided wins over default",
			with:     schema.With{"version": "3.11"},
			params:   v0.InputMap{"version": {Default: "3.13"}},
			expected: schema.With{"version": "3.11"},
		},
		{
			name:     "provided value cast to default's type",
			with:     schema.With{"count": "5"},
			params:   v0.InputMap{"count": {Default: 1}},
			expected: schema.With{"count": 5},
		},
		{
			name:        "uncastable value",
			with:        schema.With{"count": "five"},
			params:      v0.InputMap{"count": {Default: 1}},
			expectedErr: "unable to cast",
		},
		{
			name:     "validate passes",
			with:     schema.With{"version": "3.13"},
			params:   v0.InputMap{"version": {Validate: `^3\.\d+$`}},
			expected: schema.With{"version": "3.13"},
		},
		{
			name:        "validate fails",
			with:        schema.With{"version": "latest"},
			params:      v0.InputMap{"version": {Validate: `^3\.\d+$`}},
			expectedErr: "failed to validate: input=version, value=latest, regexp=^3\\.\\d+$",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			merged, err := MergeWithAndParams(ctx, tc.with, tc.params)
			if tc.expectedErr != "" {
				require.ErrorContains(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, merged)
		})
	}
}
