// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package rehearse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v0 "github.com/rehearse-dev/rehearse/schema/v0"
)

func TestPlan(t *testing.T) {
	wf := v0.Workflow{
		Jobs: v0.JobMap{
			"lint":    {Steps: []v0.Step{{Run: "echo lint"}}},
			"test":    {Steps: []v0.Step{{Run: "echo test"}}},
			"build":   {Needs: []string{"lint", "test"}, Steps: []v0.Step{{Run: "echo build"}}},
			"publish": {Needs: []string{"build"}, Steps: []v0.Step{{Run: "echo publish"}}},
		},
	}

	testCases := []struct {
		name        string
		selected    []string
		expected    [][]string
		expectedErr string
	}{
		{
			name:     "all jobs",
			selected: nil,
			expected: [][]string{{"lint", "test"}, {"build"}, {"publish"}},
		},
		{
			name:     "independent job",
			selected: []string{"lint"},
			expected: [][]string{{"lint"}},
		},
		{
			name:     "selection pulls in transitive deps",
			selected: []string{"publish"},
			expected: [][]string{{"lint", "test"}, {"build"}, {"publish"}},
		},
		{
			name:        "unknown job",
			selected:    []string{"deploy"},
			expectedErr: `job "deploy" not found`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			waves, err := Plan(wf, tc.selected)
			if tc.expectedErr != "" {
				require.EqualError(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, waves)
		})
	}

	t.Run("dependency cycle", func(t *testing.T) {
		cyclic := v0.Workflow{
			Jobs: v0.JobMap{
				"a": {Needs: []string{"b"}, Steps: []v0.Step{{Run: "echo"}}},
				"b": {Needs: []string{"a"}, Steps: []v0.Step{{Run: "echo"}}},
			},
		}

		_, err := Plan(cyclic, nil)
		require.ErrorContains(t, err, "dependency cycle between")
	})
}
