// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package rehearse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutput(t *testing.T) {
	testCases := []struct {
		name        string
		content     string
		expected    map[string]string
		expectedErr string
	}{
		{
			name:     "empty",
			content:  "",
			expected: map[string]string{},
		},
		{
			name:     "simple key=value",
			content:  "version=1.2.3\nsha=abc123\n",
			expected: map[string]string{"version": "1.2.3", "sha": "abc123"},
		},
		{
			name:     "value containing equals",
			content:  "flags=-e -u -o pipefail=yes\n",
			expected: map[string]string{"flags": "-e -u -o pipefail=yes"},
		},
		{
			name:     "blank lines are skipped",
			content:  "\n\na=1\n\nb=2\n",
			expected: map[string]string{"a": "1", "b": "2"},
		},
		{
			name:     "key whitespace is trimmed",
			content:  " spaced =value\n",
			expected: map[string]string{"spaced": "value"},
		},
		{
			name:     "multiline value",
			content:  "report<<EOF\nline one\nline two\nEOF\n",
			expected: map[string]string{"report": "line one\nline two"},
		},
		{
			name:     "last assignment wins",
			content:  "a=1\na=2\n",
			expected: map[string]string{"a": "2"},
		},
		{
			name:        "missing delimiter after <<",
			content:     "report<<\noops\n",
			expectedErr: "invalid syntax: missing delimiter after '<<'",
		},
		{
			name:        "unterminated multiline value",
			content:     "report<<EOF\nline one\n",
			expectedErr: "invalid syntax: multiline value not terminated",
		},
		{
			name:        "bare line",
			content:     "not a pair\n",
			expectedErr: "invalid syntax: non-delimited multiline value",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out, err := ParseOutput(strings.NewReader(tc.content))
			if tc.expectedErr != "" {
				require.EqualError(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, out)
		})
	}

	t.Run("seeks back to the start", func(t *testing.T) {
		r := strings.NewReader("a=1\n")
		_, err := r.Seek(2, 0)
		require.NoError(t, err)

		out, err := ParseOutput(r)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"a": "1"}, out)
	})
}
