// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package uses

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPolicy(t *testing.T) {
	assert.Equal(t, []string{"always", "if-not-present", "never"}, AvailablePolicies())
	assert.Equal(t, FetchPolicyIfNotPresent, DefaultFetchPolicy)

	var p FetchPolicy
	for _, valid := range AvailablePolicies() {
		require.NoError(t, p.Set(valid))
		assert.Equal(t, valid, p.String())
	}

	require.EqualError(t, p.Set("sometimes"), "invalid fetch policy: sometimes")
	assert.Equal(t, "string", p.Type())
}
