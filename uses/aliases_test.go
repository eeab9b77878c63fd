// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package uses

import (
	"testing"

	"github.com/package-url/packageurl-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapBasedResolver(t *testing.T) {
	resolver := MapBasedResolver{
		"company": {
			Type:         "gitlab",
			Base:         "https://gitlab.company.com",
			TokenFromEnv: "COMPANY_TOKEN",
		},
		"local": {
			Path: "workflows/common.yaml",
		},
	}

	t.Run("package alias rewrites type and fills qualifiers", func(t *testing.T) {
		pURL, err := packageurl.FromString("pkg:company/group/repo@v1#ci.yaml")
		require.NoError(t, err)

		resolved, ok := resolver.ResolveAlias(pURL)
		require.True(t, ok)

		assert.Equal(t, "gitlab", resolved.Type)
		assert.Equal(t, "group", resolved.Namespace)
		assert.Equal(t, "repo", resolved.Name)
		assert.Equal(t, "v1", resolved.Version)
		assert.Equal(t, "ci.yaml", resolved.Subpath)

		qualifiers := resolved.Qualifiers.Map()
		assert.Equal(t, "https://gitlab.company.com", qualifiers[QualifierBaseURL])
		assert.Equal(t, "COMPANY_TOKEN", qualifiers[QualifierTokenFromEnv])
	})

	t.Run("explicit qualifiers win over the alias", func(t *testing.T) {
		pURL, err := packageurl.FromString("pkg:company/group/repo@v1?token-from-env=OTHER_TOKEN#ci.yaml")
		require.NoError(t, err)

		resolved, ok := resolver.ResolveAlias(pURL)
		require.True(t, ok)
		assert.Equal(t, "OTHER_TOKEN", resolved.Qualifiers.Map()[QualifierTokenFromEnv])
	})

	t.Run("path aliases do not rewrite purls", func(t *testing.T) {
		pURL, err := packageurl.FromString("pkg:local/group/repo@v1")
		require.NoError(t, err)

		_, ok := resolver.ResolveAlias(pURL)
		assert.False(t, ok)
	})

	t.Run("unknown type passes through", func(t *testing.T) {
		pURL, err := packageurl.FromString("pkg:github/group/repo@v1")
		require.NoError(t, err)

		resolved, ok := resolver.ResolveAlias(pURL)
		assert.False(t, ok)
		assert.Equal(t, pURL, resolved)
	})
}
