// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package uses

import (
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFetcherService(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		svc, err := NewFetcherService()
		require.NoError(t, err)
		assert.Equal(t, DefaultFetchPolicy, svc.policy)
		assert.NotNil(t, svc.client)
		assert.NotNil(t, svc.fsys)
	})

	t.Run("never without a store", func(t *testing.T) {
		t.Parallel()

		_, err := NewFetcherService(WithFetchPolicy(FetchPolicyNever))
		require.EqualError(t, err, "store is not initialized")
	})

	t.Run("invalid policy", func(t *testing.T) {
		t.Parallel()

		_, err := NewFetcherService(WithFetchPolicy("sometimes"))
		require.EqualError(t, err, "invalid fetch policy: sometimes")
	})
}

func TestGetFetcher(t *testing.T) {
	t.Run("scheme dispatch", func(t *testing.T) {
		t.Parallel()

		svc, err := NewFetcherService()
		require.NoError(t, err)

		testCases := []struct {
			uri         string
			expected    any
			expectedErr string
		}{
			{uri: "file:ci.yaml", expected: &LocalFetcher{}},
			{uri: "https://example.com/ci.yaml", expected: &HTTPFetcher{}},
			{uri: "http://example.com/ci.yaml", expected: &HTTPFetcher{}},
			{uri: "pkg:github/spec2nii/spec2nii@main#ci.yaml", expected: &GitHubClient{}},
			{uri: "pkg:gitlab/spec2nii/spec2nii@main#ci.yaml", expected: &GitLabClient{}},
			{uri: "oci://ghcr.io/spec2nii/ci:latest", expected: &OCIClient{}},
			{uri: "pkg:npm/spec2nii@main", expectedErr: `unsupported package type: "npm"`},
			{uri: "ftp://example.com/ci.yaml", expectedErr: `unsupported scheme: "ftp"`},
		}

		for _, tc := range testCases {
			t.Run(tc.uri, func(t *testing.T) {
				fetcher, err := svc.GetFetcher(mustParse(t, tc.uri))
				if tc.expectedErr != "" {
					require.EqualError(t, err, tc.expectedErr)
					return
				}
				require.NoError(t, err)
				assert.IsType(t, tc.expected, fetcher)
			})
		}
	})

	t.Run("nil uri", func(t *testing.T) {
		t.Parallel()

		svc, err := NewFetcherService()
		require.NoError(t, err)

		_, err = svc.GetFetcher(nil)
		require.EqualError(t, err, "uri cannot be nil")
	})

	t.Run("fetchers are cached per uri", func(t *testing.T) {
		t.Parallel()

		svc, err := NewFetcherService()
		require.NoError(t, err)

		uri := mustParse(t, "https://example.com/ci.yaml")

		first, err := svc.GetFetcher(uri)
		require.NoError(t, err)
		second, err := svc.GetFetcher(uri)
		require.NoError(t, err)

		assert.Same(t, first, second)
	})

	t.Run("remote fetchers are wrapped by the store", func(t *testing.T) {
		t.Parallel()

		store, err := NewLocalStore(afero.NewMemMapFs())
		require.NoError(t, err)

		svc, err := NewFetcherService(WithStorage(store))
		require.NoError(t, err)

		fetcher, err := svc.GetFetcher(mustParse(t, "https://example.com/ci.yaml"))
		require.NoError(t, err)
		assert.IsType(t, &StoreFetcher{}, fetcher)

		fetcher, err = svc.GetFetcher(mustParse(t, "file:ci.yaml"))
		require.NoError(t, err)
		assert.IsType(t, &LocalFetcher{}, fetcher)
	})

	t.Run("never policy always answers with the store", func(t *testing.T) {
		t.Parallel()

		store, err := NewLocalStore(afero.NewMemMapFs())
		require.NoError(t, err)

		uri := mustParse(t, "https://example.com/ci.yaml")
		require.NoError(t, store.Store(strings.NewReader("cached"), uri))

		svc, err := NewFetcherService(WithStorage(store), WithFetchPolicy(FetchPolicyNever))
		require.NoError(t, err)

		fetcher, err := svc.GetFetcher(uri)
		require.NoError(t, err)

		rc, err := fetcher.Fetch(t.Context(), uri)
		require.NoError(t, err)
		defer rc.Close()

		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "cached", string(b))
	})
}
