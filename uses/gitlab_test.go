// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package uses

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitLabFetcher(t *testing.T) {
	workflow := "schema-version: v0\non:\n  push:\njobs:\n  lint:\n    steps:\n      - run: flake8\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// client-go escapes dots in path segments
		p := strings.ReplaceAll(r.URL.EscapedPath(), "%2E", ".")
		if p == "/api/v4/projects/spec2nii%2Fspec2nii/repository/files/workflows%2Fci.yaml/raw" {
			assert.Equal(t, "main", r.URL.Query().Get("ref"))
			fmt.Fprint(w, workflow)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"404 File Not Found"}`)
	}))
	t.Cleanup(srv.Close)

	client, err := NewGitLabClient(srv.Client(), srv.URL, "")
	require.NoError(t, err)

	t.Run("fetches a workflow file", func(t *testing.T) {
		rc, err := client.Fetch(t.Context(), mustParse(t, "pkg:gitlab/spec2nii/spec2nii@main#workflows/ci.yaml"))
		require.NoError(t, err)
		defer rc.Close()

		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, workflow, string(b))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := client.Fetch(t.Context(), mustParse(t, "pkg:gitlab/spec2nii/spec2nii@main#workflows/release.yaml"))
		require.ErrorContains(t, err, "404")
	})

	t.Run("nil uri", func(t *testing.T) {
		_, err := client.Fetch(t.Context(), nil)
		require.EqualError(t, err, "uri is nil")
	})

	t.Run("wrong purl type", func(t *testing.T) {
		_, err := client.Fetch(t.Context(), mustParse(t, "pkg:github/spec2nii/spec2nii@main#ci.yaml"))
		require.EqualError(t, err, `purl type is not "gitlab": "github"`)
	})

	t.Run("base url defaults to gitlab.com", func(t *testing.T) {
		c, err := NewGitLabClient(nil, "", "")
		require.NoError(t, err)
		assert.Equal(t, "https://gitlab.com/api/v4/", c.client.BaseURL().String())

		c, err = NewGitLabClient(nil, "https://gitlab.example.com/", "")
		require.NoError(t, err)
		assert.Equal(t, "https://gitlab.example.com/api/v4/", c.client.BaseURL().String())
	})
}
