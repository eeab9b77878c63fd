// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package uses

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v62/github"
	"github.com/package-url/packageurl-go"
)

// GitHubClient fetches workflow files out of GitHub repositories
type GitHubClient struct {
	client *github.Client
}

// NewGitHubClient creates a GitHub API client.
//
// The token in tokenEnv (GITHUB_TOKEN when empty) is attached when present.
// base points the client at a GitHub Enterprise instance.
func NewGitHubClient(httpClient *http.Client, base, tokenEnv string) (*GitHubClient, error) {
	token, err := forgeToken(tokenEnv, "GITHUB_TOKEN")
	if err != nil {
		return nil, err
	}

	c := github.NewClient(httpClient)
	if token != "" {
		c = c.WithAuthToken(token)
	}

	if base != "" {
		baseURL, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}

		// go-github requires a trailing slash on custom endpoints
		if !strings.HasSuffix(baseURL.Path, "/") {
			baseURL.Path += "/"
		}
		c.BaseURL = baseURL
	}

	return &GitHubClient{client: c}, nil
}

// Fetch downloads a workflow file through the repository contents API.
//
// The purl version selects the git ref, the subpath selects the file.
func (g *GitHubClient) Fetch(ctx context.Context, uri *url.URL) (io.ReadCloser, error) {
	pURL, err := workflowPackageURL(uri, packageurl.TypeGithub)
	if err != nil {
		return nil, err
	}

	opts := &github.RepositoryContentGetOptions{Ref: pURL.Version}
	rc, resp, err := g.client.Repositories.DownloadContents(ctx, pURL.Namespace, pURL.Name, pURL.Subpath, opts)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		rc.Close()
		return nil, fmt.Errorf("failed to download %s: %s", pURL, resp.Status)
	}

	return rc, nil
}
