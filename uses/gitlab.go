// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package uses

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/package-url/packageurl-go"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLabClient fetches workflow files out of GitLab projects
type GitLabClient struct {
	client *gitlab.Client
}

// NewGitLabClient creates a GitLab API client.
//
// The token in tokenEnv (GITLAB_TOKEN when empty) is attached when present.
// base points the client at a self-managed instance, gitlab.com otherwise.
func NewGitLabClient(httpClient *http.Client, base, tokenEnv string) (*GitLabClient, error) {
	token, err := forgeToken(tokenEnv, "GITLAB_TOKEN")
	if err != nil {
		return nil, err
	}

	if base == "" {
		base = "https://gitlab.com"
	}

	opts := []gitlab.ClientOptionFunc{gitlab.WithBaseURL(base)}
	if httpClient != nil {
		opts = append(opts, gitlab.WithHTTPClient(httpClient))
	}

	c, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, err
	}

	return &GitLabClient{client: c}, nil
}

// Fetch downloads a workflow file through the raw file API.
//
// The purl namespace and name form the project ID, the version selects the
// git ref and the subpath selects the file.
func (g *GitLabClient) Fetch(ctx context.Context, uri *url.URL) (io.ReadCloser, error) {
	pURL, err := workflowPackageURL(uri, packageurl.TypeGitlab)
	if err != nil {
		return nil, err
	}

	pid := pURL.Namespace + "/" + pURL.Name
	opts := &gitlab.GetRawFileOptions{Ref: gitlab.Ptr(pURL.Version)}

	b, resp, err := g.client.RepositoryFiles.GetRawFile(pid, pURL.Subpath, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: %s", pURL, resp.Status)
	}

	return io.NopCloser(bytes.NewReader(b)), nil
}
