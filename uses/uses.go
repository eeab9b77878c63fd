// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

// Package uses provides a cache and clients for storing and retrieving remote workflows.
package uses

import (
	"context"
	"io"
	"net/url"

	"github.com/package-url/packageurl-go"
)

// DefaultFileName is the default file name to use when a path resolves to "."
const DefaultFileName = "ci.yaml"

// DefaultVersion is the default version to use when a version is not specified
const DefaultVersion = "main"

// QualifierTokenFromEnv is the qualifier for the token to use when fetching a package
const QualifierTokenFromEnv = "token-from-env"

// QualifierBaseURL is the qualifier for the base URL to use when fetching a package
const QualifierBaseURL = "base"

// QualifierJob is the qualifier for the job to run when fetching a package
const QualifierJob = "job"

// Fetcher fetches a file from a local or remote location.
type Fetcher interface {
	Fetch(context.Context, *url.URL) (io.ReadCloser, error)
}

// Storage is a Fetcher that can also store and check for the existence of entries.
type Storage interface {
	Fetcher
	Store(r io.Reader, uri *url.URL) error
	Exists(uri *url.URL) (bool, error)
}

// PackageAliasMapper handles mapping package URL aliases to their resolved forms
type PackageAliasMapper interface {
	ResolveAlias(packageurl.PackageURL) (packageurl.PackageURL, bool)
}
