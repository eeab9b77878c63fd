// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package uses

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/package-url/packageurl-go"
)

// forgeToken resolves the API token for a hosted forge from the environment.
//
// A custom variable must be set. The well-known default is optional since
// public repositories can be read anonymously.
func forgeToken(envVar, fallback string) (string, error) {
	if envVar == "" {
		envVar = fallback
	}

	token, ok := os.LookupEnv(envVar)
	if !ok && envVar != fallback {
		return "", fmt.Errorf("token environment variable %s is not set", envVar)
	}

	return token, nil
}

// workflowPackageURL parses uri as a package URL of the given forge type
func workflowPackageURL(uri *url.URL, forgeType string) (packageurl.PackageURL, error) {
	if uri == nil {
		return packageurl.PackageURL{}, errors.New("uri is nil")
	}

	pURL, err := packageurl.FromString(uri.String())
	if err != nil {
		return packageurl.PackageURL{}, err
	}

	if pURL.Type != forgeType {
		return packageurl.PackageURL{}, fmt.Errorf("purl type is not %q: %q", forgeType, pURL.Type)
	}

	return pURL, nil
}
