// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package uses

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/package-url/packageurl-go"
)

// ResolveURL resolves a URI relative to a previous URI.
// It handles different schemes (file, http, https, pkg, oci) and resolves relative paths.
func ResolveURL(p, u string) (string, error) {
	prev, err := url.Parse(p)
	if err != nil {
		return "", err
	}

	uri, err := url.Parse(u)
	if err != nil {
		return "", err
	}

	if uri.Scheme == "" {
		return "", fmt.Errorf("must contain a scheme: %q", uri)
	}

	if uri.Opaque == "." {
		return "", fmt.Errorf("invalid relative path \".\"")
	}

	if prev.Scheme == "" {
		return "", fmt.Errorf("must contain a scheme: %q", prev)
	}

	// file -> http(s), pkg or oci
	if prev.Scheme == "file" && (uri.Scheme == "https" || uri.Scheme == "http" || uri.Scheme == "pkg" || uri.Scheme == "oci") {
		return u, nil
	}

	// http(s) -> http(s)
	if (prev.Scheme == "https" || prev.Scheme == "http") && (uri.Scheme == "https" || uri.Scheme == "http") {
		return u, nil
	}

	// pkg -> pkg
	if prev.Scheme == "pkg" && uri.Scheme == "pkg" {
		return u, nil
	}

	// oci -> oci
	if prev.Scheme == "oci" && uri.Scheme == "oci" {
		return u, nil
	}

	// file -> file
	if prev.Scheme == "file" && uri.Scheme == "file" {
		dir := filepath.Dir(prev.Opaque)
		if dir != "." {
			next := &url.URL{
				Scheme:   "file",
				Opaque:   filepath.Join(dir, uri.Opaque),
				RawQuery: uri.RawQuery,
			}
			if next.Opaque == "." {
				next.Opaque = DefaultFileName
			}
			return next.String(), nil
		}
		return u, nil
	}

	// http(s) -> file (assumes relative path) = http(s) + relative path
	if (prev.Scheme == "https" || prev.Scheme == "http") && uri.Scheme == "file" {
		next := *prev // https://github.com/golang/go/issues/38351
		next.Path = filepath.Join(filepath.Dir(prev.Path), uri.Opaque)
		next.RawQuery = uri.RawQuery
		if next.Path == "." || next.Path == "/" {
			next.Path = "/" + DefaultFileName
		}
		return next.String(), nil
	}

	// pkg -> file (assumes relative path) = pkg + relative path
	if prev.Scheme == "pkg" && uri.Scheme == "file" {
		pURL, err := packageurl.FromString(p)
		if err != nil {
			return "", err
		}
		pURL.Subpath = filepath.Join(filepath.Dir(pURL.Subpath), uri.Opaque)
		if pURL.Subpath == "." {
			pURL.Subpath = DefaultFileName
		}
		if pURL.Version == "" {
			pURL.Version = DefaultVersion
		}

		if jobName := uri.Query().Get(QualifierJob); jobName != "" {
			qm := pURL.Qualifiers.Map()
			qm[QualifierJob] = jobName
			pURL.Qualifiers = packageurl.QualifiersFromMap(qm)
		}

		return pURL.String(), nil
	}

	// oci -> file (assumes relative path) = oci + relative path in the fragment
	if prev.Scheme == "oci" && uri.Scheme == "file" {
		next := *prev
		prevPath := prev.Fragment
		if prevPath == "" {
			prevPath = DefaultFileName
		}
		next.Fragment = "file:" + filepath.Join(filepath.Dir(strings.TrimPrefix(prevPath, "file:")), uri.Opaque)
		next.RawQuery = uri.RawQuery
		return next.String(), nil
	}

	return "", fmt.Errorf("unsupported scheme: %q", uri.Scheme)
}

// ResolveRelative resolves a reference relative to the workflow it appeared in.
//
// A nil origin treats ref as an entrypoint. Aliases are expanded first: a path
// alias turns "name:job" into a file reference next to the aliased workflow,
// and a package alias rewrites the pkg: type and fills in default qualifiers.
func ResolveRelative(origin *url.URL, ref string, aliases map[string]Alias) (*url.URL, error) {
	if name, rest, ok := strings.Cut(ref, ":"); ok {
		if alias, found := aliases[name]; found && alias.Path != "" {
			next := &url.URL{Scheme: "file", Opaque: alias.Path}
			if rest != "" {
				next.RawQuery = url.Values{QualifierJob: []string{rest}}.Encode()
			}
			ref = next.String()
		}
	}

	var resolved string
	var err error
	if origin == nil {
		resolved = ref
	} else {
		resolved, err = ResolveURL(origin.String(), ref)
		if err != nil {
			return nil, err
		}
	}

	uri, err := url.Parse(resolved)
	if err != nil {
		return nil, err
	}

	if uri.Scheme == "pkg" {
		return resolvePkgAlias(uri, aliases)
	}

	if origin == nil && uri.Scheme == "" {
		return nil, fmt.Errorf("must contain a scheme: %q", uri)
	}

	return uri, nil
}

// resolvePkgAlias applies package aliases and default qualifiers to a pkg: URL
func resolvePkgAlias(uri *url.URL, aliases map[string]Alias) (*url.URL, error) {
	pURL, err := packageurl.FromString(uri.String())
	if err != nil {
		return nil, err
	}

	if resolved, ok := MapBasedResolver(aliases).ResolveAlias(pURL); ok {
		pURL = resolved
	}

	if pURL.Version == "" {
		pURL.Version = DefaultVersion
	}
	if pURL.Subpath == "" {
		pURL.Subpath = DefaultFileName
	}

	return url.Parse(pURL.String())
}
