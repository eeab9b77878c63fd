// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package v0

// SupportedSchemes returns a list of supported schemes for step `uses` references
func SupportedSchemes() []string {
	return []string{"file", "http", "https", "pkg", "oci"}
}
