// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package v0

import "regexp"

// JobNamePattern is a regular expression for valid job names, it is also used for step IDs
var JobNamePattern = regexp.MustCompile("^[_a-zA-Z][a-zA-Z0-9_-]*$")

// InputNamePattern is a regular expression for valid workflow_dispatch input names
var InputNamePattern = JobNamePattern

// MatrixKeyPattern is a regular expression for valid matrix axis names
var MatrixKeyPattern = regexp.MustCompile("^[_a-zA-Z][a-zA-Z0-9_-]*$")

// EnvVariablePattern is a regular expression for valid environment variable names
var EnvVariablePattern = regexp.MustCompile("^[a-zA-Z_]+[a-zA-Z0-9_]*$")
