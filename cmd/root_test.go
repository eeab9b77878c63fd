// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package cmd

import (
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExitCode(t *testing.T) {
	assert.Equal(t, 0, ParseExitCode(nil))
	assert.Equal(t, 1, ParseExitCode(errors.New("some error")))

	cmd := exec.Command("sh", "-c", "exit 3")
	err := cmd.Run()
	require.Error(t, err)
	assert.Equal(t, 3, ParseExitCode(err))

	cmd = exec.Command("sh", "-c", "kill -INT $$")
	err = cmd.Run()
	require.Error(t, err)
	assert.Equal(t, 130, ParseExitCode(err))
}

func TestNewRootCmd(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{
		"with", "with-file", "matrix", "log-level", "version", "list", "explain",
		"from", "event", "ref", "timeout", "dry-run", "max-parallel", "directory",
		"config", "fetch-policy", "store", "gc", "fetch-all",
	} {
		assert.NotNil(t, root.Flags().Lookup(name), "missing flag %q", name)
	}

	assert.Equal(t, "file:ci.yaml", root.Flags().Lookup("from").DefValue)
	assert.Equal(t, "workflow_dispatch", root.Flags().Lookup("event").DefValue)
	assert.Equal(t, "1h0m0s", root.Flags().Lookup("timeout").DefValue)
}

func TestRootCmdRejectsUnknownEvent(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"--event", "schedule"})

	err := root.ExecuteContext(t.Context())
	require.ErrorContains(t, err, "schedule")
}
