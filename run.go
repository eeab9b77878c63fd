// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

// Package rehearse provides a local CI workflow runner.
package rehearse

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cast"

	"github.com/rehearse-dev/rehearse/schema"
	v0 "github.com/rehearse-dev/rehearse/schema/v0"
	"github.com/rehearse-dev/rehearse/uses"
)

// OutputEnvVar is the environment variable holding the path steps write outputs to
const OutputEnvVar = "REHEARSE_OUTPUT"

// RuntimeOptions are flags that change execution behavior across a whole run
type RuntimeOptions struct {
	// Dry prints what would run without executing anything
	Dry bool
	// Env is the base process environment for run steps
	Env []string
	// MatrixFilter restricts matrix expansion to combinations matching these axis values
	MatrixFilter map[string]string
	// MaxParallel caps how many jobs of a wave run at once and is the default
	// cap on a job's matrix combinations when strategy.max-parallel is unset,
	// 0 means NumCPU
	MaxParallel int
}

// RunJob executes a single instance of a job in a workflow.
//
// For all `uses` steps, fetching and recursion happen through svc.
// Returns the job's declared outputs.
func RunJob(parent context.Context, svc *uses.FetcherService, wf v0.Workflow, jobName string, job v0.Job, tc TemplateContext, origin *url.URL, opts RuntimeOptions) (map[string]any, error) {
	logger := log.FromContext(parent)
	outputs := make(CommandOutputs)
	var firstError error

	instance := jobName
	if len(tc.Matrix) > 0 {
		instance = fmt.Sprintf("%s (%s)", jobName, v0.CombinationName(tc.Matrix))
	}

	start := time.Now()
	logger.Debug("run", "job", instance, "from", origin, "dry-run", opts.Dry)
	defer func() {
		logger.Debug("ran", "job", instance, "from", origin, "duration", time.Since(start))
	}()

	sigCtx, cancel := signal.NotifyContext(parent, syscall.SIGINT)
	defer cancel()

	var jobCancelledLogOnce sync.Once

	for i, step := range job.Steps {
		err := func(ctx context.Context) error {
			sub := logger.With("step", fmt.Sprintf("%s[%d]", instance, i))
			tc := tc
			tc.From = outputs

			shouldRun, err := If(step.If).ShouldRun(ctx, firstError != nil, tc)
			if err != nil {
				if firstError != nil {
					// if there was an error calculating if we should run during the error path
					// log the error, but don't return it
					sub.Error("invalid", "if", step.If, "error", err)
					return nil
				}
				return err
			}
			if !shouldRun {
				sub.Debug("completed", "skipped", true)
				return nil
			}

			if errors.Is(ctx.Err(), context.Canceled) {
				jobCancelledLogOnce.Do(func() {
					sub.Warn("job cancelled")
				})
				// reset to use the parent context, but still respect
				// SIGTERM and timeout cancellation
				ctx = parent
			}

			if errors.Is(parent.Err(), context.DeadlineExceeded) {
				// if the parent context timed out, but we still need to run, eg. if: always()
				// then fully reset the context
				ctx = context.WithoutCancel(parent)
			}

			if step.Timeout != "" {
				timeout, err := time.ParseDuration(step.Timeout)
				if err != nil {
					return err
				}
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			var stepResult map[string]any

			if step.Uses != "" {
				stepResult, err = handleUsesStep(ctx, svc, step, wf, tc, origin, opts)
			} else if step.Run != "" {
				stepResult, err = handleRunStep(ctx, step, wf, job, tc, opts)
			}

			if err != nil {
				if step.ContinueOnError {
					sub.Warn("step failed", "continue-on-error", true, "error", err)
					return nil
				}
				return err
			}

			sub.Debug("completed", "outputs", len(stepResult), "duration", time.Since(start))

			if step.ID != "" && len(stepResult) > 0 {
				outputs[step.ID] = make(map[string]any, len(stepResult))
				maps.Copy(outputs[step.ID], stepResult)
			}

			return nil
		}(sigCtx)

		if err != nil && firstError == nil {
			firstError = addTrace(err, fmt.Sprintf("at %s[%d] (%s)", instance, i, origin))
		}
	}

	tc.From = outputs
	jobOutputs, err := templateJobOutputs(sigCtx, job, tc, opts.Dry)
	if err != nil && firstError == nil {
		firstError = addTrace(err, fmt.Sprintf("at %s.outputs (%s)", instance, origin))
	}

	return jobOutputs, firstError
}

// templateJobOutputs renders a job's declared outputs after its steps have run
func templateJobOutputs(ctx context.Context, job v0.Job, tc TemplateContext, dry bool) (map[string]any, error) {
	if len(job.Outputs) == 0 {
		return nil, nil
	}

	result := make(map[string]any, len(job.Outputs))
	for name, expr := range job.Outputs {
		templated, err := TemplateString(ctx, tc, expr, dry)
		if err != nil {
			return nil, err
		}
		result[name] = templated
	}
	return result, nil
}

func handleRunStep(ctx context.Context, step v0.Step, wf v0.Workflow, job v0.Job, tc TemplateContext, opts RuntimeOptions) (map[string]any, error) {
	logger := log.FromContext(ctx)

	script, err := TemplateString(ctx, tc, step.Run, opts.Dry)
	if err != nil {
		if opts.Dry {
			printScript(logger, step.Shell, script)
		}
		return nil, err
	}

	printScript(logger, step.Shell, script)
	if opts.Dry {
		return nil, nil
	}

	outFile, err := os.CreateTemp("", "rehearse-output-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		outFile.Close()
		os.Remove(outFile.Name())
	}()

	env, err := prepareEnvironment(ctx, tc, opts.Env, outFile.Name(), wf.Env, job.Env, step.Env)
	if err != nil {
		return nil, err
	}

	shell := step.Shell
	if shell == "" {
		shell = job.Defaults.Run.Shell
	}
	var args []string

	switch shell {
	case "bash":
		args = []string{"-e", "-u", "-o", "pipefail", "-c", script}
	case "pwsh", "powershell":
		logger.Warn("support for this shell is currently untested and will potentially be removed in future versions", "shell", shell)
		args = []string{"-Command", "$ErrorActionPreference = 'Stop';", script, "; if ((Test-Path -LiteralPath variable:\\LASTEXITCODE)) { exit $LASTEXITCODE }"}
	case "", "sh":
		shell = "sh"
		args = []string{"-e", "-u", "-c", script}
	default:
		return nil, fmt.Errorf("unsupported shell: %s", shell)
	}

	dir := step.Dir
	if dir == "" {
		dir = job.Defaults.Run.Dir
	}

	cmd := exec.CommandContext(ctx, shell, args...)
	cmd.Env = env
	cmd.Dir = filepath.Join(CWDFromContext(ctx), dir)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Run(); err != nil {
		return nil, err
	}

	out, err := ParseOutput(outFile)
	if err != nil || len(out) == 0 {
		return nil, err
	}

	result := make(map[string]any, len(out))
	for k, v := range out {
		result[k] = v
	}

	return result, nil
}

type contextKey struct{ string }

// ContextKeyDir is the key used to store the current working directory in context.
var ContextKeyDir = contextKey{"dir"}

// WithCWDContext returns a new context with the given current working directory.
func WithCWDContext(ctx context.Context, dir string) context.Context {
	return context.WithValue(ctx, ContextKeyDir, dir)
}

// CWDFromContext returns the current working directory from the context.
// If no current working directory is set, it returns an empty string.
func CWDFromContext(ctx context.Context) string {
	if dir, ok := ctx.Value(ContextKeyDir).(string); ok {
		return dir
	}
	return "" // empty string is a valid dir for exec.Command, defaults to calling process's current directory
}

// prepareEnvironment assembles a run step's environment: the base process
// environment, then workflow, job and step env maps (later wins),
// INPUT_* and MATRIX_* variables, and the output file location.
func prepareEnvironment(ctx context.Context, tc TemplateContext, base []string, outFileName string, envs ...schema.Env) ([]string, error) {
	env := base
	if env == nil {
		env = os.Environ()
	}

	for _, m := range envs {
		for k, v := range m {
			val, err := TemplateString(ctx, tc, cast.ToString(v), false)
			if err != nil {
				return nil, err
			}
			env = append(env, fmt.Sprintf("%s=%s", k, val))
		}
	}

	for k, v := range tc.Inputs {
		env = append(env, fmt.Sprintf("INPUT_%s=%s", toEnvVar(k), cast.ToString(v)))
	}

	for k, v := range tc.Matrix {
		env = append(env, fmt.Sprintf("MATRIX_%s=%s", toEnvVar(k), cast.ToString(v)))
	}

	env = append(env, fmt.Sprintf("%s=%s", OutputEnvVar, outFileName))
	return env, nil
}

func toEnvVar(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
}
