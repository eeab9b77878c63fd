// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package rehearse

import (
	"context"
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"

	"github.com/rehearse-dev/rehearse/schema"
	v0 "github.com/rehearse-dev/rehearse/schema/v0"
	"github.com/rehearse-dev/rehearse/uses"
)

// JobStatus is the terminal state of a job in a run
type JobStatus string

// Terminal job states
const (
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
	StatusSkipped   JobStatus = "skipped"
)

// JobResult is the outcome of a single job across all of its matrix instances
type JobResult struct {
	Status  JobStatus
	Outputs map[string]any
	Err     error
}

// Run executes a workflow for the given event.
//
// Jobs are planned into dependency waves, jobs within a wave run
// concurrently, and matrix combinations of a job are scheduled per the job's
// strategy. Naming jobs explicitly bypasses the trigger gate; an empty
// selection runs the whole workflow if the event matches its triggers.
func Run(parent context.Context, svc *uses.FetcherService, wf v0.Workflow, event schema.Event, jobNames []string, origin *url.URL, opts RuntimeOptions) (map[string]JobResult, error) {
	logger := log.FromContext(parent)

	if len(jobNames) == 0 {
		matched, err := wf.On.Matches(event)
		if err != nil {
			return nil, addTrace(err, fmt.Sprintf("at (%s)", origin))
		}
		if !matched {
			logger.Info("workflow not triggered", "event", event.Name, "on", strings.Join(wf.On.Events(), ", "))
			return nil, nil
		}
	}

	var params v0.InputMap
	if wf.On.WorkflowDispatch != nil {
		params = wf.On.WorkflowDispatch.Inputs
	}
	inputs, err := MergeWithAndParams(parent, event.Inputs, params)
	if err != nil {
		return nil, addTrace(err, fmt.Sprintf("at (%s)", origin))
	}

	waves, err := Plan(wf, jobNames)
	if err != nil {
		return nil, addTrace(err, fmt.Sprintf("at (%s)", origin))
	}

	var (
		mu      sync.Mutex
		results = make(map[string]JobResult)
	)

	if opts.MaxParallel <= 0 {
		opts.MaxParallel = runtime.NumCPU()
	}

	var firstError error

	for _, wave := range waves {
		group, gctx := errgroup.WithContext(parent)
		group.SetLimit(opts.MaxParallel)

		// on an if evaluation error, stop scheduling but drain the wave
		// before returning so no job keeps running past Run
		var waveErr error

		for _, name := range wave {
			job, _ := wf.Jobs.Find(name)

			mu.Lock()
			depFailed := false
			for _, dep := range job.Needs {
				if results[dep].Status != StatusSucceeded {
					depFailed = true
					break
				}
			}
			jobNeeds := make(JobOutputs, len(job.Needs))
			for _, dep := range job.Needs {
				jobNeeds[dep] = results[dep].Outputs
			}
			mu.Unlock()

			tc := TemplateContext{Inputs: inputs, Needs: jobNeeds}

			shouldRun, err := If(job.If).ShouldRun(parent, depFailed, tc)
			if err != nil {
				waveErr = addTrace(err, fmt.Sprintf("at %s.if (%s)", name, origin))
				break
			}
			if !shouldRun {
				logger.Info("skipped", "job", name)
				mu.Lock()
				results[name] = JobResult{Status: StatusSkipped}
				mu.Unlock()
				continue
			}

			warnForeignPlatform(logger, name, job.RunsOn)

			group.Go(func() error {
				outputs, err := runJobInstances(gctx, svc, wf, name, job, tc, origin, opts)

				mu.Lock()
				result := JobResult{Status: StatusSucceeded, Outputs: outputs}
				if err != nil {
					result.Status = StatusFailed
					result.Err = err
				}
				results[name] = result
				mu.Unlock()

				// hold the error until the whole wave has finished
				return nil
			})
		}

		if err := group.Wait(); err != nil && firstError == nil {
			firstError = err
		}
		if waveErr != nil {
			return results, waveErr
		}

		mu.Lock()
		for _, name := range wave {
			if result, ok := results[name]; ok && result.Err != nil && firstError == nil {
				firstError = result.Err
			}
		}
		mu.Unlock()
	}

	return results, firstError
}

// runJobInstances expands the job's matrix and runs every combination per
// the job strategy
func runJobInstances(ctx context.Context, svc *uses.FetcherService, wf v0.Workflow, name string, job v0.Job, tc TemplateContext, origin *url.URL, opts RuntimeOptions) (map[string]any, error) {
	if job.Strategy == nil {
		return RunJob(ctx, svc, wf, name, job, tc, origin, opts)
	}

	combos, err := job.Strategy.Matrix.Expand()
	if err != nil {
		return nil, addTrace(err, fmt.Sprintf("at %s.strategy.matrix (%s)", name, origin))
	}

	combos = filterCombinations(combos, opts.MatrixFilter)
	if len(combos) == 0 {
		log.FromContext(ctx).Warn("matrix expanded to no combinations", "job", name)
		return nil, nil
	}

	failFast := job.Strategy.FailFast == nil || *job.Strategy.FailFast

	instanceCtx := ctx
	var group *errgroup.Group
	if failFast {
		group, instanceCtx = errgroup.WithContext(ctx)
	} else {
		group = &errgroup.Group{}
	}
	// strategy.max-parallel overrides the run-level cap for this job's
	// combinations, otherwise the run-level cap carries through
	limit := opts.MaxParallel
	if job.Strategy.MaxParallel > 0 {
		limit = job.Strategy.MaxParallel
	}
	if limit > 0 {
		group.SetLimit(limit)
	}

	var (
		mu      sync.Mutex
		outputs map[string]any
	)

	for _, combo := range combos {
		group.Go(func() error {
			itc := tc
			itc.Matrix = combo

			out, err := RunJob(instanceCtx, svc, wf, name, job, itc, origin, opts)
			if err != nil {
				return err
			}

			// last finished combination wins, same as hosted runners
			mu.Lock()
			if out != nil {
				outputs = out
			}
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return outputs, err
	}
	return outputs, nil
}

// filterCombinations keeps combinations whose axis values match every filter entry
func filterCombinations(combos []schema.Combination, filter map[string]string) []schema.Combination {
	if len(filter) == 0 {
		return combos
	}

	kept := combos[:0]
	for _, combo := range combos {
		matches := true
		for k, v := range filter {
			if cast.ToString(combo[k]) != v {
				matches = false
				break
			}
		}
		if matches {
			kept = append(kept, combo)
		}
	}
	return kept
}

// warnForeignPlatform logs when a job's runs-on label does not line up with
// the local platform, script behavior may differ
func warnForeignPlatform(logger *log.Logger, name, runsOn string) {
	if runsOn == "" {
		return
	}

	label := strings.ToLower(runsOn)
	local := runtime.GOOS

	compatible := false
	switch {
	case strings.Contains(label, "ubuntu"), strings.Contains(label, "linux"):
		compatible = local == "linux"
	case strings.Contains(label, "macos"), strings.Contains(label, "darwin"):
		compatible = local == "darwin"
	case strings.Contains(label, "windows"):
		compatible = local == "windows"
	default:
		// self-hosted or custom label, nothing to check against
		return
	}

	if !compatible {
		logger.Warn("job targets another platform", "job", name, "runs-on", runsOn, "local", local)
	}
}
