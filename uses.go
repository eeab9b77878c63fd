// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package rehearse

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	v0 "github.com/rehearse-dev/rehearse/schema/v0"
	"github.com/rehearse-dev/rehearse/uses"
)

func handleUsesStep(ctx context.Context, svc *uses.FetcherService, step v0.Step, wf v0.Workflow, tc TemplateContext, origin *url.URL, opts RuntimeOptions) (map[string]any, error) {
	ctx = WithCWDContext(ctx, filepath.Join(CWDFromContext(ctx), step.Dir))

	if strings.HasPrefix(step.Uses, "builtin:") {
		return ExecuteBuiltin(ctx, step, tc, opts.Dry)
	}

	logger := log.FromContext(ctx)

	logger.Debug("templating", "input", tc.Inputs, "local", step.With)

	templatedWith, err := TemplateWithMap(ctx, tc, step.With, opts.Dry)
	if err != nil {
		return nil, err
	}

	logger.Debug("templated", "result", templatedWith)

	if _, ok := wf.Jobs.Find(step.Uses); ok {
		return callJob(ctx, svc, wf, step.Uses, templatedWith, origin, opts)
	}

	next, err := uses.ResolveRelative(origin, step.Uses, AliasMap(wf))
	if err != nil {
		return nil, err
	}

	nextWf, err := Fetch(ctx, svc, next)
	if err != nil {
		return nil, err
	}

	jobName := next.Query().Get(uses.QualifierJob)

	return callJob(ctx, svc, nextWf, jobName, templatedWith, next, opts)
}

// callJob runs a single job of a workflow on behalf of a uses step.
//
// The caller's `with` map is merged against the target workflow's
// workflow_dispatch inputs, the same contract a manual dispatch has.
func callJob(ctx context.Context, svc *uses.FetcherService, wf v0.Workflow, jobName string, with map[string]any, origin *url.URL, opts RuntimeOptions) (map[string]any, error) {
	if jobName == "" {
		names := wf.Jobs.OrderedJobNames()
		if len(names) != 1 {
			return nil, fmt.Errorf("no job selected, available: [%s]", strings.Join(names, ", "))
		}
		jobName = names[0]
	}

	job, ok := wf.Jobs.Find(jobName)
	if !ok {
		return nil, addTrace(fmt.Errorf("job %q not found", jobName), fmt.Sprintf("at (%s)", origin))
	}

	if len(job.Needs) > 0 {
		return nil, fmt.Errorf("job %q has dependencies and cannot be called directly", jobName)
	}

	var params v0.InputMap
	if wf.On.WorkflowDispatch != nil {
		params = wf.On.WorkflowDispatch.Inputs
	}
	inputs, err := MergeWithAndParams(ctx, with, params)
	if err != nil {
		return nil, addTrace(err, fmt.Sprintf("at (%s)", origin))
	}

	return runJobInstances(ctx, svc, wf, jobName, job, TemplateContext{Inputs: inputs}, origin, opts)
}

// AliasMap converts a workflow's aliases into the resolver's form
func AliasMap(wf v0.Workflow) map[string]uses.Alias {
	if len(wf.Aliases) == 0 {
		return nil
	}
	aliases := make(map[string]uses.Alias, len(wf.Aliases))
	for name, alias := range wf.Aliases {
		aliases[name] = uses.Alias{
			Type:         alias.Type,
			Base:         alias.Base,
			TokenFromEnv: alias.TokenFromEnv,
			Path:         alias.Path,
		}
	}
	return aliases
}

// Fetch fetches a workflow from a given URL.
func Fetch(ctx context.Context, svc *uses.FetcherService, uri *url.URL) (v0.Workflow, error) {
	logger := log.FromContext(ctx)

	fetcher, err := svc.GetFetcher(uri)
	if err != nil {
		return v0.Workflow{}, err
	}

	fetcherType := fmt.Sprintf("%T", fetcher)
	if sf, ok := fetcher.(*uses.StoreFetcher); ok {
		fetcherType = fmt.Sprintf("%T|%T", sf.Store, sf.Source)
	}

	logger.Debug("fetching", "url", uri, "fetcher", fetcherType)

	rc, err := fetcher.Fetch(ctx, uri)
	if err != nil {
		return v0.Workflow{}, err
	}
	defer rc.Close()

	return v0.ReadAndValidate(rc)
}

// FetchAll fetches all workflows referenced from a given workflow.
func FetchAll(ctx context.Context, svc *uses.FetcherService, wf v0.Workflow, src *url.URL) error {
	refs := []string{}

	for _, job := range wf.Jobs {
		for _, step := range job.Steps {
			if step.Uses == "" {
				continue
			}
			_, found := wf.Jobs.Find(step.Uses)
			if found {
				continue
			}

			if strings.HasPrefix(step.Uses, "builtin:") {
				continue
			}

			if slices.Contains(refs, step.Uses) { // could use a map[string] here, would also need to dedup same import but different jobs
				continue
			}

			refs = append(refs, step.Uses)
		}
	}

	for _, ref := range refs {
		resolved, err := uses.ResolveRelative(src, ref, AliasMap(wf))
		if err != nil {
			return fmt.Errorf("failed to resolve %q: %w", ref, err)
		}
		wf, err = Fetch(ctx, svc, resolved)
		if err != nil {
			return err
		}
		err = FetchAll(ctx, svc, wf, resolved)
		if err != nil {
			return err
		}
	}

	return nil
}

// ListAllLocal recursively discovers all local references contained in a workflow
func ListAllLocal(ctx context.Context, src *url.URL, fs afero.Fs) ([]string, error) {
	if src.Scheme != "file" {
		return nil, nil
	}

	relativeRefs := []string{}

	rc, err := uses.NewLocalFetcher(fs).Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	wf, err := v0.ReadAndValidate(rc)
	if err != nil {
		return nil, err
	}

	for _, job := range wf.Jobs {
		for _, step := range job.Steps {
			if step.Uses == "" {
				continue
			}
			uri, err := url.Parse(step.Uses)
			if err != nil {
				return nil, err
			}
			if uri.Scheme != "file" {
				continue
			}

			relativeRefs = append(relativeRefs, step.Uses)
		}
	}

	clone := *src
	clone.RawQuery = ""
	fullRefs := []string{clone.String()}

	for _, ref := range relativeRefs {
		resolved, err := uses.ResolveRelative(src, ref, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %q: %w", ref, err)
		}

		// strip query params, like ?job=
		resolved.RawQuery = ""

		rc, err := uses.NewLocalFetcher(fs).Fetch(ctx, resolved)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		_, err = v0.ReadAndValidate(rc)
		if err != nil {
			return nil, err
		}

		// now we know its a valid workflow, we can save the location
		fullRefs = append(fullRefs, resolved.String())

		sub, err := ListAllLocal(ctx, resolved, fs)
		if err != nil {
			return nil, err
		}
		fullRefs = append(fullRefs, sub...)
	}

	return slices.Compact(fullRefs), nil
}
