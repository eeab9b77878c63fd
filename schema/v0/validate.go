// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package v0

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/goccy/go-yaml"
	"github.com/xeipuuv/gojsonschema"

	"github.com/rehearse-dev/rehearse/schema"
)

// Read reads a workflow from a reader
func Read(r io.Reader) (Workflow, error) {
	if rs, ok := r.(io.Seeker); ok {
		_, err := rs.Seek(0, io.SeekStart)
		if err != nil {
			return Workflow{}, err
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return Workflow{}, err
	}

	var versioned schema.Versioned
	if err := yaml.Unmarshal(data, &versioned); err != nil {
		return Workflow{}, err
	}

	switch version := versioned.SchemaVersion; version {
	case SchemaVersion:
		var wf Workflow
		return wf, yaml.Unmarshal(data, &wf)
	default:
		return Workflow{}, fmt.Errorf("unsupported schema version: expected %q, got %q", SchemaVersion, version)
	}
}

var schemaOnce = sync.OnceValues(func() (string, error) {
	s := WorkFlowSchema()
	b, err := json.Marshal(s)
	return string(b), err
})

// Validate validates a workflow
func Validate(wf Workflow) error {
	if len(wf.Jobs) == 0 {
		return errors.New("no jobs available")
	}

	if len(wf.On.Events()) == 0 {
		return errors.New("no triggers defined")
	}

	if wf.On.WorkflowDispatch != nil {
		for inputName, param := range wf.On.WorkflowDispatch.Inputs {
			if ok := InputNamePattern.MatchString(inputName); !ok {
				return fmt.Errorf(".on.workflow_dispatch.inputs.%s does not satisfy %q", inputName, InputNamePattern.String())
			}
			if param.Validate != "" {
				_, err := regexp.Compile(param.Validate)
				if err != nil {
					return fmt.Errorf(".on.workflow_dispatch.inputs.%s: %v", inputName, err)
				}
			}
		}
	}

	for envName := range wf.Env {
		if ok := EnvVariablePattern.MatchString(envName); !ok {
			return fmt.Errorf(".env %q does not satisfy %q", envName, EnvVariablePattern.String())
		}
	}

	for name, job := range wf.Jobs {
		if ok := JobNamePattern.MatchString(name); !ok {
			return fmt.Errorf("job name %q does not satisfy %q", name, JobNamePattern.String())
		}

		if err := validateJob(wf, name, job); err != nil {
			return err
		}
	}

	// needs must form a DAG, reject cycles at load time
	dag := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	for _, name := range wf.Jobs.OrderedJobNames() {
		if err := dag.AddVertex(name); err != nil {
			return err
		}
	}
	for _, name := range wf.Jobs.OrderedJobNames() {
		job, _ := wf.Jobs.Find(name)
		for _, dep := range job.Needs {
			if err := dag.AddEdge(dep, name); err != nil {
				if errors.Is(err, graph.ErrEdgeCreatesCycle) {
					return fmt.Errorf(".jobs.%s.needs %q creates a dependency cycle", name, dep)
				}
				if errors.Is(err, graph.ErrEdgeAlreadyExists) {
					continue
				}
				return err
			}
		}
	}

	schemaJSON, err := schemaOnce()
	if err != nil {
		return err
	}

	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(wf))
	if err != nil {
		return err
	}

	if result.Valid() {
		return nil
	}

	var resErr error
	for _, err := range result.Errors() {
		resErr = errors.Join(resErr, errors.New(err.String()))
	}

	return resErr
}

func validateJob(wf Workflow, name string, job Job) error {
	for _, dep := range job.Needs {
		if dep == name {
			return fmt.Errorf(".jobs.%s.needs cannot reference itself", name)
		}
		if _, ok := wf.Jobs.Find(dep); !ok {
			return fmt.Errorf(".jobs.%s.needs %q not found", name, dep)
		}
	}

	for envName := range job.Env {
		if ok := EnvVariablePattern.MatchString(envName); !ok {
			return fmt.Errorf(".jobs.%s.env %q does not satisfy %q", name, envName, EnvVariablePattern.String())
		}
	}

	for outName := range job.Outputs {
		if ok := EnvVariablePattern.MatchString(outName); !ok {
			return fmt.Errorf(".jobs.%s.outputs %q does not satisfy %q", name, outName, EnvVariablePattern.String())
		}
	}

	if job.Strategy != nil {
		if job.Strategy.MaxParallel < 0 {
			return fmt.Errorf(".jobs.%s.strategy.max-parallel must not be negative", name)
		}
		for key := range job.Strategy.Matrix.Axes {
			if ok := MatrixKeyPattern.MatchString(key); !ok {
				return fmt.Errorf(".jobs.%s.strategy.matrix key %q does not satisfy %q", name, key, MatrixKeyPattern.String())
			}
		}
		// surface exclude errors at load time rather than mid-run
		if _, err := job.Strategy.Matrix.Expand(); err != nil {
			return fmt.Errorf(".jobs.%s.strategy.matrix: %w", name, err)
		}
	}

	ids := make(map[string]int, len(job.Steps))

	for idx, step := range job.Steps {
		// ensure that only one of run or uses fields is set
		switch {
		// both
		case step.Uses != "" && step.Run != "":
			return fmt.Errorf(".jobs.%s[%d] has both run and uses fields set", name, idx)
		// neither
		case step.Uses == "" && step.Run == "":
			return fmt.Errorf(".jobs.%s[%d] must have one of [run, uses] fields set", name, idx)
		}

		if step.ID != "" {
			if ok := JobNamePattern.MatchString(step.ID); !ok {
				return fmt.Errorf(".jobs.%s[%d].id %q does not satisfy %q", name, idx, step.ID, JobNamePattern.String())
			}

			if _, ok := ids[step.ID]; ok {
				return fmt.Errorf(".jobs.%s[%d] and .jobs.%s[%d] have the same ID %q", name, ids[step.ID], name, idx, step.ID)
			}
			ids[step.ID] = idx
		}

		if step.Uses != "" {
			u, err := url.Parse(step.Uses)
			if err != nil {
				return fmt.Errorf(".jobs.%s[%d].uses %w", name, idx, err)
			}

			if u.Scheme != "" {
				schemes := append(SupportedSchemes(), "builtin")

				if !slices.Contains(schemes, u.Scheme) {
					return fmt.Errorf(".jobs.%s[%d].uses %q is not one of [%s]", name, idx, u.Scheme, strings.Join(schemes, ", "))
				}
			}
		}

		if step.Dir != "" {
			if filepath.IsAbs(step.Dir) {
				return fmt.Errorf(".jobs.%s[%d].dir %q must not be absolute", name, idx, step.Dir)
			}
		}

		if step.Timeout != "" {
			_, err := time.ParseDuration(step.Timeout)
			if err != nil {
				return fmt.Errorf(".jobs.%s[%d].timeout %q is not a valid time duration", name, idx, step.Timeout)
			}
		}

		for envName := range step.Env {
			if ok := EnvVariablePattern.MatchString(envName); !ok {
				return fmt.Errorf(".jobs.%s[%d].env %q does not satisfy %q", name, idx, envName, EnvVariablePattern.String())
			}
		}
	}

	return nil
}

// ReadAndValidate reads and validates a workflow
func ReadAndValidate(r io.Reader) (Workflow, error) {
	wf, err := Read(r)
	if err != nil {
		return Workflow{}, err
	}
	return wf, Validate(wf)
}
