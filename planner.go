// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package rehearse

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dominikbraun/graph"

	v0 "github.com/rehearse-dev/rehearse/schema/v0"
)

// Plan computes the execution order for the selected jobs as waves:
// every job in a wave only depends on jobs in earlier waves.
//
// Selecting a job pulls in its transitive dependencies. An empty selection
// means every job in the workflow.
func Plan(wf v0.Workflow, selected []string) ([][]string, error) {
	names := selected
	if len(names) == 0 {
		names = wf.Jobs.OrderedJobNames()
	}

	closure, err := dependencyClosure(wf, names)
	if err != nil {
		return nil, err
	}

	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	for _, name := range closure {
		if err := g.AddVertex(name); err != nil {
			return nil, err
		}
	}

	for _, name := range closure {
		job, _ := wf.Jobs.Find(name)
		for _, dep := range job.Needs {
			if err := g.AddEdge(dep, name); err != nil {
				if errors.Is(err, graph.ErrEdgeCreatesCycle) {
					return nil, fmt.Errorf("dependency cycle between %q and %q", dep, name)
				}
				return nil, err
			}
		}
	}

	adjacency, err := g.AdjacencyMap()
	if err != nil {
		return nil, err
	}

	// wave of a job is one past the deepest wave among its dependencies
	levels := make(map[string]int, len(closure))
	var level func(name string) int
	level = func(name string) int {
		if l, ok := levels[name]; ok {
			return l
		}
		job, _ := wf.Jobs.Find(name)
		max := 0
		for _, dep := range job.Needs {
			if l := level(dep) + 1; l > max {
				max = l
			}
		}
		levels[name] = max
		return max
	}

	depth := 0
	for name := range adjacency {
		if l := level(name); l > depth {
			depth = l
		}
	}

	waves := make([][]string, depth+1)
	for name, l := range levels {
		waves[l] = append(waves[l], name)
	}
	for _, wave := range waves {
		slices.Sort(wave)
	}

	return waves, nil
}

// dependencyClosure returns names plus every job they transitively need,
// in alphabetical order
func dependencyClosure(wf v0.Workflow, names []string) ([]string, error) {
	seen := make(map[string]bool, len(names))

	var visit func(name string) error
	visit = func(name string) error {
		if seen[name] {
			return nil
		}
		job, ok := wf.Jobs.Find(name)
		if !ok {
			return fmt.Errorf("job %q not found", name)
		}
		seen[name] = true
		for _, dep := range job.Needs {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	closure := make([]string, 0, len(seen))
	for name := range seen {
		closure = append(closure, name)
	}
	slices.Sort(closure)
	return closure, nil
}
