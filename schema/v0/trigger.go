// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package v0

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/invopop/jsonschema"

	"github.com/rehearse-dev/rehearse/schema"
)

// On is the trigger surface of a workflow
//
// A nil trigger means the workflow does not react to that event.
type On struct {
	// Push triggers when commits land on a matching branch or tag
	Push *PushTrigger `json:"push,omitempty"`
	// PullRequest triggers when a pull request targets a matching branch
	PullRequest *PullRequestTrigger `json:"pull_request,omitempty"`
	// WorkflowDispatch triggers on manual invocation with optional inputs
	WorkflowDispatch *WorkflowDispatch `json:"workflow_dispatch,omitempty"`
}

// PushTrigger filters push events by branch and tag patterns
type PushTrigger struct {
	Branches []string `json:"branches,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// PullRequestTrigger filters pull request events by target branch patterns
type PullRequestTrigger struct {
	Branches []string `json:"branches,omitempty"`
}

// WorkflowDispatch describes the manual trigger and its input parameters
type WorkflowDispatch struct {
	Inputs InputMap `json:"inputs,omitempty"`
}

var _ yaml.BytesUnmarshaler = (*On)(nil)

// UnmarshalYAML decodes the trigger surface
//
// A trigger key that is present but null (`push:` with no value) enables
// that trigger with no filters.
func (o *On) UnmarshalYAML(b []byte) error {
	type alias On
	var a alias
	if err := yaml.Unmarshal(b, &a); err != nil {
		return err
	}

	var keys map[string]any
	if err := yaml.Unmarshal(b, &keys); err != nil {
		return err
	}

	*o = On(a)
	if _, ok := keys["push"]; ok && o.Push == nil {
		o.Push = &PushTrigger{}
	}
	if _, ok := keys["pull_request"]; ok && o.PullRequest == nil {
		o.PullRequest = &PullRequestTrigger{}
	}
	if _, ok := keys["workflow_dispatch"]; ok && o.WorkflowDispatch == nil {
		o.WorkflowDispatch = &WorkflowDispatch{}
	}
	return nil
}

// JSONSchemaExtend extends the JSON schema for the trigger surface
func (On) JSONSchemaExtend(s *jsonschema.Schema) {
	if push, ok := s.Properties.Get("push"); ok && push != nil {
		push.Description = "Run the workflow when commits are pushed"
	}
	if pr, ok := s.Properties.Get("pull_request"); ok && pr != nil {
		pr.Description = "Run the workflow when a pull request is opened or updated"
	}
	if wd, ok := s.Properties.Get("workflow_dispatch"); ok && wd != nil {
		wd.Description = "Run the workflow on manual invocation"
	}
	one := uint64(1)
	s.MinProperties = &one
}

// Events returns the names of all events this trigger surface reacts to
func (o On) Events() []string {
	events := make([]string, 0, 3)
	if o.Push != nil {
		events = append(events, schema.EventPush)
	}
	if o.PullRequest != nil {
		events = append(events, schema.EventPullRequest)
	}
	if o.WorkflowDispatch != nil {
		events = append(events, schema.EventWorkflowDispatch)
	}
	return events
}

// Matches reports whether the given event triggers this workflow
func (o On) Matches(event schema.Event) (bool, error) {
	switch event.Name {
	case schema.EventPush:
		if o.Push == nil {
			return false, nil
		}
		// defining only one filter kind opts the other ref kind out
		if event.Tag != "" {
			if o.Push.Tags == nil && o.Push.Branches != nil {
				return false, nil
			}
			return matchesAny(o.Push.Tags, event.Tag)
		}
		if o.Push.Branches == nil && o.Push.Tags != nil {
			return false, nil
		}
		return matchesAny(o.Push.Branches, event.Branch)
	case schema.EventPullRequest:
		if o.PullRequest == nil {
			return false, nil
		}
		return matchesAny(o.PullRequest.Branches, event.Branch)
	case schema.EventWorkflowDispatch:
		return o.WorkflowDispatch != nil, nil
	default:
		return false, fmt.Errorf("unknown event: %q", event.Name)
	}
}

// matchesAny reports whether ref matches any of the given patterns
//
// An empty pattern list matches every ref, mirroring hosted CI behavior.
func matchesAny(patterns []string, ref string) (bool, error) {
	if len(patterns) == 0 {
		return true, nil
	}
	for _, pattern := range patterns {
		ok, err := matchPattern(pattern, ref)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// matchPattern matches a ref against a branch/tag pattern
//
// "*" matches within a path segment, "**" matches across segments.
func matchPattern(pattern, ref string) (bool, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				sb.WriteString(".*")
				i++
			} else {
				sb.WriteString("[^/]*")
			}
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return false, fmt.Errorf("invalid ref pattern %q: %w", pattern, err)
	}
	return re.MatchString(ref), nil
}
