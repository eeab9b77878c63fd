// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package schema

// Event names understood by the runner
const (
	EventPush             = "push"
	EventPullRequest      = "pull_request"
	EventWorkflowDispatch = "workflow_dispatch"
)

// AvailableEvents returns the list of event names a workflow can be triggered by
func AvailableEvents() []string {
	return []string{EventPush, EventPullRequest, EventWorkflowDispatch}
}

// Event is a single occurrence that may trigger a workflow run
type Event struct {
	// Name is one of push, pull_request or workflow_dispatch
	Name string
	// Branch is the short branch name the event refers to, if any
	Branch string
	// Tag is the tag name the event refers to, if any
	Tag string
	// Inputs carries the parameters of a workflow_dispatch event
	Inputs With
}
