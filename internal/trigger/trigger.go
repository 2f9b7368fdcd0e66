// Package trigger decides whether an incoming event selects a workflow for
// execution.
package trigger

import (
	"fmt"
	"strings"

	"github.com/vk/gridci/internal/config"
)

// Known event names. Anything else is rejected at the CLI boundary.
const (
	EventPush        = "push"
	EventPullRequest = "pull_request"
)

// Event describes what caused this invocation of the runner.
type Event struct {
	// Name is the event kind, e.g. "push" or "pull_request".
	Name string

	// Ref is the git ref the event points at, e.g. "refs/heads/main".
	Ref string
}

// Validate checks that the event name is one the runner understands.
func (e Event) Validate() error {
	switch e.Name {
	case EventPush, EventPullRequest:
		return nil
	default:
		return fmt.Errorf("unknown event %q (expected %q or %q)", e.Name, EventPush, EventPullRequest)
	}
}

// Selects reports whether the workflow's trigger conditions accept the event.
// The event name must appear in the workflow's `on` list; if the workflow
// declares branch filters, the event's ref must match one of them.
func Selects(wf *config.Workflow, ev Event) bool {
	if wf == nil {
		return false
	}

	accepted := false
	for _, name := range wf.On {
		if name == ev.Name {
			accepted = true
			break
		}
	}
	if !accepted {
		return false
	}

	if len(wf.Branches) == 0 {
		return true
	}
	branch := branchOf(ev.Ref)
	for _, pattern := range wf.Branches {
		if matchBranch(pattern, branch) {
			return true
		}
	}
	return false
}

// branchOf strips the refs/heads/ prefix so filters are written against
// plain branch names.
func branchOf(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}

// matchBranch supports exact names and a single trailing-star glob
// ("release/*"). That covers what branch filters are used for in practice
// without pulling in a pattern library.
func matchBranch(pattern, branch string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(branch, prefix)
	}
	return pattern == branch
}
