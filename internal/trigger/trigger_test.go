package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/gridci/internal/config"
)

func TestEventValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Event{Name: EventPush}.Validate())
	require.NoError(t, Event{Name: EventPullRequest}.Validate())

	err := Event{Name: "deployment"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event")
}

func TestSelects_EventNames(t *testing.T) {
	t.Parallel()

	wf := &config.Workflow{
		Name: "ci",
		On:   []string{"push", "pull_request"},
	}

	assert.True(t, Selects(wf, Event{Name: "push", Ref: "refs/heads/main"}))
	assert.True(t, Selects(wf, Event{Name: "pull_request", Ref: "refs/heads/feature"}))
	assert.False(t, Selects(wf, Event{Name: "release", Ref: "refs/heads/main"}))
}

func TestSelects_NoBranchFilterAcceptsAnyRef(t *testing.T) {
	t.Parallel()

	wf := &config.Workflow{On: []string{"push"}}

	assert.True(t, Selects(wf, Event{Name: "push", Ref: "refs/heads/anything-at-all"}))
	assert.True(t, Selects(wf, Event{Name: "push", Ref: ""}))
}

func TestSelects_BranchFilters(t *testing.T) {
	t.Parallel()

	wf := &config.Workflow{
		On:       []string{"push"},
		Branches: []string{"main", "release/*"},
	}

	assert.True(t, Selects(wf, Event{Name: "push", Ref: "refs/heads/main"}))
	assert.True(t, Selects(wf, Event{Name: "push", Ref: "refs/heads/release/1.2"}))
	assert.False(t, Selects(wf, Event{Name: "push", Ref: "refs/heads/feature/x"}))
}

func TestSelects_NilWorkflow(t *testing.T) {
	t.Parallel()

	assert.False(t, Selects(nil, Event{Name: "push"}))
}
