package commands

import (
	"encoding/json"
	"testing"

	"github.com/leapstack-labs/leapstep/internal/cli/config"
	"github.com/leapstack-labs/leapstep/internal/cli/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDAGCommand(t *testing.T) {
	cmd := NewDAGCommand()

	assert.Equal(t, "dag", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.NotEmpty(t, cmd.Example)
}

func TestDAGCommand_Markdown(t *testing.T) {
	loadProject(t)

	out, _, err := execute(t, NewDAGCommand())
	require.NoError(t, err)

	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "## Level 0 (Roots)\n- data_staff (data)\n  - reads: raw.people\n  - writes: work.staff\n")
	assert.Contains(t, out, "- print_staff (print)\n  - reads: work.staff\n  - depends on: sort_staff\n")
	assert.Contains(t, out, "**Total Steps:** 4")
	assert.Contains(t, out, "**Total Dependencies:** 3")
	assert.Contains(t, out, "**Final Steps:** means_staff, print_staff")
}

func TestDAGCommand_JSON(t *testing.T) {
	loadProject(t)
	config.GetCurrentConfig().OutputFormat = "json"

	out, _, err := execute(t, NewDAGCommand())
	require.NoError(t, err)

	var view dagOutput
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Len(t, view.Levels, 3)
	assert.Equal(t, "data_staff", view.Levels[0].Steps[0].Name)
	assert.Equal(t, []string{"sort_staff"}, view.Levels[0].Steps[0].UsedBy)
	assert.Len(t, view.Levels[2].Steps, 2)
	assert.Equal(t, 4, view.TotalSteps)
	assert.Equal(t, []string{"data_staff"}, view.Roots)
	assert.Equal(t, []string{"means_staff", "print_staff"}, view.Leaves)
}
