package cli

import (
	"bytes"
	"testing"

	"github.com/leapstack-labs/leapstep/internal/cli/config"
	"github.com/leapstack-labs/leapstep/internal/cli/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_Commands(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"version", "run", "runs", "dag", "formats", "print", "sort", "means", "freq", "repl", "browse", "completion"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	for _, flag := range []string{"config", "program", "state", "env", "verbose", "output", "concurrency", "max-iterations", "timeout", "max-steps", "overlap", "decimals"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestRootCmd_LoadsConfigFromFlags(t *testing.T) {
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	dir := testutil.SetupTestProject(t)
	t.Chdir(dir)

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--env", "prod", "--decimals", "4", "--overlap", "warn", "version"})
	require.NoError(t, root.Execute())

	cfg := config.GetCurrentConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, 4, cfg.Display.Decimals)
	assert.Equal(t, "warn", cfg.Formats.Overlap)
	assert.Contains(t, out.String(), "LeapStep v"+Version)
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	t.Chdir(t.TempDir())

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--output", "yaml", "version"})
	assert.Error(t, root.Execute())
}

func TestCompletionCommand(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"completion", "bash"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "leapstep")
}
