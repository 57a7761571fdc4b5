package command

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCommand implements Command for registry tests.
type TestCommand struct {
	*BaseCommand
	ran []string
}

func NewTestCommand(name, description, usage string) *TestCommand {
	return &TestCommand{BaseCommand: NewBaseCommand(name, description, usage)}
}

func (c *TestCommand) Execute(_ context.Context, args []string, _, _ io.Writer) error {
	c.ran = append(c.ran, args...)
	return nil
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(NewTestCommand("zeta", "last", "zeta"))
	r.Register(NewTestCommand("alpha", "first", "alpha"))

	cmd, err := r.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "first", cmd.Description())

	_, err = r.Get("nonexistent")
	require.Error(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, r.List())

	_, ok := r.Default()
	assert.False(t, ok)
	r.SetDefault("zeta")
	def, ok := r.Default()
	require.True(t, ok)
	assert.Equal(t, "zeta", def.Name())
}

func TestRegistryReplaces(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(NewTestCommand("run", "old", "run"))
	r.Register(NewTestCommand("run", "new", "run"))
	cmd, err := r.Get("run")
	require.NoError(t, err)
	assert.Equal(t, "new", cmd.Description())
	assert.Len(t, r.List(), 1)
}
