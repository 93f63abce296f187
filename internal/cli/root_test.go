package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestNewRootCommandRegistersEverySubcommand(t *testing.T) {
	root := NewRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"load", "delete", "validate", "check-duplicates", "report", "compare", "config"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestConfigCommandRegistersMigrateAndGenerate(t *testing.T) {
	root := NewRootCommand()
	configCmd := findCommand(root, "config")
	require := assert.New(t)
	require.NotNil(configCmd)

	names := map[string]bool{}
	for _, c := range configCmd.Commands() {
		names[c.Name()] = true
	}
	require.True(names["migrate"])
	require.True(names["generate"])
}

func findCommand(root *cobra.Command, name string) *cobra.Command {
	for _, c := range root.Commands() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}
