package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/earlybot/core/buildinfo"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "migrate", "version"})
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, buildinfo.String(), strings.TrimSpace(out.String()))
}

func TestResolvePath(t *testing.T) {
	t.Setenv(configEnvVar, "/env.yaml")
	assert.Equal(t, "/flag.yaml", resolvePath("/flag.yaml"))
	assert.Equal(t, "/env.yaml", resolvePath(""))
}

func TestMigrateRejectsBadConfig(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv(configEnvVar, "")
	root := newRootCmd()
	root.SetArgs([]string{"migrate"})
	assert.Error(t, root.Execute())
}
