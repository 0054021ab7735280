package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/ssh2shell/internal/config"
	"github.com/rileyhilliard/ssh2shell/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, config.ConfigFileName)

	var out bytes.Buffer
	require.NoError(t, Init(InitOptions{NonInteractive: true, Out: &out}))
	assert.Contains(t, out.String(), "Created "+config.ConfigFileName)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Commands)
}

func TestInit_Existing(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("commands: [mine]\n"), 0600))

	t.Run("refuses without force", func(t *testing.T) {
		err := Init(InitOptions{NonInteractive: true, Out: &bytes.Buffer{}})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
		assert.Contains(t, err.Error(), "already exists")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "commands: [mine]\n", string(data))
	})

	t.Run("overwrites with force", func(t *testing.T) {
		require.NoError(t, Init(InitOptions{Overwrite: true, NonInteractive: true, Out: &bytes.Buffer{}}))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "mine")
	})
}

func TestInit_CustomPath(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "configs", "staging.yaml")

	require.NoError(t, Init(InitOptions{Path: path, NonInteractive: true, Out: &bytes.Buffer{}}))
	assert.FileExists(t, path)
}

func TestAdd(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("# deploy box\ncommands:\n  - uptime\n"), 0600))

	var out bytes.Buffer
	require.NoError(t, Add(AddOptions{Command: "df -h", Out: &out}))
	assert.Contains(t, out.String(), `Added "df -h"`)

	require.NoError(t, Add(AddOptions{Command: "df -h", Out: &bytes.Buffer{}}))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"uptime", "df -h"}, cfg.Commands)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# deploy box")
}

func TestAdd_Errors(t *testing.T) {
	t.Run("no config", func(t *testing.T) {
		isolate(t)
		err := Add(AddOptions{Command: "ls", Out: &bytes.Buffer{}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ssh2shell init")
	})

	t.Run("dotenv", func(t *testing.T) {
		dir := isolate(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, config.EnvFileName), []byte("HOST=box\n"), 0600))
		err := Add(AddOptions{Command: "ls", Out: &bytes.Buffer{}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "can't be stored")
	})

	t.Run("commands not a list", func(t *testing.T) {
		dir := isolate(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte("commands: uptime\n"), 0600))
		err := Add(AddOptions{Command: "ls", Out: &bytes.Buffer{}})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
	})
}
