package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/actionkv/pkg/codec"
	"github.com/ssargent/actionkv/pkg/config"
	"github.com/ssargent/actionkv/pkg/store"
)

// runAKV executes one akv invocation with its own command tree, as a fresh process would
func runAKV(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	a := newApp()
	var out, errOut bytes.Buffer
	a.root.SetOut(&out)
	a.root.SetErr(&errOut)
	a.root.SetIn(strings.NewReader(stdin))

	err := a.execute(args)
	return out.String(), errOut.String(), err
}

func testDataFile(t *testing.T) string {
	t.Helper()
	// Keep a real ~/.config/akv/config.yaml out of the tests
	t.Setenv("HOME", t.TempDir())
	return filepath.Join(t.TempDir(), "kv.akv")
}

func TestInsertGet(t *testing.T) {
	file := testDataFile(t)

	_, _, err := runAKV(t, "", "-f", file, "insert", "hello", "world")
	require.NoError(t, err)

	out, errOut, err := runAKV(t, "", "-f", file, "get", "hello")
	require.NoError(t, err)
	assert.Equal(t, "world\n", out)
	assert.Empty(t, errOut)

	t.Run("miss is reported on stderr", func(t *testing.T) {
		out, errOut, err := runAKV(t, "", "-f", file, "get", "nope")
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Equal(t, "nope not found\n", errOut)
	})

	t.Run("empty value is rejected", func(t *testing.T) {
		_, _, err := runAKV(t, "", "-f", file, "insert", "k", "")
		assert.ErrorIs(t, err, store.ErrEmptyValue)
	})

	t.Run("reserved key is rejected", func(t *testing.T) {
		_, _, err := runAKV(t, "", "-f", file, "insert", "+index", "v")
		assert.ErrorIs(t, err, store.ErrReservedKey)
	})

	t.Run("wrong argument count", func(t *testing.T) {
		_, _, err := runAKV(t, "", "-f", file, "get")
		assert.Error(t, err)
	})
}

func TestUpdateDelete(t *testing.T) {
	file := testDataFile(t)

	_, _, err := runAKV(t, "", "-f", file, "insert", "k", "v1")
	require.NoError(t, err)

	_, errOut, err := runAKV(t, "", "-f", file, "update", "missing", "x")
	require.NoError(t, err)
	assert.Equal(t, "missing not found\n", errOut)

	_, _, err = runAKV(t, "", "-f", file, "update", "k", "v2")
	require.NoError(t, err)

	out, _, err := runAKV(t, "", "-f", file, "get", "k")
	require.NoError(t, err)
	assert.Equal(t, "v2\n", out)

	_, _, err = runAKV(t, "", "-f", file, "delete", "k")
	require.NoError(t, err)

	_, errOut, err = runAKV(t, "", "-f", file, "get", "k")
	require.NoError(t, err)
	assert.Equal(t, "k not found\n", errOut)

	_, errOut, err = runAKV(t, "", "-f", file, "delete", "k")
	require.NoError(t, err)
	assert.Equal(t, "k not found\n", errOut)
}

func TestFindAndDump(t *testing.T) {
	file := testDataFile(t)

	for _, args := range [][]string{{"insert", "a", "1"}, {"insert", "b", "2"}, {"insert", "a", "3"}} {
		_, _, err := runAKV(t, "", append([]string{"-f", file}, args...)...)
		require.NoError(t, err)
	}

	// Each record is a 12 byte header plus one byte of key and one of value
	out, _, err := runAKV(t, "", "-f", file, "find", "a")
	require.NoError(t, err)
	assert.Equal(t, "28\t3\n", out)

	out, _, err = runAKV(t, "", "-f", file, "dump", "--values")
	require.NoError(t, err)
	assert.Equal(t, "0\tput\t\"a\"\t1\t\"1\"\n14\tput\t\"b\"\t1\t\"2\"\n28\tput\t\"a\"\t1\t\"3\"\n", out)

	out, _, err = runAKV(t, "", "-f", file, "keys")
	require.NoError(t, err)
	assert.Equal(t, "\"a\"\n\"b\"\n", out)
}

func TestDiskIndexMode(t *testing.T) {
	file := testDataFile(t)

	_, _, err := runAKV(t, "", "-f", file, "insert", "a", "1")
	require.NoError(t, err)

	t.Run("no snapshot yet", func(t *testing.T) {
		_, _, err := runAKV(t, "", "-f", file, "--index-mode", "disk", "get", "a")
		assert.ErrorIs(t, err, store.ErrNoSnapshot)
	})

	out, _, err := runAKV(t, "", "-f", file, "snapshot")
	require.NoError(t, err)
	assert.Contains(t, out, "1 keys")

	out, _, err = runAKV(t, "", "-f", file, "--index-mode", "disk", "get", "a")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	t.Run("writes refresh the snapshot", func(t *testing.T) {
		_, _, err := runAKV(t, "", "-f", file, "--index-mode", "disk", "insert", "b", "2")
		require.NoError(t, err)

		out, _, err := runAKV(t, "", "-f", file, "--index-mode", "disk", "get", "b")
		require.NoError(t, err)
		assert.Equal(t, "2\n", out)

		out, _, err = runAKV(t, "", "-f", file, "--index-mode", "disk", "stats")
		require.NoError(t, err)
		assert.Contains(t, out, "stale: false")
	})

	t.Run("stale after memory mode write", func(t *testing.T) {
		_, _, err := runAKV(t, "", "-f", file, "insert", "c", "3")
		require.NoError(t, err)

		_, errOut, err := runAKV(t, "", "-f", file, "--index-mode", "disk", "get", "c")
		require.NoError(t, err)
		assert.Equal(t, "c not found\n", errOut)

		out, _, err := runAKV(t, "", "-f", file, "--index-mode", "disk", "stats")
		require.NoError(t, err)
		assert.Contains(t, out, "stale: true")
	})

	t.Run("invalid mode", func(t *testing.T) {
		_, _, err := runAKV(t, "", "-f", file, "--index-mode", "bogus", "get", "a")
		assert.Error(t, err)
	})
}

func TestVerify(t *testing.T) {
	file := testDataFile(t)

	_, _, err := runAKV(t, "", "-f", file, "insert", "a", "1")
	require.NoError(t, err)

	out, _, err := runAKV(t, "", "-f", file, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "records:    1")
	assert.Contains(t, out, "status:     ok")

	// Flip the value byte of the only record
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(file, data, 0600))

	out, _, err = runAKV(t, "", "-f", file, "verify")
	assert.ErrorIs(t, err, codec.ErrCorruption)
	assert.Contains(t, out, "corrupt at offset 0")

	t.Run("corrupt log fails to load", func(t *testing.T) {
		_, errOut, err := runAKV(t, "", "-f", file, "get", "a")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load data from store")
		assert.Contains(t, errOut, "corrupted record")
	})

	t.Run("file is left untouched", func(t *testing.T) {
		after, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Equal(t, data, after)
	})
}

func TestShell(t *testing.T) {
	file := testDataFile(t)

	input := strings.Join([]string{
		`insert "my key" "my value"`,
		`get "my key"`,
		`update missing x`,
		`get "unterminated`,
		`bogus`,
		`keys my`,
		`exit`,
		`get "my key"`,
	}, "\n")

	out, errOut, err := runAKV(t, input, "-f", file, "shell")
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, "my value\n"), "commands after exit must not run")
	assert.Contains(t, out, "\"my key\"\n")
	assert.Contains(t, errOut, "missing not found")
	assert.Contains(t, errOut, "parse error")
	assert.Contains(t, errOut, `unknown command "bogus"`)

	t.Run("disk mode keeps the index across writes", func(t *testing.T) {
		input := "insert a 1\ninsert b 2\nget a\nget b\n"
		out, errOut, err := runAKV(t, input, "-f", file, "--index-mode", "disk", "shell")
		require.NoError(t, err)
		assert.Contains(t, out, "1\n")
		assert.Contains(t, out, "2\n")
		assert.NotContains(t, errOut, "not found")
	})

	t.Run("metrics", func(t *testing.T) {
		out, _, err := runAKV(t, "insert m 1\nstats\n", "-f", file, "--metrics", "shell")
		require.NoError(t, err)
		assert.Contains(t, out, `akv_operations_total{operation="insert",status="success"} 1`)
		assert.Contains(t, out, `akv_operations_total{operation="load",status="success"} 1`)
	})
}

func TestConfigFile(t *testing.T) {
	file := testDataFile(t)
	configPath := filepath.Join(t.TempDir(), "akv.yaml")

	out, _, err := runAKV(t, "", "--config", configPath, "-f", file, "--index-mode", "disk", "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, configPath)

	cfg, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, file, cfg.DataFile)
	assert.Equal(t, config.IndexModeDisk, cfg.IndexMode)

	t.Run("refuses to overwrite", func(t *testing.T) {
		_, _, err := runAKV(t, "", "--config", configPath, "config", "init")
		assert.Error(t, err)
	})

	t.Run("settings come from the file", func(t *testing.T) {
		_, _, err := runAKV(t, "", "--config", configPath, "insert", "k", "v")
		require.NoError(t, err)

		out, _, err := runAKV(t, "", "--config", configPath, "get", "k")
		require.NoError(t, err)
		assert.Equal(t, "v\n", out)
		assert.FileExists(t, file)
	})

	t.Run("flags override the file", func(t *testing.T) {
		out, _, err := runAKV(t, "", "--config", configPath, "--index-mode", "memory", "config", "show")
		require.NoError(t, err)
		assert.Contains(t, out, "index_mode: memory")
		assert.Contains(t, out, "data_file: "+file)
	})

	t.Run("missing config file", func(t *testing.T) {
		_, _, err := runAKV(t, "", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "get", "k")
		assert.Error(t, err)
	})
}

func TestStoreLockedByOtherProcess(t *testing.T) {
	file := testDataFile(t)

	kv, err := store.Open(file)
	require.NoError(t, err)
	defer kv.Close()

	_, _, err = runAKV(t, "", "-f", file, "get", "a")
	assert.Error(t, err)
}
