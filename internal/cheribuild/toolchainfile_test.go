package cheribuild

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareToolchainFileSubstitution(t *testing.T) {
	out, err := prepareToolchainFile("set(X \"@FOO@\")\n", map[string]interface{}{
		"FOO": "bar",
	})
	require.NoError(t, err)
	assert.Equal(t, "set(X \"bar\")\n", out)
	assert.NotContains(t, out, "@")
}

func TestPrepareToolchainFileJoinsLists(t *testing.T) {
	out, err := prepareToolchainFile("@FLAGS@", map[string]interface{}{
		"FLAGS": []string{"-a", "-b", "-c"},
	})
	require.NoError(t, err)
	assert.Equal(t, "-a -b -c", out)
}

func TestPrepareToolchainFileMissingPlaceholder(t *testing.T) {
	// supplying a key the template does not know means the template is stale
	_, err := prepareToolchainFile("no tokens here\n", map[string]interface{}{
		"FOO": "bar",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "@FOO@")
}

func TestPrepareToolchainFileUnresolvedToken(t *testing.T) {
	_, err := prepareToolchainFile("@FOO@ @BAR@", map[string]interface{}{
		"FOO": "bar",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "@BAR@")
}

func TestPrepareToolchainFileSkipsNilValues(t *testing.T) {
	// a nil value for an optional key is skipped; its token must then not
	// exist in the template at all
	out, err := prepareToolchainFile("plain", map[string]interface{}{
		"OPTIONAL": nil,
	})
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
}

func TestWriteToolchainFileCross(t *testing.T) {
	cfg := newTestConfig(t)
	tc, err := NewToolchainConfig(cfg, "demo", filepath.Join(cfg.BuildRoot, "demo-128-build"), InstallDirSdkSysroot)
	require.NoError(t, err)

	// pretend a modern cmake exists so no symlink workaround is attempted
	e := newTestExecutor()
	binDir := t.TempDir()
	writeFakeTool(t, binDir, "cmake", "#!/bin/sh\necho 'cmake version 3.27.1'\n")
	e.PathPrefix = binDir

	adapter := NewCMakeAdapter(tc, filepath.Join(cfg.BuildRoot, "demo-128-build"))
	require.NoError(t, adapter.WriteToolchainFile(e))

	data, err := os.ReadFile(adapter.ToolchainFilePath())
	require.NoError(t, err)
	content := string(data)
	assert.NotContains(t, content, "@")
	assert.Contains(t, content, "cheri-unknown-freebsd")
	assert.Contains(t, content, "CMAKE_FIND_LIBRARY_CUSTOM_LIB_SUFFIX")
	assert.Contains(t, content, "-mabi=purecap")
	assert.Contains(t, content, "CMAKE_SYSROOT")
}

func TestWriteToolchainFileNative(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.CrossTarget = TargetNative
	buildDir := filepath.Join(cfg.BuildRoot, "demo-native-build")
	tc, err := NewToolchainConfig(cfg, "demo", buildDir, InstallDirSdkSysroot)
	require.NoError(t, err)

	adapter := NewCMakeAdapter(tc, buildDir)
	require.NoError(t, adapter.WriteToolchainFile(newTestExecutor()))

	data, err := os.ReadFile(adapter.ToolchainFilePath())
	require.NoError(t, err)
	content := string(data)
	assert.NotContains(t, content, "@")
	assert.NotContains(t, content, "CMAKE_SYSROOT")
	assert.True(t, strings.HasSuffix(adapter.ToolchainFilePath(), "NativeToolchain.cmake"))
}

func TestEnsureCheriLibSymlinks(t *testing.T) {
	sysroot := t.TempDir()
	require.NoError(t, ensureCheriLibSymlinks(sysroot))

	link, err := os.Readlink(filepath.Join(sysroot, "usr/lib/cheri"))
	require.NoError(t, err)
	assert.Equal(t, "../libcheri", link)

	// calling it again must not fail on the existing links
	require.NoError(t, ensureCheriLibSymlinks(sysroot))
}

func writeFakeTool(t *testing.T, dir, name, script string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
}
