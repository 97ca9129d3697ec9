package cheribuild

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutotoolsCrossAssembly(t *testing.T) {
	cfg := newTestConfig(t)
	tc, err := NewToolchainConfig(cfg, "nginx", "/b/nginx-128-build", InstallDirRootfsExtra)
	require.NoError(t, err)

	a := NewAutotoolsAdapter(tc)
	require.NoError(t, a.Assemble(newTestExecutor()))

	host, err := hostTriple()
	require.NoError(t, err)
	assert.Contains(t, a.ConfigureArgs, "--host=cheri-unknown-freebsd")
	assert.Contains(t, a.ConfigureArgs, "--target=cheri-unknown-freebsd")
	assert.Contains(t, a.ConfigureArgs, "--build="+host)
	assert.Contains(t, a.ConfigureArgs, "--libdir=/extra/nginx/libcheri")

	// flags ride along in CC, not in CFLAGS
	cc := a.ConfigureEnv["CC"]
	require.NotEmpty(t, cc)
	assert.True(t, strings.HasSuffix(strings.Fields(cc)[0], "cheri-unknown-freebsd-clang"))
	assert.Contains(t, cc, "-mabi=purecap")
	assert.Contains(t, cc, "-O2")
	assert.Contains(t, cc, "-target cheri-unknown-freebsd12")
	assert.Contains(t, cc, "--sysroot="+tc.SdkSysroot)
	_, hasCFLAGS := a.ConfigureEnv["CFLAGS"]
	assert.False(t, hasCFLAGS)

	cxx := a.ConfigureEnv["CXX"]
	assert.True(t, strings.HasSuffix(strings.Fields(cxx)[0], "cheri-unknown-freebsd-clang++"))
	assert.Contains(t, a.ConfigureEnv["CPP"], "clang-cpp")

	ldflags := a.ConfigureEnv["LDFLAGS"]
	assert.Contains(t, ldflags, "-fuse-ld=lld")
	assert.Contains(t, ldflags, "-Wl,-melf64btsmip_cheri_fbsd")

	// no empty entries survive assembly
	for key, value := range a.ConfigureEnv {
		assert.NotEmpty(t, value, "empty env entry %s", key)
	}
}

func TestAutotoolsNativeAssembly(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.CrossTarget = TargetNative
	tc, err := NewToolchainConfig(cfg, "demo", "/b/demo-native-build", InstallDirSdkSysroot)
	require.NoError(t, err)

	a := NewAutotoolsAdapter(tc)
	require.NoError(t, a.Assemble(newTestExecutor()))

	for _, arg := range a.ConfigureArgs {
		assert.False(t, strings.HasPrefix(arg, "--host="), "native builds must not set --host")
		assert.False(t, strings.HasPrefix(arg, "--libdir="))
	}
	// the plain compiler name, no triple prefix
	assert.True(t, strings.HasSuffix(strings.Fields(a.ConfigureEnv["CC"])[0], "/clang"))
	_, hasCPP := a.ConfigureEnv["CPP"]
	assert.False(t, hasCPP)
	_, hasLD := a.ConfigureEnv["LD"]
	assert.False(t, hasLD)
}

func TestAutotoolsLibdirRespectsSupportsLibdir(t *testing.T) {
	cfg := newTestConfig(t)
	tc, err := NewToolchainConfig(cfg, "nginx", "/b/nginx", InstallDirRootfsExtra)
	require.NoError(t, err)

	a := NewAutotoolsAdapter(tc)
	a.SupportsLibdir = false
	require.NoError(t, a.Assemble(newTestExecutor()))
	for _, arg := range a.ConfigureArgs {
		assert.False(t, strings.HasPrefix(arg, "--libdir="))
	}
}

func TestAutotoolsDoubleSetIsAnError(t *testing.T) {
	cfg := newTestConfig(t)
	tc, err := NewToolchainConfig(cfg, "demo", "/b/demo", InstallDirSdkSysroot)
	require.NoError(t, err)

	a := NewAutotoolsAdapter(tc)
	require.NoError(t, a.setEnvArg("LDFLAGS", "-first"))
	err = a.setEnvArg("LDFLAGS", "-second")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already set")
}

func TestAutotoolsEmptyValueIsDropped(t *testing.T) {
	cfg := newTestConfig(t)
	tc, err := NewToolchainConfig(cfg, "demo", "/b/demo", InstallDirSdkSysroot)
	require.NoError(t, err)

	a := NewAutotoolsAdapter(tc)
	require.NoError(t, a.setEnvArg("LDFLAGS", ""))
	_, ok := a.ConfigureEnv["LDFLAGS"]
	assert.False(t, ok)
}
