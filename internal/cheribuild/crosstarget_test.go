package cheribuild

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheri128ToolchainConfig(t *testing.T) {
	cfg := newTestConfig(t)
	tc, err := NewToolchainConfig(cfg, "nginx", "/b/nginx-128-build", InstallDirRootfsExtra)
	require.NoError(t, err)

	assert.Equal(t, "cheri-unknown-freebsd", tc.TargetTriple)
	assert.Equal(t, "cheri-unknown-freebsd12", tc.TargetTripleWithVersion())
	assert.Equal(t, "purecap", tc.ABI)
	assert.Contains(t, tc.CommonFlags, "-mabi=purecap")
	assert.Contains(t, tc.CommonFlags, "-mcpu=cheri128")
	assert.Contains(t, tc.CommonFlags, "-mxgot")
	assert.Contains(t, tc.CommonFlags, "-g")
	assert.Equal(t, 16, tc.SizeofVoidPtr())

	// rootfs-extra install: prefix is the path relative to the OS root
	assert.Equal(t, "/extra/nginx", filepath.ToSlash(tc.InstallPrefix))
	assert.Equal(t, cfg.RootfsDir(), tc.DestDir)
	assert.Empty(t, tc.InstallDir)
}

func TestCheri256HasNoMcpuFlag(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.CheriBits = CheriBits256
	tc, err := NewToolchainConfig(cfg, "demo", "/b/demo-256-build", InstallDirSdkSysroot)
	require.NoError(t, err)

	assert.Equal(t, 32, tc.SizeofVoidPtr())
	for _, flag := range tc.CommonFlags {
		assert.NotContains(t, flag, "-mcpu=")
	}
	assert.Equal(t, "/usr/local", tc.InstallPrefix)
	assert.Equal(t, cfg.SdkSysrootDir(), tc.DestDir)
}

func TestMipsToolchainConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.CrossTarget = TargetMips
	tc, err := NewToolchainConfig(cfg, "demo", "/b/demo-mips-build", InstallDirSdkSysroot)
	require.NoError(t, err)

	assert.Equal(t, "mips64-unknown-freebsd", tc.TargetTriple)
	assert.Equal(t, "n64", tc.ABI)
	assert.Contains(t, tc.CommonFlags, "-mabi=n64")
	assert.Contains(t, tc.CommonFlags, "-msoft-float")
	assert.NotContains(t, tc.CommonFlags, "-mabi=purecap")
	assert.Equal(t, 8, tc.SizeofVoidPtr())
}

func TestNoUseMxgotAndNoDebugInfo(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.NoUseMxgot = true
	cfg.DebugInfo = false
	tc, err := NewToolchainConfig(cfg, "demo", "/b/demo", InstallDirSdkSysroot)
	require.NoError(t, err)
	assert.NotContains(t, tc.CommonFlags, "-mxgot")
	assert.NotContains(t, tc.CommonFlags, "-g")
}

func TestNativeToolchainConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.CrossTarget = TargetNative
	tc, err := NewToolchainConfig(cfg, "demo", "/b/demo-native-build", InstallDirSdkSysroot)
	require.NoError(t, err)

	assert.True(t, tc.CompilingForHost())
	assert.NotEmpty(t, tc.TargetTriple)
	assert.Equal(t, tc.TargetTriple, tc.TargetTripleWithVersion())
	assert.Equal(t, 8, tc.SizeofVoidPtr())
	assert.Equal(t, cfg.SdkDir, tc.InstallDir)
	assert.Empty(t, tc.DestDir)
	assert.Empty(t, tc.DefaultLDFlags())
	// only the debug flag, no cross flags
	assert.Equal(t, []string{"-g"}, tc.CommonFlags)
}

func TestNativeRootfsExtraUsesTestInstallPrefix(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.CrossTarget = TargetNative
	tc, err := NewToolchainConfig(cfg, "demo", "/b/demo-native-build", InstallDirRootfsExtra)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/b/demo-native-build", "test-install-prefix"), tc.InstallDir)
}

func TestUnmappedInstallDirIsAnError(t *testing.T) {
	cfg := newTestConfig(t)
	_, err := NewToolchainConfig(cfg, "demo", "/b/demo", InstallDirNone)
	require.Error(t, err)

	cfg.CrossTarget = TargetNative
	_, err = NewToolchainConfig(cfg, "demo", "/b/demo", InstallDirNone)
	require.Error(t, err)
}

func TestDefaultLDFlags(t *testing.T) {
	cfg := newTestConfig(t)
	tc, err := NewToolchainConfig(cfg, "demo", "/b/demo", InstallDirSdkSysroot)
	require.NoError(t, err)

	flags := tc.DefaultLDFlags()
	assert.Contains(t, flags, "-mabi=purecap")
	assert.Contains(t, flags, "-Wl,-melf64btsmip_cheri_fbsd")
	assert.Contains(t, flags, "-fuse-ld=lld")
	assert.Contains(t, flags, "-Wl,-z,notext")
	assert.Contains(t, flags, "--sysroot="+cfg.SdkSysrootDir())
	assert.Contains(t, flags, "-B"+cfg.SdkBinDir())
	assert.NotContains(t, flags, "-no-capsizefix")

	cfg.NewCapRelocs = true
	cfg.WithLibstatcounters = true
	tc, err = NewToolchainConfig(cfg, "demo", "/b/demo", InstallDirSdkSysroot)
	require.NoError(t, err)
	flags = tc.DefaultLDFlags()
	assert.Contains(t, flags, "-no-capsizefix")
	assert.Contains(t, flags, "-Wl,-process-cap-relocs")
	assert.Contains(t, flags, "-lstatcounters")

	cfg.CrossTarget = TargetMips
	tc, err = NewToolchainConfig(cfg, "demo", "/b/demo", InstallDirSdkSysroot)
	require.NoError(t, err)
	assert.Contains(t, tc.DefaultLDFlags(), "-Wl,-melf64btsmip_fbsd")
}

func TestParseCrossTarget(t *testing.T) {
	for _, valid := range []string{"cheri", "mips", "native"} {
		_, err := ParseCrossTarget(valid)
		assert.NoError(t, err)
	}
	_, err := ParseCrossTarget("riscv")
	assert.Error(t, err)
}
