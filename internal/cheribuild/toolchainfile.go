package cheribuild

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// The two toolchain file templates. Uppercase tokens delimited by @ are
// substituted by prepareToolchainFile; a stale template (missing a token we
// supply, or keeping one we never fill in) is a fatal authoring error.

const nativeToolchainTemplate = `# Toolchain for building against the host system.
set(CMAKE_C_COMPILER "@TOOLCHAIN_C_COMPILER@")
set(CMAKE_CXX_COMPILER "@TOOLCHAIN_CXX_COMPILER@")
set(CMAKE_C_FLAGS_INIT "@TOOLCHAIN_COMMON_FLAGS@ @TOOLCHAIN_C_FLAGS@")
set(CMAKE_CXX_FLAGS_INIT "@TOOLCHAIN_COMMON_FLAGS@ @TOOLCHAIN_CXX_FLAGS@")
set(CMAKE_ASM_FLAGS_INIT "@TOOLCHAIN_COMMON_FLAGS@ @TOOLCHAIN_ASM_FLAGS@")
set(CMAKE_EXE_LINKER_FLAGS_INIT "@TOOLCHAIN_LINKER_FLAGS@")
set(CMAKE_SHARED_LINKER_FLAGS_INIT "@TOOLCHAIN_LINKER_FLAGS@")
set(CMAKE_PROGRAM_PATH "@TOOLCHAIN_SDK_BINDIR@;@TOOLCHAIN_COMPILER_BINDIR@")
`

const crossToolchainTemplate = `# Toolchain for cross-compiling against the CheriBSD sysroot.
set(CMAKE_SYSTEM_NAME FreeBSD)
set(CMAKE_SYSTEM_VERSION "` + freebsdVersionSuffix + `")
set(CMAKE_SYSTEM_PROCESSOR "@TOOLCHAIN_SYSTEM_PROCESSOR@")
set(CMAKE_SYSROOT "@TOOLCHAIN_SYSROOT@")
set(CMAKE_C_COMPILER "@TOOLCHAIN_C_COMPILER@")
set(CMAKE_CXX_COMPILER "@TOOLCHAIN_CXX_COMPILER@")
set(CMAKE_C_COMPILER_TARGET "@TOOLCHAIN_TARGET_TRIPLE@")
set(CMAKE_CXX_COMPILER_TARGET "@TOOLCHAIN_TARGET_TRIPLE@")
set(CMAKE_ASM_COMPILER_TARGET "@TOOLCHAIN_TARGET_TRIPLE@")
set(CMAKE_C_FLAGS_INIT "@TOOLCHAIN_COMMON_FLAGS@ @TOOLCHAIN_C_FLAGS@")
set(CMAKE_CXX_FLAGS_INIT "@TOOLCHAIN_COMMON_FLAGS@ @TOOLCHAIN_CXX_FLAGS@")
set(CMAKE_ASM_FLAGS_INIT "@TOOLCHAIN_COMMON_FLAGS@ @TOOLCHAIN_ASM_FLAGS@")
set(CMAKE_EXE_LINKER_FLAGS_INIT "@TOOLCHAIN_LINKER_FLAGS@")
set(CMAKE_SHARED_LINKER_FLAGS_INIT "@TOOLCHAIN_LINKER_FLAGS@")
set(CMAKE_FIND_ROOT_PATH "@TOOLCHAIN_SYSROOT@")
set(CMAKE_FIND_ROOT_PATH_MODE_PROGRAM NEVER)
set(CMAKE_FIND_ROOT_PATH_MODE_LIBRARY ONLY)
set(CMAKE_FIND_ROOT_PATH_MODE_INCLUDE ONLY)
set(CMAKE_PROGRAM_PATH "@TOOLCHAIN_SDK_BINDIR@;@TOOLCHAIN_COMPILER_BINDIR@")
@ADD_TOOLCHAIN_LIB_SUFFIX@
`

// cheriLibSuffixSnippet teaches CMake that capability libraries live in
// /usr/libcheri. Older CMake has no custom lib suffix support, so it falls
// back to CMAKE_LIBRARY_ARCHITECTURE plus the symlinks created by
// ensureCheriLibSymlinks.
const cheriLibSuffixSnippet = `
# cheri libraries are found in /usr/libcheri:
if("${CMAKE_VERSION}" VERSION_LESS 3.9)
  # need a <sysroot>/usr/lib/cheri -> <sysroot>/usr/libcheri symlink
  set(CMAKE_LIBRARY_ARCHITECTURE "cheri")
  set(CMAKE_SYSTEM_LIBRARY_PATH "${CMAKE_FIND_ROOT_PATH}/usr/libcheri;${CMAKE_FIND_ROOT_PATH}/usr/local/libcheri")
else()
    set(CMAKE_FIND_LIBRARY_CUSTOM_LIB_SUFFIX "cheri")
endif()
set(LIB_SUFFIX "cheri" CACHE INTERNAL "")
`

// prepareToolchainFile renders a template. Every supplied key must have a
// matching @KEY@ token in the template, list values are joined with single
// spaces, and nil/empty values are skipped. Any @ left after substitution
// means a required key was never supplied; both conditions are errors so
// stale templates are caught before anything is written to disk.
func prepareToolchainFile(template string, values map[string]interface{}) (string, error) {
	configured := template
	for key, value := range values {
		if value == nil {
			continue
		}
		var strval string
		switch v := value.(type) {
		case string:
			strval = v
		case []string:
			strval = strings.Join(v, " ")
		default:
			return "", fmt.Errorf("toolchain file key %s has unsupported type %T", key, value)
		}
		token := "@" + key + "@"
		if !strings.Contains(configured, token) {
			return "", fmt.Errorf("toolchain template is missing placeholder %s", token)
		}
		configured = strings.ReplaceAll(configured, token, strval)
	}
	if idx := strings.IndexByte(configured, '@'); idx >= 0 {
		end := strings.IndexByte(configured[idx+1:], '@')
		token := configured[idx:]
		if end >= 0 {
			token = configured[idx : idx+end+2]
		}
		return "", fmt.Errorf("unresolved token %s in generated toolchain file", token)
	}
	return configured, nil
}

// ensureCheriLibSymlinks is the one-time filesystem workaround for CMake
// versions that predate CMAKE_FIND_LIBRARY_CUSTOM_LIB_SUFFIX: it creates
// usr/lib/cheri and usr/local/lib/cheri symlinks pointing at the real
// libcheri directories inside the sysroot.
func ensureCheriLibSymlinks(sysroot string) error {
	warningMessage("Workaround for missing custom lib suffix in CMake < 3.9")
	for _, dir := range []string{"usr/lib", "usr/local/lib", "usr/local/libcheri"} {
		if err := os.MkdirAll(filepath.Join(sysroot, dir), 0o755); err != nil {
			return err
		}
	}
	for _, link := range []string{"usr/lib/cheri", "usr/local/lib/cheri"} {
		target := filepath.Join(sysroot, link)
		if _, err := os.Lstat(target); err == nil {
			continue
		}
		if err := os.Symlink("../libcheri", target); err != nil {
			return fmt.Errorf("failed to create %s symlink: %w", link, err)
		}
	}
	return nil
}
