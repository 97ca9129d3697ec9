package cheribuild

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"lukechampine.com/blake3"
)

// blake3File hashes a file and returns the hex digest. Build artifacts get a
// checksum written next to them so mirrors can verify uploads.
func blake3File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeChecksumFile records "<digest>  <basename>" as <path>.b3sum.
func writeChecksumFile(artifactPath string) (string, error) {
	sum, err := blake3File(artifactPath)
	if err != nil {
		return "", err
	}
	content := fmt.Sprintf("%s  %s\n", sum, baseName(artifactPath))
	if err := os.WriteFile(artifactPath+".b3sum", []byte(content), 0o644); err != nil {
		return "", err
	}
	return sum, nil
}
