package cheribuild

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/schollz/progressbar/v3"
)

// diskImageProject turns the populated rootfs staging tree into a bootable
// FFS disk image, compresses it and records a checksum. The image is what
// the emulator-launch step boots.
type diskImageProject struct {
	cfg       *Config
	imagePath string
}

func newDiskImageProject(cfg *Config) (Project, error) {
	name := fmt.Sprintf("cheribsd-%s.img", cfg.CheriBitsStr())
	return &diskImageProject{
		cfg:       cfg,
		imagePath: filepath.Join(cfg.OutputRoot, name),
	}, nil
}

func (p *diskImageProject) Name() string { return "disk-image" }

func (p *diskImageProject) CheckSystemDependencies(e *Executor) error {
	if _, err := e.LookTool("makefs"); err != nil {
		return fmt.Errorf("required tool \"makefs\" for target disk-image not found in PATH "+
			"(on Linux install freebsd-makefs): %w", err)
	}
	return nil
}

func (p *diskImageProject) Process(e *Executor) error {
	rootfs := p.cfg.RootfsDir()
	if _, err := os.Stat(rootfs); err != nil {
		return fmt.Errorf("rootfs tree %s missing, build the cheribsd target first", rootfs)
	}
	if err := os.MkdirAll(p.cfg.OutputRoot, 0o755); err != nil {
		return err
	}
	// big-endian UFS2, the layout the malta kernel expects
	if err := e.RunIn(p.cfg.OutputRoot, nil, "makefs",
		"-t", "ffs", "-B", "be", "-o", "version=2",
		p.imagePath, rootfs); err != nil {
		return fmt.Errorf("makefs failed: %w", err)
	}

	compressed := p.imagePath + ".zst"
	if err := compressFileZst(p.imagePath, compressed); err != nil {
		return err
	}
	sum, err := writeChecksumFile(compressed)
	if err != nil {
		return err
	}
	statusUpdate("Disk image written to", p.imagePath, "(b3sum "+sum[:16]+"...)")

	if p.cfg.Upload {
		return uploadArtifacts(e.Context, p.cfg, compressed, compressed+".b3sum")
	}
	return nil
}

// compressFileZst writes a zstd compressed copy of src, showing progress for
// what can be a multi-gigabyte image.
func compressFileZst(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}

	bar := progressbar.DefaultBytes(info.Size(), "compressing "+baseName(src))
	if _, err := io.Copy(io.MultiWriter(zw, bar), in); err != nil {
		zw.Close()
		return fmt.Errorf("compressing %s: %w", src, err)
	}
	return zw.Close()
}
