package redundans

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Artifact references an assembly file produced by one pipeline stage.
// Forwarding an artifact links the canonical stage name to the last
// produced file instead of copying it, so provenance is preserved
// without duplicating sequence data.
type Artifact struct {
	path string
}

// NewArtifact wraps an existing file path as an artifact reference.
func NewArtifact(path string) Artifact {
	return Artifact{path: path}
}

// Resolve returns the path the artifact lives at.
func (a Artifact) Resolve() string { return a.path }

// Forward makes the artifact's content available under path and
// returns the new reference. The link is a no-op when path already
// exists, so forwarding an artifact onto itself is safe.
func (a Artifact) Forward(path string) (Artifact, error) {
	if err := link(a.path, path); err != nil {
		return Artifact{}, err
	}
	return Artifact{path: path}, nil
}

// link points dst at src, preferring a symlink and falling back to a
// copy on filesystems without symlink support (samba/NFS shares).
// Relative src paths that don't resolve from the working directory are
// kept relative so links inside the run directory stay portable.
func link(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return nil
	}

	target := src
	if _, err := os.Stat(src); err == nil {
		if abs, err := filepath.Abs(src); err == nil {
			target = abs
		}
	}

	if err := os.Symlink(target, dst); err == nil {
		return nil
	}

	// resolve relative to the destination for the copy fallback
	resolved := src
	if _, err := os.Stat(resolved); err != nil {
		resolved = filepath.Join(filepath.Dir(dst), src)
	}
	return copyFile(resolved, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// RunDir is the pipeline's output root. Every intermediate and final
// artifact lives under it. It is created exactly once at pipeline
// start and never cleaned mid-run, so a failed run leaves its partial
// output behind for inspection.
type RunDir struct {
	path string
}

// NewRunDir creates the output root, failing fast when it pre-exists.
func NewRunDir(path string) (*RunDir, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("directory %s exists!", path)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %v", path, err)
	}
	return &RunDir{path: path}, nil
}

// Path returns the run directory root.
func (d *RunDir) Path() string { return d.path }

// Join returns the path of name inside the run directory.
func (d *RunDir) Join(name string) string {
	return filepath.Join(d.path, name)
}
