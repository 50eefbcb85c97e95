package dataset

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// PrepareOptions selects where the raw collection comes from. Exactly one of
// Archive and Source must be set.
type PrepareOptions struct {
	Archive string // .zip file to extract
	Source  string // already-downloaded directory to copy
	Dest    string // dataset root to populate
}

// PrepareResult summarises a Prepare call.
type PrepareResult struct {
	Files     int    // regular files written
	Flattened string // nested directory that was lifted into Dest, if any
}

// Prepare materialises a directory-per-author tree under opts.Dest. Archives
// and copies of the upstream collection nest the author directories under
// training/ or training/training/; that level is lifted into Dest and
// removed. Existing entries in Dest with the same name are replaced.
func Prepare(ctx context.Context, opts PrepareOptions) (*PrepareResult, error) {
	if (opts.Archive == "") == (opts.Source == "") {
		return nil, errors.New("exactly one of archive or source must be given")
	}
	if opts.Dest == "" {
		return nil, errors.New("destination directory is required")
	}
	if err := os.MkdirAll(opts.Dest, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination: %w", err)
	}

	root, err := os.OpenRoot(opts.Dest)
	if err != nil {
		return nil, fmt.Errorf("failed to open destination: %w", err)
	}
	defer root.Close()

	result := &PrepareResult{}
	if opts.Archive != "" {
		result.Files, err = extractZip(ctx, root, opts.Archive)
	} else {
		result.Files, err = copyTree(ctx, root, opts.Source)
	}
	if err != nil {
		return nil, err
	}

	flattened, err := flattenTraining(opts.Dest)
	if err != nil {
		return nil, err
	}
	result.Flattened = flattened
	return result, nil
}

func extractZip(ctx context.Context, root *os.Root, archive string) (int, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive: %w", err)
	}
	defer zr.Close()

	files := 0
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return files, err
		}

		name := path.Clean(strings.ReplaceAll(f.Name, "\\", "/"))
		if !fs.ValidPath(name) {
			return files, fmt.Errorf("archive entry %q escapes the destination", f.Name)
		}
		if name == "." || strings.HasPrefix(name, "__MACOSX") {
			continue
		}

		if f.FileInfo().IsDir() {
			if err := root.MkdirAll(name, 0755); err != nil {
				return files, fmt.Errorf("failed to create %s: %w", name, err)
			}
			continue
		}

		src, err := f.Open()
		if err != nil {
			return files, fmt.Errorf("failed to read %s: %w", name, err)
		}
		err = writeRootFile(root, name, src)
		src.Close()
		if err != nil {
			return files, err
		}
		files++
	}
	return files, nil
}

func copyTree(ctx context.Context, root *os.Root, source string) (int, error) {
	info, err := os.Stat(source)
	if err != nil {
		return 0, fmt.Errorf("failed to read source: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("source %s is not a directory", source)
	}

	files := 0
	err = filepath.WalkDir(source, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(source, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			return root.MkdirAll(rel, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}

		src, err := os.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		if err := writeRootFile(root, rel, src); err != nil {
			return err
		}
		files++
		return nil
	})
	if err != nil {
		return files, fmt.Errorf("failed to copy source: %w", err)
	}
	return files, nil
}

func writeRootFile(root *os.Root, name string, src io.Reader) error {
	if dir := path.Dir(name); dir != "." {
		if err := root.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	dst, err := root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return dst.Close()
}

// flattenTraining moves the children of dest/training/training (or
// dest/training) into dest and removes the training directory.
func flattenTraining(dest string) (string, error) {
	training := filepath.Join(dest, "training")
	var nested string
	for _, candidate := range []string{filepath.Join(training, "training"), training} {
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			nested = candidate
			break
		}
	}
	if nested == "" {
		return "", nil
	}

	entries, err := os.ReadDir(nested)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", nested, err)
	}
	for _, e := range entries {
		target := filepath.Join(dest, e.Name())
		if err := os.RemoveAll(target); err != nil {
			return "", fmt.Errorf("failed to replace %s: %w", target, err)
		}
		if err := os.Rename(filepath.Join(nested, e.Name()), target); err != nil {
			return "", fmt.Errorf("failed to move %s: %w", e.Name(), err)
		}
	}

	if err := os.RemoveAll(training); err != nil {
		return "", fmt.Errorf("failed to remove %s: %w", training, err)
	}
	rel, _ := filepath.Rel(dest, nested)
	return filepath.ToSlash(rel), nil
}
