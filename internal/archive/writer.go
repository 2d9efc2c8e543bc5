package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Request describes one archive to create.
type Request struct {
	// Source is the file or directory to pack.
	Source string
	// Output is optional; see ResolveOutputPath.
	Output string
	Kind   Kind
	// Compression must belong to Kind. Empty means none for tar and stored
	// for zip.
	Compression Compression
	// Overwrite allows replacing an existing file at the resolved output
	// path. Asking the user is the caller's job.
	Overwrite bool
}

// Validate checks that the compression belongs to the archive kind.
func (r Request) Validate() error {
	if r.Source == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidRequest)
	}
	return checkCompression(r.Kind, r.Compression)
}

// Writer creates archives on a filesystem.
type Writer struct {
	fs     afero.Fs
	logger *zap.Logger
}

func NewWriter(fs afero.Fs, logger *zap.Logger) *Writer {
	return &Writer{fs: fs, logger: logger}
}

// Resolve returns the output path Write would use for req.
func (w *Writer) Resolve(req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	root, err := sourceRoot(req.Source)
	if err != nil {
		return "", err
	}
	return ResolveOutputPath(w.fs, root, req.Output, req.Kind, req.Compression)
}

// Write packs req.Source and returns the path of the written archive.
// On failure the partially written archive is removed.
func (w *Writer) Write(ctx context.Context, req Request) (output string, err error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	root, err := sourceRoot(req.Source)
	if err != nil {
		return "", err
	}
	if _, err := w.fs.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: source %s", ErrNotFound, req.Source)
		}
		return "", ioError("stat", req.Source, err)
	}

	resolved, err := ResolveOutputPath(w.fs, root, req.Output, req.Kind, req.Compression)
	if err != nil {
		return "", err
	}
	logger := w.logger.With(zap.String("source", req.Source), zap.String("output", resolved))

	if dir := filepath.Dir(resolved); dir != "" && dir != "." {
		if err := w.fs.MkdirAll(dir, 0755); err != nil {
			return "", ioError("create directory", dir, err)
		}
	}

	exists, err := afero.Exists(w.fs, resolved)
	if err != nil {
		return "", ioError("stat", resolved, err)
	}
	if exists && !req.Overwrite {
		return "", fmt.Errorf("%w: %s", ErrAlreadyExists, resolved)
	}

	count, err := w.writeArchive(ctx, req, root, resolved)
	if err != nil {
		if removeErr := w.fs.Remove(resolved); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			logger.Warn("failed to remove incomplete archive", zap.Error(removeErr))
		}
		return "", err
	}

	logger.Info("archive written",
		zap.String("kind", string(req.Kind)),
		zap.String("compression", string(req.Compression)),
		zap.Int("members", count),
	)
	return resolved, nil
}

func (w *Writer) writeArchive(ctx context.Context, req Request, root, output string) (count int, err error) {
	f, err := w.fs.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, ioError("create", output, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			err = errors.Join(err, ioError("close", output, closeErr))
		}
	}()

	p, err := newPacker(f, req.Kind, req.Compression)
	if err != nil {
		return 0, err
	}

	count, err = w.pack(ctx, p, root, output)
	if err != nil {
		_ = p.Close()
		return 0, err
	}
	if err := p.Close(); err != nil {
		return 0, ioError("write", output, err)
	}
	return count, nil
}

// pack walks root and adds every entry with a name relative to base, the
// parent of root, so the archive's top-level entry is root's own name. The
// archive being written is skipped when it lives inside root.
func (w *Writer) pack(ctx context.Context, p packer, root, output string) (int, error) {
	base := filepath.Dir(root)
	skip := absPath(output)
	count := 0

	err := afero.Walk(w.fs, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return ioError("walk", path, err)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled: %w", err)
		}
		if absPath(path) == skip {
			return nil
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return ioError("walk", path, err)
		}
		name := filepath.ToSlash(rel)

		switch {
		case info.IsDir():
			if err := p.AddDir(name, info); err != nil {
				return ioError("write", name, err)
			}
		case info.Mode()&fs.ModeSymlink != 0:
			if err := w.addSymlink(ctx, p, path, name, info); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			if err := w.addFile(ctx, p, path, name, info); err != nil {
				return err
			}
		default:
			w.logger.Warn("skipping special file", zap.String("path", path), zap.String("mode", info.Mode().String()))
			return nil
		}
		count++
		return nil
	})
	return count, err
}

func (w *Writer) addFile(ctx context.Context, p packer, path, name string, info fs.FileInfo) (err error) {
	f, err := w.fs.Open(path)
	if err != nil {
		return ioError("open", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			err = errors.Join(err, ioError("close", path, closeErr))
		}
	}()

	if err := p.AddFile(ctx, name, info, f); err != nil {
		return ioError("write", name, err)
	}
	return nil
}

// addSymlink stores the link itself when the packer supports links and the
// filesystem can read them. Otherwise the target is followed: regular files
// are stored by content and directories are skipped.
func (w *Writer) addSymlink(ctx context.Context, p packer, path, name string, info fs.FileInfo) error {
	if lp, ok := p.(linkPacker); ok {
		if reader, ok := w.fs.(afero.LinkReader); ok {
			target, err := reader.ReadlinkIfPossible(path)
			if err != nil {
				return ioError("readlink", path, err)
			}
			if err := lp.AddSymlink(name, info, target); err != nil {
				return ioError("write", name, err)
			}
			return nil
		}
	}

	targetInfo, err := w.fs.Stat(path)
	if err != nil {
		return ioError("stat", path, err)
	}
	if !targetInfo.Mode().IsRegular() {
		w.logger.Debug("skipping symlink to non-regular file", zap.String("path", path))
		return nil
	}
	return w.addFile(ctx, p, path, name, targetInfo)
}

// sourceRoot cleans source and strips trailing separators. "." and ".." are
// made absolute so the archive gets a real top-level name.
func sourceRoot(source string) (string, error) {
	trimmed := strings.TrimRight(source, `/`+string(filepath.Separator))
	if trimmed == "" {
		return "", fmt.Errorf("%w: cannot archive %q", ErrInvalidRequest, source)
	}
	root := filepath.Clean(trimmed)
	if base := filepath.Base(root); base == "." || base == ".." {
		abs, err := filepath.Abs(root)
		if err != nil {
			return "", ioError("resolve", source, err)
		}
		root = abs
	}
	return root, nil
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}
