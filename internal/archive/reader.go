package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// walker enumerates the members of an archive.
type walker interface {
	// Members lists every member in archive order without reading payloads.
	Members(ctx context.Context) ([]Member, error)

	// Walk calls fn for each previously validated member with its payload.
	// Directory payloads are nil.
	Walk(ctx context.Context, members []Member, fn func(Member, io.Reader) error) error

	Close() error
}

// Reader extracts archives from a filesystem.
type Reader struct {
	fs     afero.Fs
	logger *zap.Logger
}

func NewReader(fs afero.Fs, logger *zap.Logger) *Reader {
	return &Reader{fs: fs, logger: logger}
}

// List returns the validated members of the archive at archivePath.
func (r *Reader) List(ctx context.Context, archivePath string) (members []Member, err error) {
	w, err := r.open(archivePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, w.Close())
	}()

	return r.members(ctx, w, archivePath)
}

// Extract validates every member of the archive and, only if all of them
// are safe, extracts the archive into destDir, creating it when absent.
// An unsafe member anywhere in the archive aborts before anything is
// written. An I/O failure after writing started is reported with
// ErrPartialExtraction.
func (r *Reader) Extract(ctx context.Context, archivePath, destDir string) (err error) {
	w, err := r.open(archivePath)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, w.Close())
	}()

	members, err := r.members(ctx, w, archivePath)
	if err != nil {
		return err
	}

	x := &extraction{fs: r.fs, logger: r.logger, dest: destDir}
	if err := x.preflight(members); err != nil {
		return withArchive(err, archivePath)
	}

	if err := r.fs.MkdirAll(destDir, 0755); err != nil {
		return ioError("create directory", destDir, err)
	}

	if err := w.Walk(ctx, members, x.write); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPartialExtraction, archivePath, err)
	}
	if err := x.linkDeferred(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPartialExtraction, archivePath, err)
	}

	r.logger.Info("archive extracted",
		zap.String("archive", archivePath),
		zap.String("destination", destDir),
		zap.Int("members", len(members)),
	)
	return nil
}

func (r *Reader) open(archivePath string) (walker, error) {
	format, err := DetectFormat(archivePath)
	if err != nil {
		return nil, err
	}

	info, err := r.fs.Stat(archivePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: archive %s", ErrNotFound, archivePath)
		}
		return nil, ioError("stat", archivePath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrIO, archivePath)
	}

	switch format.Kind {
	case KindZip:
		return openZip(r.fs, archivePath)
	default:
		return &tarWalker{fs: r.fs, path: archivePath}, nil
	}
}

func (r *Reader) members(ctx context.Context, w walker, archivePath string) ([]Member, error) {
	members, err := w.Members(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateMembers(archivePath, members); err != nil {
		return nil, err
	}
	r.logger.Debug("archive members validated",
		zap.String("archive", archivePath),
		zap.Int("members", len(members)),
	)
	return members, nil
}

// extraction writes members below dest. Symlinks are created after every
// other member so no file is ever written through a link from the same
// archive.
type extraction struct {
	fs       afero.Fs
	logger   *zap.Logger
	dest     string
	symlinks []Member
}

func (x *extraction) target(m Member) (string, error) {
	target := filepath.Join(x.dest, filepath.FromSlash(m.Name))
	rel, err := filepath.Rel(x.dest, target)
	if err != nil || escapes(filepath.ToSlash(rel)) {
		return "", &UnsafePathError{Member: m.Name, Reason: "resolves outside destination"}
	}
	return target, nil
}

// preflight checks every member against what already exists below dest, so
// a symlink left there by an earlier extraction is refused before anything
// is written.
func (x *extraction) preflight(members []Member) error {
	for _, m := range members {
		target, err := x.target(m)
		if err != nil {
			return err
		}
		if err := x.checkPath(m, target, m.Type != MemberSymlink); err != nil {
			return err
		}
		if m.Type == MemberHardlink {
			if err := x.checkPath(m, x.linkSource(m), true); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkPath fails when a component of p below dest is an existing symlink.
// The last component is only checked when final is set; symlink members
// replace whatever is there without following it.
func (x *extraction) checkPath(m Member, p string, final bool) error {
	lstater, ok := x.fs.(afero.Lstater)
	if !ok {
		return nil
	}
	rel, err := filepath.Rel(x.dest, p)
	if err != nil || rel == "." {
		return nil
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if !final {
		parts = parts[:len(parts)-1]
	}

	current := x.dest
	for _, part := range parts {
		current = filepath.Join(current, part)
		info, _, err := lstater.LstatIfPossible(current)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return ioError("stat", current, err)
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return &UnsafePathError{Member: m.Name, Reason: "path passes through existing symlink " + current}
		}
	}
	return nil
}

func (x *extraction) linkSource(m Member) string {
	return filepath.Join(x.dest, filepath.FromSlash(path.Clean(strings.ReplaceAll(m.Linkname, `\`, "/"))))
}

func (x *extraction) write(m Member, data io.Reader) error {
	target, err := x.target(m)
	if err != nil {
		return err
	}
	if err := x.checkPath(m, target, m.Type != MemberSymlink); err != nil {
		return err
	}

	switch m.Type {
	case MemberDir:
		if err := x.fs.MkdirAll(target, dirMode(m.Mode)); err != nil {
			return ioError("create directory", target, err)
		}
	case MemberFile:
		if err := x.writeFile(target, m, data); err != nil {
			return err
		}
	case MemberHardlink:
		return x.copyLinked(target, m)
	case MemberSymlink:
		x.symlinks = append(x.symlinks, m)
	default:
		x.logger.Debug("skipping special member", zap.String("member", m.Name))
	}
	return nil
}

func (x *extraction) writeFile(target string, m Member, data io.Reader) (err error) {
	if err := x.fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return ioError("create directory", filepath.Dir(target), err)
	}

	f, err := x.fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode(m.Mode))
	if err != nil {
		return ioError("create", target, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			err = errors.Join(err, ioError("close", target, closeErr))
		}
		if err == nil && !m.ModTime.IsZero() {
			if chErr := x.fs.Chtimes(target, m.ModTime, m.ModTime); chErr != nil {
				x.logger.Debug("failed to set modification time", zap.String("path", target), zap.Error(chErr))
			}
		}
	}()

	if data != nil {
		if _, err := io.Copy(f, data); err != nil {
			return ioError("write", target, err)
		}
	}
	return nil
}

// copyLinked materializes a hardlink as a copy of its already extracted
// target, which works on every afero filesystem.
func (x *extraction) copyLinked(target string, m Member) (err error) {
	source := x.linkSource(m)
	if err := x.checkPath(m, source, true); err != nil {
		return err
	}
	src, err := x.fs.Open(source)
	if err != nil {
		return ioError("open", source, err)
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			err = errors.Join(err, ioError("close", source, closeErr))
		}
	}()
	return x.writeFile(target, m, src)
}

func (x *extraction) linkDeferred() error {
	if len(x.symlinks) == 0 {
		return nil
	}
	linker, ok := x.fs.(afero.Linker)
	if !ok {
		return fmt.Errorf("%w: filesystem %s does not support symlinks", ErrIO, x.fs.Name())
	}
	for _, m := range x.symlinks {
		target, err := x.target(m)
		if err != nil {
			return err
		}
		if err := x.checkPath(m, target, false); err != nil {
			return err
		}
		if err := x.fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return ioError("create directory", filepath.Dir(target), err)
		}
		if err := x.fs.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ioError("replace", target, err)
		}
		if err := linker.SymlinkIfPossible(m.Linkname, target); err != nil {
			return ioError("symlink", target, err)
		}
	}
	return nil
}

func dirMode(mode fs.FileMode) fs.FileMode {
	return mode.Perm() | 0700
}

func fileMode(mode fs.FileMode) fs.FileMode {
	if mode.Perm() == 0 {
		return 0644
	}
	return mode.Perm()
}
