package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
)

// packer writes members into an archive stream.
type packer interface {
	// AddDir adds a directory entry with the given slash-separated name.
	AddDir(name string, info fs.FileInfo) error

	// AddFile adds a regular file with the given name and contents.
	AddFile(ctx context.Context, name string, info fs.FileInfo, data io.Reader) error

	// Close finalizes the archive. The underlying writer is not closed.
	Close() error
}

// linkPacker is implemented by packers that store symlinks as links.
// Packers without it receive the link target's contents instead.
type linkPacker interface {
	AddSymlink(name string, info fs.FileInfo, target string) error
}

func newPacker(w io.Writer, kind Kind, compression Compression) (packer, error) {
	switch kind {
	case KindTar:
		return newTarPacker(w, compression)
	case KindZip:
		return newZipPacker(w, compression)
	default:
		return nil, fmt.Errorf("%w: unknown archive kind %q", ErrInvalidRequest, kind)
	}
}

// nopWriteCloser wraps a Writer to provide a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (n *nopWriteCloser) Close() error {
	return nil
}
