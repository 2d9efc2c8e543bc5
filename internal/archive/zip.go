package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/spf13/afero"
)

// zipPacker writes a zip archive with every file stored or deflated.
type zipPacker struct {
	zipWriter *zip.Writer
	method    uint16
	closed    bool
}

func newZipPacker(w io.Writer, compression Compression) (*zipPacker, error) {
	var method uint16
	switch compression {
	case CompressionDeflated:
		method = zip.Deflate
	case CompressionStored, "":
		method = zip.Store
	default:
		return nil, fmt.Errorf("%w: unsupported zip compression %q", ErrInvalidRequest, compression)
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	return &zipPacker{zipWriter: zw, method: method}, nil
}

func (p *zipPacker) header(name string, info fs.FileInfo) (*zip.FileHeader, error) {
	if p.closed {
		return nil, fmt.Errorf("packer is closed")
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return nil, fmt.Errorf("failed to build zip header for %s: %w", name, err)
	}
	hdr.Name = name
	return hdr, nil
}

func (p *zipPacker) AddDir(name string, info fs.FileInfo) error {
	hdr, err := p.header(name+"/", info)
	if err != nil {
		return err
	}
	hdr.Method = zip.Store
	if _, err := p.zipWriter.CreateHeader(hdr); err != nil {
		return fmt.Errorf("failed to create zip directory entry: %w", err)
	}
	return nil
}

func (p *zipPacker) AddFile(ctx context.Context, name string, info fs.FileInfo, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	hdr, err := p.header(name, info)
	if err != nil {
		return err
	}
	hdr.Method = p.method

	entry, err := p.zipWriter.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("failed to create zip entry %s: %w", name, err)
	}
	if _, err := io.Copy(entry, data); err != nil {
		return fmt.Errorf("failed to write zip content: %w", err)
	}
	return nil
}

func (p *zipPacker) Close() error {
	if p.closed {
		return fmt.Errorf("packer already closed")
	}
	p.closed = true

	if err := p.zipWriter.Close(); err != nil {
		return fmt.Errorf("failed to close zip writer: %w", err)
	}
	return nil
}

// zipWalker reads members through the central directory of an open file.
type zipWalker struct {
	path      string
	file      afero.File
	zipReader *zip.Reader
}

func openZip(afs afero.Fs, path string) (*zipWalker, error) {
	f, err := afs.Open(path)
	if err != nil {
		return nil, ioError("open", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ioError("stat", path, err)
	}

	zr, err := zip.NewReader(f, info.Size())
	// ErrInsecurePath still returns a usable reader; names are checked by
	// ValidateMemberPath instead.
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		_ = f.Close()
		return nil, ioError("read", path, err)
	}
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	return &zipWalker{path: path, file: f, zipReader: zr}, nil
}

func (z *zipWalker) Members(ctx context.Context) ([]Member, error) {
	members := make([]Member, 0, len(z.zipReader.File))
	for _, zf := range z.zipReader.File {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled: %w", err)
		}
		members = append(members, zipMember(zf))
	}
	return members, nil
}

func (z *zipWalker) Walk(ctx context.Context, members []Member, fn func(Member, io.Reader) error) error {
	if len(members) != len(z.zipReader.File) {
		return fmt.Errorf("%w: %s changed during extraction", ErrIO, z.path)
	}
	for i, zf := range z.zipReader.File {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled: %w", err)
		}
		if members[i].Type == MemberDir {
			if err := fn(members[i], nil); err != nil {
				return err
			}
			continue
		}
		if err := z.walkFile(zf, members[i], fn); err != nil {
			return err
		}
	}
	return nil
}

func (z *zipWalker) walkFile(zf *zip.File, m Member, fn func(Member, io.Reader) error) (err error) {
	rc, err := zf.Open()
	if err != nil {
		return ioError("read", z.path+":"+zf.Name, err)
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil {
			err = errors.Join(err, ioError("close", z.path+":"+zf.Name, closeErr))
		}
	}()
	return fn(m, rc)
}

func (z *zipWalker) Close() error {
	if err := z.file.Close(); err != nil {
		return ioError("close", z.path, err)
	}
	return nil
}

// zipMember maps a zip entry to a member. Symlink entries are extracted as
// regular files holding the link target, like most unzip tools do.
func zipMember(zf *zip.File) Member {
	m := Member{
		Name:    zf.Name,
		Type:    MemberFile,
		Mode:    zf.Mode().Perm(),
		Size:    int64(zf.UncompressedSize64),
		ModTime: zf.Modified,
	}
	if zf.FileInfo().IsDir() || strings.HasSuffix(zf.Name, "/") {
		m.Type = MemberDir
	}
	return m
}
