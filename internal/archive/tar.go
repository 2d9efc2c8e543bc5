package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"
)

// tarPacker writes a tar stream through an optional compressor.
type tarPacker struct {
	compressor io.WriteCloser
	tarWriter  *tar.Writer
	closed     bool
}

func newTarPacker(w io.Writer, compression Compression) (*tarPacker, error) {
	var compressor io.WriteCloser
	var err error

	switch compression {
	case CompressionGzip:
		compressor = gzip.NewWriter(w)
	case CompressionBzip2:
		compressor, err = bzip2.NewWriter(w, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create bzip2 writer: %w", err)
		}
	case CompressionXz:
		compressor, err = xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
	case CompressionZstd:
		compressor, err = zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
	case CompressionNone, "":
		compressor = &nopWriteCloser{w}
	default:
		return nil, fmt.Errorf("%w: unsupported tar compression %q", ErrInvalidRequest, compression)
	}

	return &tarPacker{
		compressor: compressor,
		tarWriter:  tar.NewWriter(compressor),
	}, nil
}

func (p *tarPacker) header(name string, info fs.FileInfo, link string) (*tar.Header, error) {
	if p.closed {
		return nil, fmt.Errorf("packer is closed")
	}
	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return nil, fmt.Errorf("failed to build tar header for %s: %w", name, err)
	}
	hdr.Name = name
	return hdr, nil
}

func (p *tarPacker) AddDir(name string, info fs.FileInfo) error {
	hdr, err := p.header(name+"/", info, "")
	if err != nil {
		return err
	}
	if err := p.tarWriter.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}
	return nil
}

func (p *tarPacker) AddFile(ctx context.Context, name string, info fs.FileInfo, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	hdr, err := p.header(name, info, "")
	if err != nil {
		return err
	}
	if err := p.tarWriter.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}
	if _, err := io.Copy(p.tarWriter, data); err != nil {
		return fmt.Errorf("failed to write tar content: %w", err)
	}
	return nil
}

func (p *tarPacker) AddSymlink(name string, info fs.FileInfo, target string) error {
	hdr, err := p.header(name, info, target)
	if err != nil {
		return err
	}
	if err := p.tarWriter.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}
	return nil
}

func (p *tarPacker) Close() error {
	if p.closed {
		return fmt.Errorf("packer already closed")
	}
	p.closed = true

	// Close tar writer first
	if err := p.tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to close tar writer: %w", err)
	}
	if err := p.compressor.Close(); err != nil {
		return fmt.Errorf("failed to close compressor: %w", err)
	}
	return nil
}

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte("BZh")
	xzMagic    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	zstdMagic  = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// decompress sniffs the stream's magic bytes and returns a reader for the
// plain tar data. The suffix of the archive is not consulted.
func decompress(r io.Reader) (io.Reader, func() error, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(xzMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}

	nop := func() error { return nil }
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gr, gr.Close, nil
	case bytes.HasPrefix(magic, bzip2Magic):
		bz, err := bzip2.NewReader(br, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create bzip2 reader: %w", err)
		}
		return bz, bz.Close, nil
	case bytes.HasPrefix(magic, xzMagic):
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xr, nop, nil
	case bytes.HasPrefix(magic, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return zr, func() error { zr.Close(); return nil }, nil
	default:
		return br, nop, nil
	}
}

// tarWalker reads a tar archive in two independent streaming passes.
type tarWalker struct {
	fs   afero.Fs
	path string
}

func (t *tarWalker) Members(ctx context.Context) ([]Member, error) {
	var members []Member
	err := t.scan(ctx, func(hdr *tar.Header, _ io.Reader) error {
		members = append(members, tarMember(hdr))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// Walk re-reads the archive and hands each validated member its payload.
// The archive must still contain exactly the members that were validated.
func (t *tarWalker) Walk(ctx context.Context, members []Member, fn func(Member, io.Reader) error) error {
	i := 0
	err := t.scan(ctx, func(hdr *tar.Header, r io.Reader) error {
		cleaned, err := ValidateMemberPath(hdr.Name)
		if err != nil {
			return withArchive(err, t.path)
		}
		if i >= len(members) || cleaned != members[i].Name {
			return fmt.Errorf("%w: %s changed during extraction", ErrIO, t.path)
		}
		m := members[i]
		i++
		return fn(m, r)
	})
	if err != nil {
		return err
	}
	if i != len(members) {
		return fmt.Errorf("%w: %s changed during extraction", ErrIO, t.path)
	}
	return nil
}

func (t *tarWalker) Close() error {
	return nil
}

func (t *tarWalker) scan(ctx context.Context, fn func(*tar.Header, io.Reader) error) (err error) {
	f, err := t.fs.Open(t.path)
	if err != nil {
		return ioError("open", t.path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			err = errors.Join(err, ioError("close", t.path, closeErr))
		}
	}()

	stream, closeStream, err := decompress(f)
	if err != nil {
		return ioError("read", t.path, err)
	}
	defer func() {
		if closeErr := closeStream(); closeErr != nil {
			err = errors.Join(err, ioError("close", t.path, closeErr))
		}
	}()

	tr := tar.NewReader(stream)
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled: %w", err)
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		// ErrInsecurePath still returns the header; names are checked by
		// ValidateMemberPath instead.
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			return ioError("read", t.path, err)
		}
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}

func tarMember(hdr *tar.Header) Member {
	m := Member{
		Name:    hdr.Name,
		Mode:    fs.FileMode(hdr.Mode).Perm(),
		Size:    hdr.Size,
		ModTime: hdr.ModTime,
	}
	switch hdr.Typeflag {
	case tar.TypeDir:
		m.Type = MemberDir
	case tar.TypeSymlink:
		m.Type = MemberSymlink
		m.Linkname = hdr.Linkname
	case tar.TypeLink:
		m.Type = MemberHardlink
		m.Linkname = hdr.Linkname
	case tar.TypeChar, tar.TypeBlock, tar.TypeFifo:
		m.Type = MemberOther
	default:
		m.Type = MemberFile
	}
	return m
}
