// Package archive packs files and directories into tar or zip archives and
// safely extracts them again.
package archive

import (
	"fmt"
	"strings"
)

// Kind is the archive family.
type Kind string

const (
	KindTar Kind = "tar"
	KindZip Kind = "zip"
)

// Compression selects the codec applied inside an archive kind.
type Compression string

const (
	CompressionNone     Compression = "none"
	CompressionGzip     Compression = "gzip"
	CompressionBzip2    Compression = "bzip2"
	CompressionXz       Compression = "xz"
	CompressionZstd     Compression = "zstd"
	CompressionStored   Compression = "stored"
	CompressionDeflated Compression = "deflated"
)

// token is the short suffix token used in file extensions, e.g. "gz".
func (c Compression) token() string {
	switch c {
	case CompressionGzip:
		return "gz"
	case CompressionBzip2:
		return "bz2"
	case CompressionXz:
		return "xz"
	case CompressionZstd:
		return "zst"
	default:
		return ""
	}
}

// ParseKind parses "tar" or "zip", case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindTar:
		return KindTar, nil
	case KindZip:
		return KindZip, nil
	default:
		return "", fmt.Errorf("%w: unknown archive kind %q", ErrInvalidRequest, s)
	}
}

// ParseCompression parses a compression name for the given kind. Short forms
// ("gz", "bz2", "zst", "deflate", "store") are accepted, and the empty string
// selects the kind's default of no compression.
func ParseCompression(kind Kind, s string) (Compression, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	var c Compression
	switch s {
	case "", "none":
		c = CompressionNone
		if kind == KindZip {
			c = CompressionStored
		}
	case "gz", "gzip":
		c = CompressionGzip
	case "bz2", "bzip2":
		c = CompressionBzip2
	case "xz":
		c = CompressionXz
	case "zst", "zstd":
		c = CompressionZstd
	case "store", "stored":
		c = CompressionStored
	case "deflate", "deflated":
		c = CompressionDeflated
	default:
		return "", fmt.Errorf("%w: unknown compression %q", ErrInvalidRequest, s)
	}
	if err := checkCompression(kind, c); err != nil {
		return "", err
	}
	return c, nil
}

func checkCompression(kind Kind, c Compression) error {
	switch kind {
	case KindTar:
		switch c {
		case CompressionNone, "", CompressionGzip, CompressionBzip2, CompressionXz, CompressionZstd:
			return nil
		}
	case KindZip:
		switch c {
		case CompressionStored, "", CompressionDeflated:
			return nil
		}
	default:
		return fmt.Errorf("%w: unknown archive kind %q", ErrInvalidRequest, kind)
	}
	return fmt.Errorf("%w: compression %q is not valid for %s archives", ErrInvalidRequest, c, kind)
}

// Extension returns the canonical extension for kind and compression:
// ".tar.<token>" for compressed tar, ".tar" for plain tar and ".zip" for zip.
func Extension(kind Kind, c Compression) string {
	if kind == KindZip {
		return ".zip"
	}
	if t := c.token(); t != "" {
		return ".tar." + t
	}
	return ".tar"
}

// Format describes a recognized archive suffix.
type Format struct {
	Suffix      string
	Kind        Kind
	Compression Compression
	// canonical suffixes are the ones accepted unchanged on output paths.
	canonical bool
}

// formats is the single list of recognized suffixes, longest first so that
// ".tar.gz" wins over ".tar". Zip compression varies per member and is left
// empty.
var formats = []Format{
	{Suffix: ".tar.gz", Kind: KindTar, Compression: CompressionGzip, canonical: true},
	{Suffix: ".tar.bz2", Kind: KindTar, Compression: CompressionBzip2, canonical: true},
	{Suffix: ".tar.xz", Kind: KindTar, Compression: CompressionXz, canonical: true},
	{Suffix: ".tar.zst", Kind: KindTar, Compression: CompressionZstd, canonical: true},
	{Suffix: ".tbz2", Kind: KindTar, Compression: CompressionBzip2},
	{Suffix: ".tzst", Kind: KindTar, Compression: CompressionZstd},
	{Suffix: ".tgz", Kind: KindTar, Compression: CompressionGzip},
	{Suffix: ".txz", Kind: KindTar, Compression: CompressionXz},
	{Suffix: ".tar", Kind: KindTar, Compression: CompressionNone, canonical: true},
	{Suffix: ".zip", Kind: KindZip, canonical: true},
}

// Formats returns the recognized archive formats.
func Formats() []Format {
	out := make([]Format, len(formats))
	copy(out, formats)
	return out
}

// DetectFormat classifies path by its suffix, case-insensitively.
func DetectFormat(path string) (Format, error) {
	lower := strings.ToLower(path)
	for _, f := range formats {
		if strings.HasSuffix(lower, f.Suffix) {
			return f, nil
		}
	}
	return Format{}, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedFormat, path, supportedSuffixes())
}

// IsArchive reports whether path carries a recognized archive suffix.
func IsArchive(path string) bool {
	_, err := DetectFormat(path)
	return err == nil
}

// hasCanonicalSuffix reports whether path already ends with one of the
// output extensions of kind. The comparison is case-sensitive.
func hasCanonicalSuffix(path string, kind Kind) bool {
	for _, f := range formats {
		if f.canonical && f.Kind == kind && strings.HasSuffix(path, f.Suffix) {
			return true
		}
	}
	return false
}

func supportedSuffixes() string {
	suffixes := make([]string, 0, len(formats))
	for _, f := range formats {
		suffixes = append(suffixes, f.Suffix)
	}
	return strings.Join(suffixes, ", ")
}
