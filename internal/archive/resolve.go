package archive

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ResolveOutputPath computes where an archive of source is written.
//
// Without output the archive is named after the source and placed in the
// current directory. An existing directory, or any output ending in a path
// separator, receives the archive inside it.
// Any other output keeps its name when it already ends with an extension of
// kind and gets the canonical extension appended otherwise.
func ResolveOutputPath(fs afero.Fs, source, output string, kind Kind, compression Compression) (string, error) {
	root, err := sourceRoot(source)
	if err != nil {
		return "", err
	}
	name := filepath.Base(root)
	ext := Extension(kind, compression)

	if output == "" {
		return name + ext, nil
	}

	isDir, err := afero.IsDir(fs, output)
	if (err == nil && isDir) || strings.HasSuffix(output, "/") || strings.HasSuffix(output, string(filepath.Separator)) {
		return filepath.Join(output, name+ext), nil
	}

	if !hasCanonicalSuffix(output, kind) {
		return output + ext, nil
	}
	return output, nil
}
