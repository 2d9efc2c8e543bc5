package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"io"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeInfo struct {
	name string
	size int64
	mode fs.FileMode
}

func (f fakeInfo) Name() string       { return f.name }
func (f fakeInfo) Size() int64        { return f.size }
func (f fakeInfo) Mode() fs.FileMode  { return f.mode }
func (f fakeInfo) ModTime() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
func (f fakeInfo) IsDir() bool        { return f.mode.IsDir() }
func (f fakeInfo) Sys() any           { return nil }

func fileInfo(name, content string) fs.FileInfo {
	return fakeInfo{name: name, size: int64(len(content)), mode: 0644}
}

// writeTree creates files below root. Keys ending in "/" create empty
// directories.
func writeTree(t *testing.T, afs afero.Fs, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if name[len(name)-1] == '/' {
			require.NoError(t, afs.MkdirAll(p, 0755))
			continue
		}
		require.NoError(t, afs.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, afero.WriteFile(afs, p, []byte(content), 0644))
	}
}

// snapshot maps every path below root to its content, or "<dir>" for
// directories.
func snapshot(t *testing.T, afs afero.Fs, root string) map[string]string {
	t.Helper()
	found := make(map[string]string)
	err := afero.Walk(afs, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			found[filepath.ToSlash(rel)] = "<dir>"
			return nil
		}
		data, err := afero.ReadFile(afs, p)
		if err != nil {
			return err
		}
		found[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return found
}

func randomContent(size int) string {
	r := rand.New(rand.NewSource(int64(size)))
	buf := make([]byte, size)
	_, _ = r.Read(buf)
	return string(buf)
}

type tarEntry struct {
	name     string
	body     string
	typeflag byte
	linkname string
}

// buildTar writes a tar archive with the given raw entries, bypassing the
// Writer so that hostile names can be produced.
func buildTar(t *testing.T, path string, compression Compression, entries []tarEntry) {
	t.Helper()
	var buf bytes.Buffer
	p, err := newTarPacker(&buf, compression)
	require.NoError(t, err)
	for _, e := range entries {
		typeflag := e.typeflag
		if typeflag == 0 {
			typeflag = tar.TypeReg
		}
		hdr := &tar.Header{
			Name:     e.name,
			Typeflag: typeflag,
			Linkname: e.linkname,
			Mode:     0644,
			ModTime:  time.Now(),
		}
		if typeflag == tar.TypeReg {
			hdr.Size = int64(len(e.body))
		}
		require.NoError(t, p.tarWriter.WriteHeader(hdr))
		if hdr.Size > 0 {
			_, err := io.WriteString(p.tarWriter, e.body)
			require.NoError(t, err)
		}
	}
	require.NoError(t, p.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func buildZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range lo.Keys(entries) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, entries[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func newTestWriter() *Writer {
	return NewWriter(afero.NewOsFs(), zap.NewNop())
}

func newTestReader() *Reader {
	return NewReader(afero.NewOsFs(), zap.NewNop())
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return lo.Map(entries, func(e os.DirEntry, _ int) string { return e.Name() })
}
