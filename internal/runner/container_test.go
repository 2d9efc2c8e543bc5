package runner

import (
	"testing"

	"github.com/samber/do/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/packship/packship/internal/archive"
	"github.com/packship/packship/internal/transfer"
)

func TestBuildContainer(t *testing.T) {
	afs := afero.NewMemMapFs()
	injector := BuildContainer(zap.NewNop(), afs)

	writer, err := do.Invoke[*archive.Writer](injector)
	require.NoError(t, err)
	reader, err := do.Invoke[*archive.Reader](injector)
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(afs, "/src/data.txt", []byte("payload"), 0644))
	out, err := writer.Write(t.Context(), archive.Request{
		Source:      "/src/data.txt",
		Output:      "/out/",
		Kind:        archive.KindTar,
		Compression: archive.CompressionZstd,
	})
	require.NoError(t, err)
	assert.Equal(t, "/out/data.txt.tar.zst", out)

	require.NoError(t, reader.Extract(t.Context(), out, "/dest"))
	data, err := afero.ReadFile(afs, "/dest/data.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	registry, err := do.Invoke[*transfer.Registry](injector)
	require.NoError(t, err)
	assert.Equal(t, []string{"copy", "s3", "session", "sync"}, registry.AvailableMethods())

	same := do.MustInvoke[*transfer.Registry](injector)
	assert.Same(t, registry, same)
}
