package main

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"runtime/debug"
	"strings"
	"testing"

	v1 "github.com/packship/packship/apis/v1"
	"github.com/packship/packship/internal/archive"
	"github.com/packship/packship/internal/runner"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "y\n", want: true},
		{input: "YES\n", want: true},
		{input: " yes \n", want: true},
		{input: "n\n", want: false},
		{input: "\n", want: false},
		{input: "", want: false},
		{input: "sure\n", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var out bytes.Buffer
			got, err := confirm(strings.NewReader(tt.input), &out, "Overwrite?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "Overwrite? [y/N]: ", out.String())
		})
	}
}

func TestPromptTarget(t *testing.T) {
	t.Run("sync asks about compression", func(t *testing.T) {
		var out bytes.Buffer
		target, err := promptTarget(strings.NewReader("2\nexample.com\ndeploy\n/srv/drop\ny\n"), &out)
		require.NoError(t, err)
		assert.Equal(t, v1.Target{
			Name:     "sync",
			Method:   "sync",
			Compress: true,
			SSH:      &v1.SSHTarget{User: "deploy", Host: "example.com", Path: "/srv/drop"},
		}, target)
		assert.Contains(t, out.String(), "Compress during transfer?")
		require.NoError(t, runner.ValidateTarget(target))
	})

	t.Run("copy", func(t *testing.T) {
		var out bytes.Buffer
		target, err := promptTarget(strings.NewReader("1\nexample.com\ndeploy\n/srv/drop\n"), &out)
		require.NoError(t, err)
		assert.Equal(t, "copy", target.Method)
		assert.False(t, target.Compress)
		assert.NotContains(t, out.String(), "Compress")
	})

	t.Run("invalid choice", func(t *testing.T) {
		_, err := promptTarget(strings.NewReader("4\n"), &bytes.Buffer{})
		require.Error(t, err)
		assert.ErrorContains(t, err, `invalid choice "4"`)
	})

	t.Run("missing answers", func(t *testing.T) {
		_, err := promptTarget(strings.NewReader("3\nexample.com\n"), &bytes.Buffer{})
		require.Error(t, err)
		assert.ErrorContains(t, err, "all required")
	})
}

func TestBuildRequest(t *testing.T) {
	tests := []struct {
		name        string
		kind        string
		compression string
		want        archive.Request
		wantErr     error
	}{
		{
			name: "tar defaults to gzip",
			kind: "tar",
			want: archive.Request{Source: "src", Kind: archive.KindTar, Compression: archive.CompressionGzip},
		},
		{
			name: "zip defaults to deflated",
			kind: "ZIP",
			want: archive.Request{Source: "src", Kind: archive.KindZip, Compression: archive.CompressionDeflated},
		},
		{
			name:        "explicit none",
			kind:        "tar",
			compression: "none",
			want:        archive.Request{Source: "src", Kind: archive.KindTar, Compression: archive.CompressionNone},
		},
		{
			name:        "alias",
			kind:        "tar",
			compression: "zst",
			want:        archive.Request{Source: "src", Kind: archive.KindTar, Compression: archive.CompressionZstd},
		},
		{
			name:        "mismatch",
			kind:        "zip",
			compression: "xz",
			wantErr:     archive.ErrInvalidRequest,
		},
		{
			name:    "unknown kind",
			kind:    "rar",
			wantErr: archive.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildRequest("src", "", tt.kind, tt.compression, false)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := buildRequest("", "", "tar", "", false)
	assert.ErrorContains(t, err, "no source provided")
}

func TestFormatValidationError(t *testing.T) {
	err := runner.ValidateTarget(v1.Target{Name: "adhoc", Method: "copy", SSH: &v1.SSHTarget{User: "u"}})
	require.Error(t, err)

	formatted := formatValidationError(err)
	assert.Contains(t, formatted.Error(), "targets file has 2 validation error(s):")
	assert.Contains(t, formatted.Error(), "Target.SSH.Host: failed 'required' validation")
	assert.Contains(t, formatted.Error(), "Target.SSH.Path: failed 'required' validation")

	plain := errors.New("boom")
	assert.Same(t, plain, formatValidationError(plain))
}

func TestPrintMembers(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printMembers(&out, []archive.Member{
		{Name: "project", Type: archive.MemberDir, Mode: fs.ModeDir | 0755},
		{Name: "project/a.txt", Type: archive.MemberFile, Mode: 0644, Size: 5},
		{Name: "project/link", Type: archive.MemberSymlink, Linkname: "a.txt"},
	}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "project/a.txt")
	assert.Contains(t, lines[1], "5")
	assert.Contains(t, lines[2], "project/link -> a.txt")
}

func TestApplyBuildInfo(t *testing.T) {
	version, goVersion, commit, buildTime, modified := Version, GoVersion, Commit, BuildTime, Modified
	t.Cleanup(func() {
		Version, GoVersion, Commit, BuildTime, Modified = version, goVersion, commit, buildTime, modified
	})
	BuildTime = "unknown"

	applyBuildInfo(&debug.BuildInfo{
		GoVersion: "go1.25.6",
		Main:      debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.modified", Value: "true"},
		},
	})

	var out bytes.Buffer
	printVersion(&out)
	assert.Equal(t, "packship v1.2.3 (go1.25.6)\ncommit: abc123, dirty\n", out.String())
}

func TestCreateLogger(t *testing.T) {
	logger, err := createLogger(false, "warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))

	_, err = createLogger(false, "loud")
	assert.ErrorContains(t, err, "invalid log level loud")
}

const testTargets = `
kind: Targets
targets:
  - name: staging
    method: sync
    ssh: {user: deploy, host: staging.example.com, path: /srv/drop}
`

// memContext returns a command context whose container serves afs.
func memContext(t *testing.T, afs afero.Fs) context.Context {
	t.Helper()
	ctx := withLogger(t.Context(), zap.NewNop())
	return withInjector(ctx, runner.BuildContainer(zap.NewNop(), afs))
}

func TestResolveTarget_ReadsContainerFilesystem(t *testing.T) {
	afs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(afs, "/etc/packship.yaml", []byte(testTargets), 0644))

	var (
		target v1.Target
		ok     bool
	)
	command := &cli.Command{
		Name:  "resolve",
		Flags: targetFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			var err error
			target, ok, err = resolveTarget(ctx, command)
			return err
		},
	}

	err := command.Run(memContext(t, afs), []string{"resolve", "--target", "staging", "--targets", "/etc/packship.yaml"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sync", target.Method)
	assert.Equal(t, "staging.example.com", target.SSH.Host)
}

func TestValidateCommand_ReadsContainerFilesystem(t *testing.T) {
	afs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(afs, "/etc/packship.yaml", []byte(testTargets), 0644))

	require.NoError(t, validateCommand.Run(memContext(t, afs), []string{"validate", "/etc/packship.yaml"}))
}
