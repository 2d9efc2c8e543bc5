package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ErrTransferFailed is returned when the transfer tool exits unsuccessfully.
var ErrTransferFailed = errors.New("transfer failed")

// CommandConfig configures a transfer that runs scp, rsync or sftp.
type CommandConfig struct {
	Method Method
	Target Target
	// Compress enables rsync's -z flag. Other methods ignore it.
	Compress bool
	// Timeout bounds a single run. Zero means no limit.
	Timeout time.Duration
}

// CommandTransferrer runs an external transfer tool. Arguments are passed
// as argv, never through a shell.
type CommandTransferrer struct {
	name   string
	logger *zap.Logger
	cfg    CommandConfig
	fs     afero.Fs
}

// NewCommandTransferrer validates cfg. afs must be backed by the OS
// filesystem: the tools read local paths and the sftp batch file directly.
func NewCommandTransferrer(name string, logger *zap.Logger, afs afero.Fs, cfg CommandConfig) (*CommandTransferrer, error) {
	if toolFor(cfg.Method) == "" {
		return nil, fmt.Errorf("method %q does not run a command", cfg.Method)
	}
	if err := cfg.Target.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("invalid timeout %s", cfg.Timeout)
	}

	return &CommandTransferrer{
		name:   name,
		logger: logger,
		cfg:    cfg,
		fs:     afs,
	}, nil
}

func (c *CommandTransferrer) Name() string {
	if c.name != "" {
		return c.name
	}
	return fmt.Sprintf("%s(%s)", c.cfg.Method, c.cfg.Target)
}

func (c *CommandTransferrer) Kind() string {
	return string(c.cfg.Method)
}

// Tool returns the program this transferrer runs.
func (c *CommandTransferrer) Tool() string {
	return toolFor(c.cfg.Method)
}

func (c *CommandTransferrer) Transfer(ctx context.Context, localPath string) error {
	info, err := c.fs.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	tool := c.Tool()
	program, err := exec.LookPath(tool)
	if err != nil {
		return &MissingToolError{Tool: tool, Err: err}
	}

	args, cleanup, err := c.args(localPath, info.IsDir())
	if err != nil {
		return err
	}
	defer cleanup()

	return c.run(ctx, tool, program, args)
}

// args builds the argv for the configured method. cleanup is always
// non-nil and removes any temporary files created for the run.
func (c *CommandTransferrer) args(localPath string, isDir bool) ([]string, func(), error) {
	local := argPath(localPath)
	nop := func() {}

	switch c.cfg.Method {
	case MethodCopy:
		var args []string
		if isDir {
			args = append(args, "-r")
		}
		return append(args, local, c.cfg.Target.String()), nop, nil

	case MethodSync:
		flags := "-av"
		if c.cfg.Compress {
			flags = "-avz"
		}
		return []string{flags, local, c.cfg.Target.String()}, nop, nil

	case MethodSession:
		batch, err := c.writeBatch(local, isDir)
		if err != nil {
			return nil, nop, err
		}
		cleanup := func() {
			if err := c.fs.Remove(batch); err != nil {
				c.logger.Warn("failed to remove sftp batch file", zap.String("path", batch), zap.Error(err))
			}
		}
		return []string{"-b", batch, c.cfg.Target.Login()}, cleanup, nil
	}
	return nil, nop, fmt.Errorf("method %q does not run a command", c.cfg.Method)
}

// writeBatch writes the sftp batch script that changes to the remote path
// and uploads local.
func (c *CommandTransferrer) writeBatch(local string, isDir bool) (path string, err error) {
	f, err := afero.TempFile(c.fs, "", "packship-sftp-*.batch")
	if err != nil {
		return "", fmt.Errorf("failed to create sftp batch file: %w", err)
	}
	path = f.Name()
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close sftp batch file: %w", closeErr))
		}
		if err != nil {
			_ = c.fs.Remove(path)
		}
	}()

	put := "put"
	if isDir {
		put = "put -r"
	}
	script := fmt.Sprintf("cd %s\n%s %s\n", quoteBatchArg(c.cfg.Target.Path), put, quoteBatchArg(local))
	if _, err := f.WriteString(script); err != nil {
		return path, fmt.Errorf("failed to write sftp batch file: %w", err)
	}
	return path, nil
}

func (c *CommandTransferrer) run(ctx context.Context, tool, program string, args []string) error {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, program, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug("invoking transfer command",
		zap.String("transfer", c.Name()),
		zap.String("program", program),
		zap.Strings("args", args),
		zap.Duration("timeout", c.cfg.Timeout),
	)
	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	c.logger.Debug("transfer command finished",
		zap.String("transfer", c.Name()),
		zap.Int("exit_code", exitCode),
		zap.Duration("duration", duration),
		zap.String("stdout", strings.TrimSpace(stdout.String())),
	)

	if err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s timed out after %s: %s", ErrTransferFailed, tool, c.cfg.Timeout, stderrStr)
		}
		if stderrStr != "" {
			return fmt.Errorf("%w: %s: %w: %s", ErrTransferFailed, tool, err, stderrStr)
		}
		return fmt.Errorf("%w: %s: %w", ErrTransferFailed, tool, err)
	}
	return nil
}

func toolFor(m Method) string {
	switch m {
	case MethodCopy:
		return "scp"
	case MethodSync:
		return "rsync"
	case MethodSession:
		return "sftp"
	default:
		return ""
	}
}

// argPath keeps a relative path from being parsed as an option.
func argPath(p string) string {
	if strings.HasPrefix(p, "-") {
		return "./" + p
	}
	return p
}

var batchEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quoteBatchArg(s string) string {
	return `"` + batchEscaper.Replace(s) + `"`
}

// MissingToolError is returned when the transfer program is not on PATH.
type MissingToolError struct {
	Tool string
	Err  error
}

func (e *MissingToolError) Error() string {
	return fmt.Sprintf("%s is not installed or not in PATH", e.Tool)
}

func (e *MissingToolError) Unwrap() error {
	return e.Err
}

// Guide returns install instructions for the common package managers.
func (e *MissingToolError) Guide() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s was not found, install it first:\n", e.Tool)
	fmt.Fprintf(&b, "\n  Ubuntu/Debian:  sudo apt-get install %s\n", e.Tool)
	fmt.Fprintf(&b, "  CentOS/RHEL:    sudo yum install %s\n", e.Tool)
	fmt.Fprintf(&b, "  macOS:          brew install %s\n", e.Tool)
	return b.String()
}
