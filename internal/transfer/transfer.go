// Package transfer hands a finished archive, or any local path, to an
// external transfer mechanism.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Named interface {
	Name() string
	Kind() string
}

// Transferrer moves a local file or directory to a remote destination.
// Implementations report failures and never retry.
type Transferrer interface {
	Named
	Transfer(ctx context.Context, localPath string) error
}

// Method selects the transfer mechanism.
type Method string

const (
	MethodCopy    Method = "copy"
	MethodSync    Method = "sync"
	MethodSession Method = "session"
	MethodS3      Method = "s3"
)

var ErrInvalidTarget = errors.New("invalid transfer target")

// Target is a remote login and destination path.
type Target struct {
	User string
	Host string
	Path string
}

// String returns the user@host:path form understood by scp and rsync.
func (t Target) String() string {
	return fmt.Sprintf("%s@%s:%s", t.User, t.Host, t.Path)
}

// Login returns the user@host form understood by sftp.
func (t Target) Login() string {
	return t.User + "@" + t.Host
}

// Validate checks that every field is set and that user and host cannot be
// mistaken for command-line options.
func (t Target) Validate() error {
	var missing []string
	if strings.TrimSpace(t.User) == "" {
		missing = append(missing, "user")
	}
	if strings.TrimSpace(t.Host) == "" {
		missing = append(missing, "host")
	}
	if strings.TrimSpace(t.Path) == "" {
		missing = append(missing, "path")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidTarget, strings.Join(missing, ", "))
	}

	if strings.HasPrefix(t.User, "-") || strings.HasPrefix(t.Host, "-") {
		return fmt.Errorf("%w: user and host must not start with '-'", ErrInvalidTarget)
	}
	if strings.ContainsAny(t.User, "@: \t\n") {
		return fmt.Errorf("%w: user %q contains a reserved character", ErrInvalidTarget, t.User)
	}
	if strings.ContainsAny(t.Host, "@ \t\n") {
		return fmt.Errorf("%w: host %q contains a reserved character", ErrInvalidTarget, t.Host)
	}
	return nil
}
