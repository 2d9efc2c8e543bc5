package runner

import (
	"context"
	"fmt"
	"time"

	v1 "github.com/packship/packship/apis/v1"
	"github.com/packship/packship/internal/transfer"
)

// ResolvedSpec holds a transfer method and the config for that method.
type ResolvedSpec struct {
	Method transfer.Method
	Config any
}

// ResolveTargetSpec maps a v1.Target to the config its transfer method
// expects.
func ResolveTargetSpec(t v1.Target) (ResolvedSpec, error) {
	method := transfer.Method(t.Method)

	var timeout time.Duration
	if t.Timeout != nil && *t.Timeout != "" {
		parsed, err := time.ParseDuration(*t.Timeout)
		if err != nil {
			return ResolvedSpec{}, fmt.Errorf("target %q: invalid timeout %q: %w", t.Name, *t.Timeout, err)
		}
		timeout = parsed
	}

	switch method {
	case transfer.MethodCopy, transfer.MethodSync, transfer.MethodSession:
		if t.SSH == nil {
			return ResolvedSpec{}, fmt.Errorf("target %q: method %s requires ssh settings", t.Name, method)
		}
		return ResolvedSpec{Method: method, Config: transfer.CommandConfig{
			Method:   method,
			Target:   transfer.Target{User: t.SSH.User, Host: t.SSH.Host, Path: t.SSH.Path},
			Compress: t.Compress,
			Timeout:  timeout,
		}}, nil
	case transfer.MethodS3:
		if t.S3 == nil {
			return ResolvedSpec{}, fmt.Errorf("target %q: method s3 requires s3 settings", t.Name)
		}
		return ResolvedSpec{Method: method, Config: transfer.S3Config{
			Bucket:          t.S3.Bucket,
			Region:          t.S3.Region,
			Endpoint:        t.S3.Endpoint,
			Prefix:          t.S3.Prefix,
			AccessKeyID:     t.S3.AccessKeyID,
			SecretAccessKey: t.S3.SecretAccessKey,
			ForcePathStyle:  t.S3.ForcePathStyle,
		}}, nil
	default:
		return ResolvedSpec{}, fmt.Errorf("target %q has no transfer method specified", t.Name)
	}
}

// NewTransferrer builds the transferrer for t from the registry.
func NewTransferrer(ctx context.Context, registry *transfer.Registry, t v1.Target) (transfer.Transferrer, error) {
	spec, err := ResolveTargetSpec(t)
	if err != nil {
		return nil, err
	}

	transferrer, err := registry.Create(ctx, spec.Method, t.Name, spec.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer %q: %w", t.Name, err)
	}
	return transferrer, nil
}
