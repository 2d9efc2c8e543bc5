package transfer

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Factory builds a transferrer from an untyped config. afs is the filesystem
// local paths are read from.
type Factory func(ctx context.Context, logger *zap.Logger, afs afero.Fs, name string, input any) (Transferrer, error)

// TypedFactory is a strongly-typed transferrer factory.
// S is the concrete config type (e.g. CommandConfig).
type TypedFactory[S any] func(ctx context.Context, logger *zap.Logger, afs afero.Fs, name string, cfg S) (Transferrer, error)

// NewFactory wraps a typed factory into a generic Factory.
// It centralizes the unsafe cast from any → S and provides a clear error if the type mismatches.
func NewFactory[S any](method Method, f TypedFactory[S]) Factory {
	return func(ctx context.Context, logger *zap.Logger, afs afero.Fs, name string, input any) (Transferrer, error) {
		cfg, ok := input.(S)
		if !ok {
			return nil, fmt.Errorf("invalid config for transfer method %q with name %s: %T", method, name, input)
		}
		return f(ctx, logger, afs, name, cfg)
	}
}

// UnsupportedTypeError is returned when a transfer method is not registered.
type UnsupportedTypeError struct {
	Method    string
	Available []string
}

func (e *UnsupportedTypeError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unsupported transfer method %q: no methods registered", e.Method)
	}
	return fmt.Sprintf("unsupported transfer method %q (available: %v)", e.Method, e.Available)
}

type Registry struct {
	mu        sync.RWMutex
	factories map[Method]Factory
	logger    *zap.Logger
	fs        afero.Fs
}

func NewRegistry(logger *zap.Logger, afs afero.Fs) *Registry {
	return &Registry{
		factories: make(map[Method]Factory),
		logger:    logger,
		fs:        afs,
	}
}

func (r *Registry) Register(method Method, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[method] = factory
}

func (r *Registry) Create(ctx context.Context, method Method, name string, cfg any) (Transferrer, error) {
	r.mu.RLock()
	factory, ok := r.factories[method]
	available := r.availableMethods()
	r.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedTypeError{Method: string(method), Available: available}
	}
	return factory(ctx, r.logger, r.fs, name, cfg)
}

func (r *Registry) AvailableMethods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.availableMethods()
}

func (r *Registry) availableMethods() []string {
	methods := lo.Map(lo.Keys(r.factories), func(m Method, _ int) string { return string(m) })
	slices.Sort(methods)
	return methods
}

// RegisterDefaults registers the scp, rsync, sftp and S3 transferrers.
func RegisterDefaults(r *Registry) {
	for _, method := range []Method{MethodCopy, MethodSync, MethodSession} {
		r.Register(method, NewFactory(method, newCommandTransferrer(method)))
	}
	r.Register(MethodS3, NewFactory(MethodS3, newS3Transferrer))
}

func newCommandTransferrer(method Method) TypedFactory[CommandConfig] {
	return func(_ context.Context, logger *zap.Logger, afs afero.Fs, name string, cfg CommandConfig) (Transferrer, error) {
		cfg.Method = method
		t, err := NewCommandTransferrer(name, logger, afs, cfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

func newS3Transferrer(ctx context.Context, logger *zap.Logger, afs afero.Fs, name string, cfg S3Config) (Transferrer, error) {
	t, err := NewS3Transferrer(ctx, name, logger, afs, cfg)
	if err != nil {
		return nil, err
	}
	return t, nil
}
