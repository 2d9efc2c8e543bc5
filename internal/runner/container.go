package runner

import (
	"github.com/packship/packship/internal/archive"
	"github.com/packship/packship/internal/transfer"
	"github.com/samber/do/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// BuildContainer creates a new DI container with all dependencies registered.
// Dependencies are lazily initialized when first requested.
func BuildContainer(logger *zap.Logger, fs afero.Fs) *do.RootScope {
	injector := do.New()

	// Eager: already created by the caller.
	do.ProvideValue(injector, logger)
	do.ProvideValue(injector, fs)

	do.Provide(injector, func(i do.Injector) (*archive.Writer, error) {
		return archive.NewWriter(do.MustInvoke[afero.Fs](i), do.MustInvoke[*zap.Logger](i).Named("writer")), nil
	})

	do.Provide(injector, func(i do.Injector) (*archive.Reader, error) {
		return archive.NewReader(do.MustInvoke[afero.Fs](i), do.MustInvoke[*zap.Logger](i).Named("reader")), nil
	})

	do.Provide(injector, func(i do.Injector) (*transfer.Registry, error) {
		registry := transfer.NewRegistry(do.MustInvoke[*zap.Logger](i).Named("transfer"), do.MustInvoke[afero.Fs](i))
		transfer.RegisterDefaults(registry)
		return registry, nil
	})

	return injector
}
