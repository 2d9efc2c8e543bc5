package main

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"
	"go.uber.org/zap"
)

type loggerCtxKeyType struct{}

type injectorCtxKeyType struct{}

var (
	loggerCtxKey   = loggerCtxKeyType{}
	injectorCtxKey = injectorCtxKeyType{}
)

// createLogger builds the console logger. --debug switches to the
// development config with caller and stack information.
func createLogger(debug bool, logLevel string) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", logLevel, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = level

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Named("packship"), nil
}

func withLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

func tryLogger(ctx context.Context) *zap.Logger {
	logger, ok := ctx.Value(loggerCtxKey).(*zap.Logger)
	if !ok {
		return nil
	}
	return logger
}

func getLogger(ctx context.Context) *zap.Logger {
	logger := tryLogger(ctx)
	if logger == nil {
		panic("logger not found in context")
	}
	return logger
}

func withInjector(ctx context.Context, injector do.Injector) context.Context {
	return context.WithValue(ctx, injectorCtxKey, injector)
}

func getInjector(ctx context.Context) do.Injector {
	injector, ok := ctx.Value(injectorCtxKey).(do.Injector)
	if !ok {
		panic("injector not found in context")
	}
	return injector
}
