package runner

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	v1 "github.com/packship/packship/apis/v1"
	"github.com/samber/lo"
	"github.com/spf13/afero"
)

var (
	defaultValidator = validator.New(validator.WithRequiredStructEnabled())
)

// ParseTargets parses a YAML or JSON targets file and validates it. ${VAR}
// references are left unexpanded; see ExpandTemplates.
func ParseTargets(data []byte) (v1.TargetsFile, error) {
	var file v1.TargetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return v1.TargetsFile{}, fmt.Errorf("failed to unmarshal targets file: %w", err)
	}

	if err := defaultValidator.Struct(file); err != nil {
		return v1.TargetsFile{}, fmt.Errorf("failed to validate targets file: %w", err)
	}

	return file, nil
}

// LoadTargets reads path, parses it and expands ${VAR} references with
// variables.
func LoadTargets(fs afero.Fs, path string, variables map[string]string) (v1.TargetsFile, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return v1.TargetsFile{}, fmt.Errorf("failed to read targets file: %w", err)
	}

	file, err := ParseTargets(data)
	if err != nil {
		return v1.TargetsFile{}, err
	}

	if err := ExpandTemplates(&file, variables); err != nil {
		return v1.TargetsFile{}, fmt.Errorf("failed to expand targets file: %w", err)
	}
	return file, nil
}

// FindTarget returns the target called name.
func FindTarget(file v1.TargetsFile, name string) (v1.Target, error) {
	target, ok := lo.Find(file.Targets, func(t v1.Target) bool { return t.Name == name })
	if !ok {
		names := lo.Map(file.Targets, func(t v1.Target, _ int) string { return t.Name })
		return v1.Target{}, fmt.Errorf("target %q not found (available: %v)", name, names)
	}
	return target, nil
}

// ValidateTarget validates a target built outside a targets file.
func ValidateTarget(t v1.Target) error {
	if err := defaultValidator.Struct(t); err != nil {
		return fmt.Errorf("failed to validate target %q: %w", t.Name, err)
	}
	return nil
}
