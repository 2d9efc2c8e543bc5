package runner

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"
)

// ISO8601Basic is a timestamp format without colons, safe in object keys
// and file names.
const ISO8601Basic = "20060102T150405Z"

// BuildVariables returns the variables available to ${VAR} references: the
// built-in DATE_* values and every environment variable named in
// allowedEnv. An allowed variable that is not set is an error.
func BuildVariables(now time.Time, allowedEnv []string) (map[string]string, error) {
	date := now.UTC()
	variables := map[string]string{
		"DATE_ISO8601": date.Format(ISO8601Basic),
		"DATE_RFC3339": date.Format(time.RFC3339),
	}

	var errs error
	for _, name := range allowedEnv {
		val, ok := os.LookupEnv(name)
		if !ok {
			errs = errors.Join(errs, fmt.Errorf("environment variable %q is not set", name))
			continue
		}
		variables[name] = val
	}
	if errs != nil {
		return nil, errs
	}
	return variables, nil
}

// ExpandTemplates expands ${VAR} references in place. String and *string
// fields are expanded only when tagged `template:""`; structs, pointers to
// structs and slices of structs are walked regardless of tags.
func ExpandTemplates[T any](in *T, variables map[string]string) error {
	if in == nil {
		return nil
	}
	return expandValue(reflect.ValueOf(in).Elem(), variables)
}

func expandValue(v reflect.Value, variables map[string]string) error {
	switch v.Kind() {
	case reflect.Struct:
		return expandStruct(v, variables)
	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		return expandValue(v.Elem(), variables)
	case reflect.Slice:
		for i := range v.Len() {
			if err := expandValue(v.Index(i), variables); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

func expandStruct(v reflect.Value, variables map[string]string) error {
	typ := v.Type()
	for i := range typ.NumField() {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		field := v.Field(i)
		tag, tagged := sf.Tag.Lookup("template")
		tagged = tagged && tag != "-"

		switch {
		case field.Kind() == reflect.String:
			if tagged {
				if err := expandString(field, sf.Name, variables); err != nil {
					return err
				}
			}
		case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.String:
			if tagged && !field.IsNil() {
				// Expand into a fresh pointer so shared strings stay untouched.
				fresh := reflect.New(field.Type().Elem())
				fresh.Elem().SetString(field.Elem().String())
				if err := expandString(fresh.Elem(), sf.Name, variables); err != nil {
					return err
				}
				field.Set(fresh)
			}
		default:
			if err := expandValue(field, variables); err != nil {
				return err
			}
		}
	}
	return nil
}

func expandString(v reflect.Value, field string, variables map[string]string) error {
	expanded, err := Expand(v.String(), variables)
	if err != nil {
		return fmt.Errorf("field %s: %w", field, err)
	}
	v.SetString(expanded)
	return nil
}

// Expand replaces ${VAR} references in value. Referencing a variable that
// is not in variables is an error.
func Expand(value string, variables map[string]string) (string, error) {
	var errs error

	result := os.Expand(value, func(key string) string {
		if val, ok := variables[key]; ok {
			return val
		}
		errs = errors.Join(errs, fmt.Errorf("environment variable %q is not in the allowed list", key))
		return ""
	})

	if errs != nil {
		return "", errs
	}
	return result, nil
}
