// Package config loads the benchmark's YAML config files.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"
)

// ValidationError lists the fields of a config that
// failed their validate tags.
type ValidationError struct {
	errs validator.ErrorMap
}

// ErrForField gets the validation errors for a field, or
// nil if the field is valid.
//
// Nested fields are named by their path, like
// "Bench.WorldSize".
func (v ValidationError) ErrForField(name string) error {
	if errs, ok := v.errs[name]; ok && len(errs) > 0 {
		return errs
	}
	return nil
}

// Fields gets the names of the invalid fields, sorted.
func (v ValidationError) Fields() []string {
	var res []string
	for name, errs := range v.errs {
		if len(errs) > 0 {
			res = append(res, name)
		}
	}
	sort.Strings(res)
	return res
}

func (v ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation failed:")
	for _, name := range v.Fields() {
		fmt.Fprintf(&b, "\n  %s: %v", name, v.errs[name])
	}
	return b.String()
}

// Parse decodes each file into config in turn, so values
// in later files override earlier ones, then validates
// the result.
//
// Unknown keys are rejected so that typos in a config
// file do not go unnoticed.
func Parse(config interface{}, files ...string) error {
	if len(files) == 0 {
		return errors.New("no config files given")
	}
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			return errors.Wrap(err, "read config")
		}
		if err := yaml.UnmarshalStrict(data, config); err != nil {
			return errors.Wrapf(err, "parse %s", name)
		}
	}
	if err := validator.Validate(config); err != nil {
		if errs, ok := err.(validator.ErrorMap); ok {
			return ValidationError{errs: errs}
		}
		return errors.Wrap(err, "validate config")
	}
	return nil
}
