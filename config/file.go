package config

import (
	"fmt"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"
)

// LoadFile decodes the YAML file at path into dst. Keys missing from the
// file leave the corresponding fields untouched. Unknown keys are rejected.
func LoadFile(path string, dst any) error {
	if v := reflect.ValueOf(dst); v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("config: dst must be a non-nil pointer, got %T", dst)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	return nil
}

// LoadAll applies the YAML file at path (if path is not empty) and then the
// environment overlay for stage to dst.
func (l Loader) LoadAll(path, stage string, dst any) error {
	if path != "" {
		if err := LoadFile(path, dst); err != nil {
			return err
		}
	}
	return l.Load(stage, dst)
}
