// Package config loads configuration structs from YAML files and
// environment variables.
//
// Environment variable names follow the pattern:
//
//	{Prefix}_{STAGE}_{FIELD}
//
// Named nested structs add their field name as a segment, embedded structs
// are flattened:
//
//	{Prefix}_{STAGE}_{STRUCT}_{FIELD}
//
// Go field names are converted from CamelCase to UPPER_SNAKE_CASE, so
// relay.Config loaded for the stage "relay" reads:
//
//	GORELAY_RELAY_MAX_SIZE=50
//	GORELAY_RELAY_LOG=demo
//	GORELAY_RELAY_LOG_FILE=var/log/relay.log
//	GORELAY_RELAY_LOG_FILE_KEEP=3
//
// Supported field types: string, bool, int*, uint*, float*, time.Duration.
// Other fields (functions, interfaces, channels, pointers, slices, maps) are
// skipped.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DefaultPrefix is the variable prefix used by the zero Loader.
const DefaultPrefix = "GORELAY"

var durationType = reflect.TypeFor[time.Duration]()

// Loader reads environment variables into configuration structs.
type Loader struct {
	// Prefix for environment variable names.
	// Default: "GORELAY".
	Prefix string

	// lookup replaces os.LookupEnv in tests.
	lookup func(string) (string, bool)
}

// Load overlays dst with the environment using the default Loader.
func Load(stage string, dst any) error {
	return Loader{}.Load(stage, dst)
}

// Keys lists the variables Load would read, using the default Loader.
func Keys(stage string, dst any) []string {
	return Loader{}.Keys(stage, dst)
}

// Load sets every field of the struct pointed to by dst whose variable is
// present in the environment. Fields without a variable keep their value,
// so Load overlays environment overrides on programmatic or file defaults.
func (l Loader) Load(stage string, dst any) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: dst must be a pointer to a struct, got %T", dst)
	}
	return walk(l.root(stage), v.Elem(), func(key string, fv reflect.Value) error {
		raw, ok := l.lookupEnv(key)
		if !ok {
			return nil
		}
		if err := set(fv, raw); err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		return nil
	})
}

// Keys returns the variable names Load checks for dst, which may be a
// struct or a pointer to one.
func (l Loader) Keys(stage string, dst any) []string {
	v := reflect.ValueOf(dst)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	var keys []string
	// walk only fails if visit does
	_ = walk(l.root(stage), reflect.New(v.Type()).Elem(), func(key string, _ reflect.Value) error {
		keys = append(keys, key)
		return nil
	})
	return keys
}

func (l Loader) root(stage string) string {
	prefix := l.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "_" + normalizeStage(stage)
}

func (l Loader) lookupEnv(key string) (string, bool) {
	if l.lookup != nil {
		return l.lookup(key)
	}
	return os.LookupEnv(key)
}

// walk calls visit for every supported leaf field of v with its key.
func walk(prefix string, v reflect.Value, visit func(string, reflect.Value) error) error {
	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		fv := v.Field(i)
		nested := field.Type.Kind() == reflect.Struct && field.Type != durationType

		key := prefix
		if !field.Anonymous {
			key += "_" + toUpperSnake(field.Name)
		}

		switch {
		case !field.IsExported():
			// promoted fields of unexported embedded structs still count
			if field.Anonymous && nested {
				if err := walk(prefix, fv, visit); err != nil {
					return err
				}
			}
		case nested:
			if err := walk(key, fv, visit); err != nil {
				return err
			}
		case field.Type == durationType || supported(field.Type.Kind()):
			if err := visit(key, fv); err != nil {
				return err
			}
		}
	}
	return nil
}

func supported(k reflect.Kind) bool {
	switch k {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func set(v reflect.Value, raw string) error {
	if v.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		v.SetInt(int64(d))
		return nil
	}
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	}
	return nil
}

// normalizeStage uppercases a stage name, turns '-', ' ' and '_' into '_'
// and drops everything else.
func normalizeStage(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(unicode.ToUpper(r))
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == ' ' || r == '_':
			b.WriteRune('_')
		}
	}
	return b.String()
}

// toUpperSnake converts CamelCase to UPPER_SNAKE_CASE.
//
//	MaxSize     → MAX_SIZE
//	LogFileKeep → LOG_FILE_KEEP
//	HTTPAddr    → HTTP_ADDR
func toUpperSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			acronymEnd := unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || acronymEnd {
				b.WriteRune('_')
			}
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
