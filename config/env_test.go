package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

type poolConfig struct {
	Workers int
	Backlog int
}

type embeddedLog struct {
	Log         string
	LogFileKeep int
}

type demoConfig struct {
	embeddedLog
	MaxSize  int           `yaml:"max_size"`
	Delay    time.Duration `yaml:"delay"`
	Verbose  bool          `yaml:"verbose"`
	Ratio    float64       `yaml:"ratio"`
	Pool     poolConfig    `yaml:"pool"`
	OnError  func(error)   `yaml:"-"`
	Tags     []string      `yaml:"tags"`
	internal int
}

type allKinds struct {
	S   string
	B   bool
	I8  int8
	I64 int64
	U16 uint16
	F32 float32
	D   time.Duration
}

func TestLoad_Overlay(t *testing.T) {
	l := Loader{lookup: envMap(map[string]string{
		"GORELAY_DEMO_MAX_SIZE":     "50",
		"GORELAY_DEMO_DELAY":        "250ms",
		"GORELAY_DEMO_POOL_WORKERS": "4",
	})}
	cfg := demoConfig{MaxSize: 1, Ratio: 0.5}
	cfg.Pool.Backlog = 9

	require.NoError(t, l.Load("demo", &cfg))
	require.Equal(t, 50, cfg.MaxSize)
	require.Equal(t, 250*time.Millisecond, cfg.Delay)
	require.Equal(t, 4, cfg.Pool.Workers)
	// untouched fields keep their defaults
	require.Equal(t, 0.5, cfg.Ratio)
	require.Equal(t, 9, cfg.Pool.Backlog)
}

func TestLoad_EmbeddedFlattened(t *testing.T) {
	l := Loader{lookup: envMap(map[string]string{
		"GORELAY_DEMO_LOG":           "demo",
		"GORELAY_DEMO_LOG_FILE_KEEP": "3",
	})}
	var cfg demoConfig
	require.NoError(t, l.Load("demo", &cfg))
	require.Equal(t, "demo", cfg.Log)
	require.Equal(t, 3, cfg.LogFileKeep)
}

func TestLoad_AllKinds(t *testing.T) {
	l := Loader{Prefix: "APP", lookup: envMap(map[string]string{
		"APP_X_S":   "hello",
		"APP_X_B":   "true",
		"APP_X_I8":  "-8",
		"APP_X_I64": "64",
		"APP_X_U16": "16",
		"APP_X_F32": "1.5",
		"APP_X_D":   "2s",
	})}
	var cfg allKinds
	require.NoError(t, l.Load("x", &cfg))
	require.Equal(t, allKinds{S: "hello", B: true, I8: -8, I64: 64, U16: 16, F32: 1.5, D: 2 * time.Second}, cfg)
}

func TestLoad_InvalidValue(t *testing.T) {
	for key, raw := range map[string]string{
		"GORELAY_DEMO_MAX_SIZE": "many",
		"GORELAY_DEMO_DELAY":    "soon",
		"GORELAY_DEMO_VERBOSE":  "perhaps",
	} {
		t.Run(key, func(t *testing.T) {
			l := Loader{lookup: envMap(map[string]string{key: raw})}
			var cfg demoConfig
			err := l.Load("demo", &cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_Overflow(t *testing.T) {
	l := Loader{Prefix: "APP", lookup: envMap(map[string]string{"APP_X_I8": "300"})}
	var cfg allKinds
	require.Error(t, l.Load("x", &cfg))
}

func TestLoad_RequiresStructPointer(t *testing.T) {
	var cfg demoConfig
	require.Error(t, Loader{}.Load("demo", cfg))
	n := 3
	require.Error(t, Loader{}.Load("demo", &n))
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("GORELAY_ENV_TEST_MAX_SIZE", "7")
	var cfg demoConfig
	require.NoError(t, Load("env-test", &cfg))
	require.Equal(t, 7, cfg.MaxSize)
}

func TestKeys(t *testing.T) {
	keys := Keys("demo", demoConfig{})
	require.Equal(t, []string{
		"GORELAY_DEMO_LOG",
		"GORELAY_DEMO_LOG_FILE_KEEP",
		"GORELAY_DEMO_MAX_SIZE",
		"GORELAY_DEMO_DELAY",
		"GORELAY_DEMO_VERBOSE",
		"GORELAY_DEMO_RATIO",
		"GORELAY_DEMO_POOL_WORKERS",
		"GORELAY_DEMO_POOL_BACKLOG",
	}, keys)

	require.Equal(t, keys, Keys("demo", &demoConfig{}))
	require.Nil(t, Keys("demo", 42))
}

func TestNormalizeStage(t *testing.T) {
	cases := map[string]string{
		"relay":       "RELAY",
		"relay-demo":  "RELAY_DEMO",
		"relay demo":  "RELAY_DEMO",
		"Relay_2":     "RELAY_2",
		"re.lay/demo": "RELAYDEMO",
	}
	for in, want := range cases {
		require.Equal(t, want, normalizeStage(in), in)
	}
}

func TestToUpperSnake(t *testing.T) {
	cases := map[string]string{
		"MaxSize":     "MAX_SIZE",
		"LogFileKeep": "LOG_FILE_KEEP",
		"HTTPAddr":    "HTTP_ADDR",
		"Log":         "LOG",
		"Stage2Delay": "STAGE2_DELAY",
		"ID":          "ID",
	}
	for in, want := range cases {
		require.Equal(t, want, toUpperSnake(in), in)
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadFile(t *testing.T) {
	p := writeFile(t, "max_size: 12\ndelay: 1s\ntags: [a, b]\npool:\n  workers: 3\n")
	cfg := demoConfig{Ratio: 0.25}
	require.NoError(t, LoadFile(p, &cfg))
	require.Equal(t, 12, cfg.MaxSize)
	require.Equal(t, time.Second, cfg.Delay)
	require.Equal(t, []string{"a", "b"}, cfg.Tags)
	require.Equal(t, 3, cfg.Pool.Workers)
	require.Equal(t, 0.25, cfg.Ratio)
}

func TestLoadFile_UnknownKey(t *testing.T) {
	p := writeFile(t, "max_sise: 12\n")
	var cfg demoConfig
	require.Error(t, LoadFile(p, &cfg))
}

func TestLoadFile_Missing(t *testing.T) {
	var cfg demoConfig
	err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), &cfg)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadAll_EnvWins(t *testing.T) {
	p := writeFile(t, "max_size: 12\nverbose: true\n")
	l := Loader{lookup: envMap(map[string]string{"GORELAY_DEMO_MAX_SIZE": "99"})}
	var cfg demoConfig
	require.NoError(t, l.LoadAll(p, "demo", &cfg))
	require.Equal(t, 99, cfg.MaxSize)
	require.True(t, cfg.Verbose)

	var empty demoConfig
	require.NoError(t, l.LoadAll("", "demo", &empty))
	require.Equal(t, 99, empty.MaxSize)
}
