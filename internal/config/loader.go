package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PROMPTSLOT_"

// envPaths maps environment variable names, without the prefix, to setting
// paths.
var envPaths = map[string]string{
	"INSTANCE_ID":          "instance_id",
	"KINDS":                "kinds",
	"BLUR_ESCAPE_DELAY":    "blur_escape_delay",
	"READ_ONLY":            "read_only",
	"LOG_LEVEL":            "log.level",
	"LOG_MODE":             "log.mode",
	"METRICS_ENABLED":      "metrics.enabled",
	"BROADCAST_DRIVER":     "broadcast.driver",
	"BROADCAST_REDIS_ADDR": "broadcast.redis_addr",
	"BROADCAST_CHANNEL":    "broadcast.channel",
	"SERVER_ADDR":          "server.addr",
	"SERVER_READ_TIMEOUT":  "server.read_timeout",
	"SERVER_WRITE_TIMEOUT": "server.write_timeout",
}

// FileSystem reads configuration files. fstest.MapFS satisfies it.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Loader reads, merges and decodes configuration.
type Loader struct {
	fs      FileSystem
	prefix  string
	environ func() []string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFS sets the file system files are read from.
func WithFS(fsys FileSystem) LoaderOption {
	return func(l *Loader) { l.fs = fsys }
}

// WithEnviron sets the environment source, os.Environ by default.
func WithEnviron(fn func() []string) LoaderOption {
	return func(l *Loader) { l.environ = fn }
}

// WithEnvPrefix replaces EnvPrefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) { l.prefix = prefix }
}

// NewLoader creates a loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		fs:      OSFS{},
		prefix:  EnvPrefix,
		environ: os.Environ,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the configuration with the default loader.
func Load(path string) (*Config, error) {
	return NewLoader().Load(path)
}

// Load merges the file at path over the defaults, overlays environment
// variables, decodes and validates the result. An empty path skips the
// file.
func (l *Loader) Load(path string) (*Config, error) {
	m, err := l.LoadMap(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Decode(path, m)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadMap returns the merged settings map without decoding it.
func (l *Loader) LoadMap(path string) (map[string]any, error) {
	merged := defaultMap()
	if path != "" {
		data, err := l.fs.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%s: %w", path, ErrFileNotFound)
			}
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		file, err := Parse(path, data)
		if err != nil {
			return nil, err
		}
		merged = DeepMerge(merged, file)
	}
	return DeepMerge(merged, l.envMap()), nil
}

// envMap returns the settings named by prefixed environment variables.
func (l *Loader) envMap() map[string]any {
	out := make(map[string]any)
	for _, kv := range l.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		path, known := envPaths[strings.TrimPrefix(name, l.prefix)]
		if !known {
			continue
		}
		SetByPath(out, path, value)
	}
	return out
}

// Parse parses file data by extension: .toml, or .yaml, .yml and .json.
func Parse(path string, data []byte) (map[string]any, error) {
	var m map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &m); err != nil {
			pe := &ParseError{Path: path, Message: err.Error(), Err: err}
			var de *toml.DecodeError
			if errors.As(err, &de) {
				pe.Line, pe.Column = de.Position()
			}
			return nil, pe
		}
	case ".yaml", ".yml", ".json":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, &ParseError{Path: path, Message: err.Error(), Err: err}
		}
	default:
		return nil, fmt.Errorf("%s: %w %q", path, ErrUnsupportedFormat, ext)
	}
	if m == nil {
		m = make(map[string]any)
	}
	return m, nil
}

// Decode converts a settings map into a Config. Unknown keys are errors.
func Decode(source string, m map[string]any) (*Config, error) {
	cfg := &Config{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			kindsHook,
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m); err != nil {
		if source == "" {
			source = "<settings>"
		}
		return nil, &ParseError{Path: source, Message: err.Error(), Err: err}
	}
	return cfg, nil
}

var kindSetType = reflect.TypeOf(map[string]bool{})

// kindsHook accepts a comma separated string or a list wherever a kind set
// is expected.
func kindsHook(from, to reflect.Type, data any) (any, error) {
	if to != kindSetType {
		return data, nil
	}
	set := make(map[string]bool)
	switch v := data.(type) {
	case string:
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				set[k] = true
			}
		}
	case []any:
		for _, item := range v {
			set[fmt.Sprint(item)] = true
		}
	default:
		return data, nil
	}
	return set, nil
}

// DeepMerge recursively merges src into dst.
// Values in src override values in dst.
// Maps are merged recursively; other types are replaced.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	for key, srcVal := range src {
		srcMap, srcIsMap := srcVal.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = DeepMerge(dstMap, srcMap)
			continue
		}
		dst[key] = srcVal
	}
	return dst
}

// SetByPath sets a value in a nested map using a dot-separated path.
// Creates intermediate maps as needed.
func SetByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
