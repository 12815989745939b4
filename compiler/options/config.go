package options

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the layered option configuration of a build, as read from a
// TOML or YAML file.
//
//	cache_backend = "sqlite"
//	workers = 4
//
//	[features]
//	separate-inlines = true
//
//	[defaults.field]
//	deprecated = false
//
//	[packages."acme.shop"]
//	namespace = "acme::shop"
//	"Order.items.datatype" = "cow_string"
//
//	[services."acme.shop.Checkout"]
//	class_name = "CheckoutService"
//	"Place.class_name" = "PlaceCommand"
//
//	[extensions]
//	"field.wire_tag" = 50001
//
// Package and service names must be quoted in table headers. Dotted keys
// inside a table may be quoted or not; nested tables are flattened.
type Config struct {
	// CacheBackend selects the modification-time snapshot store: "file"
	// (default) or "sqlite".
	CacheBackend string `toml:"cache_backend" yaml:"cache_backend"`
	// Workers bounds the number of artifacts rendered concurrently.
	Workers int `toml:"workers" yaml:"workers"`
	// StopOnError cancels the run on the first failing artifact.
	StopOnError bool `toml:"stop_on_error" yaml:"stop_on_error"`
	// Features toggles generator features by name.
	Features map[string]bool `toml:"features" yaml:"features"`

	// Defaults holds the global layer keyed by element kind.
	Defaults map[string]map[string]any `toml:"defaults" yaml:"defaults"`
	// Packages holds per-package overrides keyed by package name, then by
	// dotted element path plus option name.
	Packages map[string]map[string]any `toml:"packages" yaml:"packages"`
	// Services holds per-service overrides keyed by qualified service name.
	Services map[string]map[string]any `toml:"services" yaml:"services"`
	// Extensions declares custom options as "kind.name" = id.
	Extensions map[string]int `toml:"extensions" yaml:"extensions"`
}

// Load reads the configuration file at path. The format is chosen by
// extension: ".yaml" and ".yml" are YAML, everything else is TOML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("options: read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	default:
		return DecodeTOML(data)
	}
}

// DecodeTOML decodes a TOML configuration. Unknown top-level keys are
// rejected.
func DecodeTOML(data []byte) (*Config, error) {
	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("options: parse toml config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("options: unknown config keys: %s", strings.Join(keys, ", "))
	}
	return &cfg, nil
}

// DecodeYAML decodes a YAML configuration. Unknown top-level keys are
// rejected.
func DecodeYAML(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("options: parse yaml config: %w", err)
	}
	return &cfg, nil
}

// layer is one flattened configuration table: dotted key to value.
type layer map[string]string

// flatten turns a decoded table into a layer. Nested tables join their keys
// with dots and values are normalized to their string form.
func flatten(table map[string]any) (layer, error) {
	out := make(layer, len(table))
	if err := flattenInto(out, "", table); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(out layer, prefix string, table map[string]any) error {
	for k, v := range table {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			if err := flattenInto(out, key, sub); err != nil {
				return err
			}
			continue
		}
		s, err := valueString(v)
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		out[key] = s
	}
	return nil
}

// valueString returns the option-string form of a decoded config value.
// Lists are joined with commas.
func valueString(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			s, err := valueString(item)
			if err != nil {
				return "", err
			}
			if strings.Contains(s, ",") {
				return "", fmt.Errorf("list item %q contains a comma", s)
			}
			items = append(items, s)
		}
		return strings.Join(items, ","), nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
