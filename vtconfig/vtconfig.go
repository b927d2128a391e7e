// Package vtconfig loads and merges the matching engine's runtime
// configuration (a defaults layer, an optional file layer, and runtime
// overrides from the embedding host) and resolves the storage directory
// layout the engine reads and writes.
package vtconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the merged, typed configuration the engine runs with.
type Config struct {
	AsrWeight           float64  `json:"asr_weight" yaml:"asr_weight"`
	HeavyPathTimeoutMs  int      `json:"heavy_path_timeout_ms" yaml:"heavy_path_timeout_ms"`
	PendingDrainTimeout int      `json:"pending_drain_timeout_ms" yaml:"pending_drain_timeout_ms"`
	PendingBufferCap    int      `json:"pending_buffer_capacity" yaml:"pending_buffer_capacity"`
	DebounceMs          int      `json:"debounce_ms" yaml:"debounce_ms"`
	FuzzyThreshold      float64  `json:"fuzzy_threshold" yaml:"fuzzy_threshold"`
	FuzzyShortlist      int      `json:"fuzzy_shortlist" yaml:"fuzzy_shortlist"`
	PhonemeCacheSize    int      `json:"phoneme_cache_size" yaml:"phoneme_cache_size"`
	UsageWindowSessions int      `json:"usage_window_sessions" yaml:"usage_window_sessions"`
	FilterPhrases       []string `json:"filter_phrases" yaml:"filter_phrases"`
}

// Defaults returns the engine's built-in defaults (the first layer merged
// by LoadLayered).
func Defaults() Config {
	return Config{
		AsrWeight:           0.4,
		HeavyPathTimeoutMs:  300,
		PendingDrainTimeout: 250,
		PendingBufferCap:    16,
		DebounceMs:          1000,
		FuzzyThreshold:      0.40,
		FuzzyShortlist:      50,
		PhonemeCacheSize:    2000,
		UsageWindowSessions: 10,
		FilterPhrases: []string{
			"stop", "pauze", "volgende", "annuleren", "ja", "nee",
		},
	}
}

// LoadLayered merges Defaults(), the contents of filePath (if it exists;
// .yaml/.yml/.json supported), and any runtime overrides, in that order.
// A missing file is not an error — the defaults (possibly already
// overridden by an earlier layer) simply carry through.
func LoadLayered(filePath string, overrides ...map[string]any) (Config, error) {
	merged := toMap(Defaults())

	if filePath != "" {
		layer, err := loadConfigFile(filePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("vtconfig: load %s: %w", filePath, err)
			}
		} else {
			merged = mergeMaps(merged, layer)
		}
	}

	for _, override := range overrides {
		merged = mergeMaps(merged, deepCopyMap(override))
	}

	return fromMap(merged)
}

func loadConfigFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return map[string]any{}, nil
	}

	var content any
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &content); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &content); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
	return normalizeToStringMap(content)
}

func toMap(c Config) map[string]any {
	data, _ := json.Marshal(c)
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	return m
}

func fromMap(m map[string]any) (Config, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return Config{}, fmt.Errorf("vtconfig: encode merged config: %w", err)
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("vtconfig: decode merged config: %w", err)
	}
	return c, nil
}

func mergeMaps(base, overlay map[string]any) map[string]any {
	if base == nil {
		base = make(map[string]any)
	}
	for key, value := range overlay {
		if value == nil {
			delete(base, key)
			continue
		}
		switch ov := value.(type) {
		case map[string]any:
			if existing, ok := base[key].(map[string]any); ok {
				base[key] = mergeMaps(existing, ov)
			} else {
				base[key] = deepCopyMap(ov)
			}
		default:
			base[key] = ov
		}
	}
	return base
}

func normalizeToStringMap(value any) (map[string]any, error) {
	switch v := value.(type) {
	case map[string]any:
		return v, nil
	case map[any]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			strKey, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("non-string config key %v", key)
			}
			result[strKey] = val
		}
		return result, nil
	default:
		return nil, fmt.Errorf("config file must contain an object at top level")
	}
}

func deepCopyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		if nested, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
