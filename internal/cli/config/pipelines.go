package config

import (
	"fmt"
	"sort"
	"strings"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/claimjoin/internal/pipeline"
	"gopkg.in/yaml.v3"
)

// PipelineNames returns every preset and configured pipeline name, sorted.
func (c *Config) PipelineNames() []string {
	seen := make(map[string]bool)
	for _, name := range pipeline.PresetNames() {
		seen[name] = true
	}
	for name := range c.Pipelines {
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolvePipeline returns the pipeline named name, or the default pipeline
// when name is empty. Configured keys override the preset they name or extend;
// lists replace rather than append.
func (c *Config) ResolvePipeline(name string) (pipeline.Config, error) {
	if name == "" {
		name = c.Pipeline
	}
	if name == "" {
		name = pipeline.DefaultPreset
	}

	override, configured := c.Pipelines[name]
	baseName := name
	if ext, ok := override[extendsKey].(string); ok && ext != "" {
		baseName = ext
	}
	base, isPreset := pipeline.Preset(baseName)
	if !isPreset && baseName != name {
		return pipeline.Config{}, fmt.Errorf("pipeline %s extends unknown preset %q (available: %s)",
			name, baseName, strings.Join(pipeline.PresetNames(), ", "))
	}
	if !isPreset && !configured {
		return pipeline.Config{}, fmt.Errorf("unknown pipeline %q (available: %s)", name, strings.Join(c.PipelineNames(), ", "))
	}

	pk := koanf.New(".")
	if isPreset {
		b, err := yaml.Marshal(base)
		if err != nil {
			return pipeline.Config{}, fmt.Errorf("failed to encode preset %s: %w", baseName, err)
		}
		m, err := kyaml.Parser().Unmarshal(b)
		if err != nil {
			return pipeline.Config{}, fmt.Errorf("failed to decode preset %s: %w", baseName, err)
		}
		if err := pk.Load(confmap.Provider(m, "."), nil); err != nil {
			return pipeline.Config{}, fmt.Errorf("failed to load preset %s: %w", baseName, err)
		}
	}
	if configured {
		layer := make(map[string]any, len(override))
		for key, v := range override {
			if key != extendsKey {
				layer[key] = v
			}
		}
		if err := pk.Load(confmap.Provider(layer, "."), nil); err != nil {
			return pipeline.Config{}, fmt.Errorf("failed to load pipeline %s: %w", name, err)
		}
	}

	var out pipeline.Config
	if err := pk.Unmarshal("", &out); err != nil {
		return pipeline.Config{}, fmt.Errorf("unable to decode pipeline %s: %w", name, err)
	}
	out.Name = name
	return out, nil
}
