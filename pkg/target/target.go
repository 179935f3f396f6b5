// Package target describes a code-generation target: its architecture
// (name, vendor, catalogued features) and a selected configuration of
// resources, memory parameters and optimization hints (§4.9). It is
// loaded from YAML the way the teacher corpus's cmd/ralph-cc flags
// load build configuration, using gopkg.in/yaml.v3 the way the rest
// of the ecosystem pack does (wippyai-wasm-runtime's config loading).
package target

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MemoryOrder names a supported memory-ordering model.
type MemoryOrder string

const (
	OrderStrong        MemoryOrder = "strong"
	OrderAcquireRelease MemoryOrder = "acquire-release"
	OrderRelaxed        MemoryOrder = "relaxed"
)

// Feature is one catalogued architecture feature.
type Feature struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Architecture is an immutable descriptor of an instruction set.
type Architecture struct {
	Name     string    `yaml:"name"`
	Vendor   string    `yaml:"vendor"`
	Features []Feature `yaml:"features"`
}

// HasFeature reports whether the architecture catalogues a feature
// named name, regardless of whether a given Config enables it.
func (a Architecture) HasFeature(name string) bool {
	for _, f := range a.Features {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Resources describes the register and memory-model resources a
// target configuration makes available (§4.9).
type Resources struct {
	GPRCount        int           `yaml:"gpr_count"`
	VectorWidthBits int           `yaml:"vector_width_bits"`
	MinAlignment    int           `yaml:"min_alignment"`
	MemoryOrders    []MemoryOrder `yaml:"memory_orders"`
}

// Memory describes the target's physical memory parameters.
type Memory struct {
	PreferredAlignment int `yaml:"preferred_alignment"`
	PageSize           int `yaml:"page_size"`
	CacheLineSize      int `yaml:"cache_line_size"`
}

// OptimizationHints tunes optimizer heuristics for a target.
type OptimizationHints struct {
	VectorUseThreshold int  `yaml:"vector_use_threshold"`
	LoopUnrollFactor   int  `yaml:"loop_unroll_factor"`
	UseFusedMultiplyAdd bool `yaml:"use_fma"`
}

// Config pairs an Architecture with a selected feature subset and the
// resource/memory/optimization parameters of §4.9.
type Config struct {
	Architecture      Architecture      `yaml:"architecture"`
	EnabledFeatures   []string          `yaml:"enabled_features"`
	Resources         Resources         `yaml:"resources"`
	Memory            Memory            `yaml:"memory"`
	OptimizationHints OptimizationHints `yaml:"optimization_hints"`

	enabled map[string]bool
}

func (c *Config) index() {
	if c.enabled != nil {
		return
	}
	c.enabled = make(map[string]bool, len(c.EnabledFeatures))
	for _, f := range c.EnabledFeatures {
		c.enabled[f] = true
	}
}

// Satisfies reports whether every feature in required is in the
// configuration's enabled set (§4.9).
func (c *Config) Satisfies(required []string) bool {
	c.index()
	for _, f := range required {
		if !c.enabled[f] {
			return false
		}
	}
	return true
}

// HasMemoryOrder reports whether order is among the configuration's
// supported memory-ordering models.
func (c *Config) HasMemoryOrder(order MemoryOrder) bool {
	for _, o := range c.Resources.MemoryOrders {
		if o == order {
			return true
		}
	}
	return false
}

// DefaultX86_64 returns the baked-in default x86-64 target (§4.9): 16
// GPRs, 128-bit vectors, a strong memory model, SSE/SSE2 enabled,
// 64-byte cache lines, 4 KiB pages.
func DefaultX86_64() *Config {
	return &Config{
		Architecture: Architecture{
			Name:   "x86-64",
			Vendor: "generic",
			Features: []Feature{
				{Name: "sse", Description: "Streaming SIMD Extensions"},
				{Name: "sse2", Description: "Streaming SIMD Extensions 2"},
				{Name: "avx", Description: "Advanced Vector Extensions"},
				{Name: "avx2", Description: "Advanced Vector Extensions 2"},
				{Name: "bmi2", Description: "Bit Manipulation Instruction Set 2"},
				{Name: "fma", Description: "Fused Multiply-Add"},
			},
		},
		EnabledFeatures: []string{"sse", "sse2"},
		Resources: Resources{
			GPRCount:        16,
			VectorWidthBits: 128,
			MinAlignment:    1,
			MemoryOrders:    []MemoryOrder{OrderStrong, OrderAcquireRelease, OrderRelaxed},
		},
		Memory: Memory{
			PreferredAlignment: 16,
			PageSize:           4096,
			CacheLineSize:      64,
		},
		OptimizationHints: OptimizationHints{
			VectorUseThreshold:  4,
			LoopUnrollFactor:    1,
			UseFusedMultiplyAdd: false,
		},
	}
}

// Load reads a target configuration from a YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("target: reading %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("target: parsing %s: %w", path, err)
	}
	c.index()
	return &c, nil
}

// Marshal renders c back to YAML, used by tests that round-trip a
// Config through the filesystem.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
