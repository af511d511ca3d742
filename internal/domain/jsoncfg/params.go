// Package jsoncfg parses the JSON configuration file that carries the
// account list and the generation parameter tables (models, ratios,
// resolution tiers, poll tuning).
package jsoncfg

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ModelConfig maps a user-facing model key to the vendor request key.
type ModelConfig struct {
	Name        string `json:"name"`
	ModelReqKey string `json:"model_req_key"`
	Description string `json:"description,omitempty"`
	CostPerT2I  int    `json:"cost_per_t2i,omitempty"`
	CostPerI2I  int    `json:"cost_per_i2i,omitempty"`
}

// RatioConfig is one aspect-ratio entry: the vendor enum plus the pixel
// dimensions for the active resolution tier.
type RatioConfig struct {
	RatioType int `json:"ratio_type"`
	Width     int `json:"width"`
	Height    int `json:"height"`
}

// AccountConfig is one persisted account record.
type AccountConfig struct {
	SessionID   string `json:"sessionid"`
	Description string `json:"description"`
}

// TimeoutConfig tunes the polling loop.
type TimeoutConfig struct {
	MaxWaitSeconds       int `json:"max_wait_time"`
	CheckIntervalSeconds int `json:"check_interval"`
}

// Params holds the generation parameter tables.
type Params struct {
	DefaultModel   string                 `json:"default_model"`
	ResolutionType string                 `json:"resolution_type"`
	Models         map[string]ModelConfig `json:"models"`
	Ratios         map[string]RatioConfig `json:"ratios"`
}

// File is the root of the JSON configuration document.
type File struct {
	Accounts []AccountConfig `json:"accounts"`
	Params   Params          `json:"params"`
	Timeout  TimeoutConfig   `json:"timeout"`
}

const (
	// DefaultResolutionType is used when the config omits the tier.
	DefaultResolutionType = "2k"
	// DefaultModelKey is the model used when a request omits one.
	DefaultModelKey = "3.0"
	// DefaultRatio is used when a request omits the aspect ratio.
	DefaultRatio = "1:1"
	// DefaultMaxWait and DefaultCheckInterval tune the poll loop when the
	// config omits them.
	DefaultMaxWait       = 120 * time.Second
	DefaultCheckInterval = 10 * time.Second
)

// fallbackRatioTypes is used when the configured ratio table lacks an
// entry. Values observed from the browser protocol.
var fallbackRatioTypes = map[string]int{
	"1:1":  1,
	"3:4":  2,
	"16:9": 3,
	"4:3":  4,
	"9:16": 5,
	"2:3":  6,
	"3:2":  7,
}

// defaultModels mirrors the vendor's published model lineup.
var defaultModels = map[string]ModelConfig{
	"4.0":  {Name: "Image 4.0", ModelReqKey: "high_aes_general_v40"},
	"3.1":  {Name: "Image 3.1", ModelReqKey: "high_aes_general_v30l_art:general_v3.0_18b"},
	"3.0":  {Name: "Image 3.0", ModelReqKey: "high_aes_general_v30l:general_v3.0_18b"},
	"2.1":  {Name: "Image 2.1", ModelReqKey: "high_aes_general_v21_L:general_v2.1_L"},
	"2.0p": {Name: "Image 2.0 Pro", ModelReqKey: "high_aes_general_v20_L:general_v2.0_L"},
	"1.4":  {Name: "Image 1.4", ModelReqKey: "high_aes_general_v14:general_v1.4"},
}

// tierDimensions carries the width/height tables for the three resolution
// tiers, keyed by tier then ratio.
var tierDimensions = map[string]map[string][2]int{
	"1k": {
		"1:1":  {1328, 1328},
		"2:3":  {1056, 1584},
		"3:4":  {1104, 1472},
		"4:3":  {1472, 1104},
		"3:2":  {1584, 1056},
		"16:9": {1664, 936},
		"9:16": {936, 1664},
	},
	"2k": {
		"1:1":  {2048, 2048},
		"2:3":  {1664, 2496},
		"3:4":  {1728, 2304},
		"4:3":  {2304, 1728},
		"3:2":  {2496, 1664},
		"16:9": {2560, 1440},
		"9:16": {1440, 2560},
	},
	"4k": {
		"1:1":  {4096, 4096},
		"2:3":  {3328, 4992},
		"3:4":  {3520, 4693},
		"4:3":  {4693, 3520},
		"3:2":  {4992, 3328},
		"16:9": {5404, 3040},
		"9:16": {3040, 5404},
	},
}

// Load reads and normalizes the configuration file at path.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jsoncfg: read %s: %w", path, err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("jsoncfg: parse %s: %w", path, err)
	}
	f.Normalize()
	return &f, nil
}

// Normalize fills defaults for everything the document omits.
func (f *File) Normalize() {
	f.Params.Normalize()
	if f.Timeout.MaxWaitSeconds <= 0 {
		f.Timeout.MaxWaitSeconds = int(DefaultMaxWait / time.Second)
	}
	if f.Timeout.CheckIntervalSeconds <= 0 {
		f.Timeout.CheckIntervalSeconds = int(DefaultCheckInterval / time.Second)
	}
}

// Normalize applies the built-in model table and tier default when absent.
func (p *Params) Normalize() {
	if p.ResolutionType == "" {
		p.ResolutionType = DefaultResolutionType
	}
	if p.DefaultModel == "" {
		p.DefaultModel = DefaultModelKey
	}
	if len(p.Models) == 0 {
		p.Models = defaultModels
	}
}

// MaxWait returns the configured poll ceiling.
func (t TimeoutConfig) MaxWait() time.Duration {
	return time.Duration(t.MaxWaitSeconds) * time.Second
}

// CheckInterval returns the configured poll interval.
func (t TimeoutConfig) CheckInterval() time.Duration {
	return time.Duration(t.CheckIntervalSeconds) * time.Second
}

// Model resolves a model key to its configuration.
func (p *Params) Model(key string) (ModelConfig, bool) {
	m, ok := p.Models[key]
	return m, ok
}

// RatioType resolves a ratio key to the vendor enum. The configured table
// wins; absent entries fall back to the fixed protocol table, then to 1.
func (p *Params) RatioType(ratio string) int {
	if cfg, ok := p.Ratios[ratio]; ok && cfg.RatioType != 0 {
		return cfg.RatioType
	}
	if v, ok := fallbackRatioTypes[ratio]; ok {
		return v
	}
	return 1
}

// Dimensions resolves a ratio key to pixel dimensions for the active
// resolution tier. Configured entries win; the built-in tier tables cover
// the rest, and unknown ratios get the square default.
func (p *Params) Dimensions(ratio string) (width, height int) {
	if cfg, ok := p.Ratios[ratio]; ok && cfg.Width > 0 && cfg.Height > 0 {
		return cfg.Width, cfg.Height
	}
	if tier, ok := tierDimensions[p.ResolutionType]; ok {
		if d, ok := tier[ratio]; ok {
			return d[0], d[1]
		}
	}
	return 1024, 1024
}
