package domain

// GenerationMode selects between prompt-only generation and reference-image
// blending.
type GenerationMode string

const (
	ModeText2Image  GenerationMode = "text2image"
	ModeImage2Image GenerationMode = "image2image"
)

const (
	// SeedAuto asks the client to pick a random seed.
	SeedAuto int64 = -1
	// MinSeed and MaxSeed bound the seed range the vendor accepts.
	MinSeed int64 = 1
	MaxSeed int64 = 999_999_999
	// MaxReferenceImages caps the reference set for blend mode.
	MaxReferenceImages = 6
)

// GenerationRequest captures one generation job before submission. Immutable
// once constructed.
type GenerationRequest struct {
	Mode            GenerationMode
	Prompt          string
	Model           string
	Ratio           string
	Seed            int64
	ReferenceImages [][]byte
}

// NormalizeSeed maps SeedAuto to a random seed drawn from pick and clamps
// explicit seeds into [MinSeed, MaxSeed]. pick must return a value already
// in range.
func NormalizeSeed(seed int64, pick func() int64) int64 {
	if seed == SeedAuto {
		return pick()
	}
	if seed < MinSeed {
		return MinSeed
	}
	if seed > MaxSeed {
		return MaxSeed
	}
	return seed
}
