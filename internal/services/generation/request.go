package generation

import (
	"fmt"
	"strings"

	"github.com/stablegen/gateway/internal/services/remoteworker"
)

const (
	DefaultWidth             = 1024
	DefaultHeight            = 1024
	DefaultNumInferenceSteps = 30
	DefaultGuidanceScale     = 8.0

	MinDimension  = 256
	MaxDimension  = 1024
	DimensionStep = 64

	MinInferenceSteps = 10
	MaxInferenceSteps = 150

	MinGuidanceScale = 1.0
	MaxGuidanceScale = 20.0
)

// Request is a single text-to-image generation request.
type Request struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
}

// NewRequest returns a request for prompt with every other field at its
// default value.
func NewRequest(prompt string) Request {
	return Request{
		Prompt:            prompt,
		Width:             DefaultWidth,
		Height:            DefaultHeight,
		NumInferenceSteps: DefaultNumInferenceSteps,
		GuidanceScale:     DefaultGuidanceScale,
	}
}

// Validate rejects out-of-range values. Nothing is clamped.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return invalidParameter("prompt", "prompt must not be empty")
	}
	if err := validateDimension("width", r.Width); err != nil {
		return err
	}
	if err := validateDimension("height", r.Height); err != nil {
		return err
	}
	if r.NumInferenceSteps < MinInferenceSteps || r.NumInferenceSteps > MaxInferenceSteps {
		return invalidParameter("num_inference_steps",
			fmt.Sprintf("num_inference_steps must be between %d and %d, got %d", MinInferenceSteps, MaxInferenceSteps, r.NumInferenceSteps))
	}
	// NaN fails both comparisons, so test for the valid range instead
	if !(r.GuidanceScale >= MinGuidanceScale && r.GuidanceScale <= MaxGuidanceScale) {
		return invalidParameter("guidance_scale",
			fmt.Sprintf("guidance_scale must be between %.1f and %.1f, got %g", MinGuidanceScale, MaxGuidanceScale, r.GuidanceScale))
	}

	return nil
}

func (r Request) params() remoteworker.Params {
	return remoteworker.Params{
		Prompt:            r.Prompt,
		NegativePrompt:    r.NegativePrompt,
		Width:             r.Width,
		Height:            r.Height,
		NumInferenceSteps: r.NumInferenceSteps,
		GuidanceScale:     r.GuidanceScale,
	}
}

func validateDimension(field string, value int) error {
	if value < MinDimension || value > MaxDimension || value%DimensionStep != 0 {
		return invalidParameter(field,
			fmt.Sprintf("%s must be a multiple of %d between %d and %d, got %d", field, DimensionStep, MinDimension, MaxDimension, value))
	}
	return nil
}
