package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Generation struct {
	bun.BaseModel `bun:"table:generations"`

	ID                string    `bun:",pk" json:"id"`
	Prompt            string    `bun:",notnull" json:"prompt"`
	NegativePrompt    string    `bun:",notnull,default:''" json:"negative_prompt,omitempty"`
	Width             int       `bun:",notnull" json:"width"`
	Height            int       `bun:",notnull" json:"height"`
	NumInferenceSteps int       `bun:",notnull" json:"num_inference_steps"`
	GuidanceScale     float64   `bun:",notnull" json:"guidance_scale"`
	Status            string    `bun:",notnull" json:"status"`
	ErrorKind         string    `bun:",nullzero" json:"error_kind,omitempty"`
	Error             string    `bun:",nullzero" json:"error,omitempty"`
	ElapsedMs         int64     `bun:",notnull" json:"elapsed_ms"`
	CreatedAt         time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
}
