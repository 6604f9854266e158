package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stablegen/gateway/internal/services/generation"
)

type generateQuery struct {
	Prompt            string  `form:"prompt"`
	NegativePrompt    string  `form:"negative_prompt"`
	Width             int     `form:"width,default=1024"`
	Height            int     `form:"height,default=1024"`
	NumInferenceSteps int     `form:"num_inference_steps,default=30"`
	GuidanceScale     float64 `form:"guidance_scale,default=8.0"`
}

type GenerateResponse struct {
	ImageURL    string `json:"image_url"`
	Base64Image string `json:"base64_image"`
	Status      string `json:"status"`
}

// Generate handles POST /generate. Parameters arrive as query values, the
// way the bundled web form submits them.
func (h *Handler) Generate(c *gin.Context) {
	var query generateQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		detail(c, http.StatusBadRequest, "invalid query parameters: "+err.Error())
		return
	}

	resp, err := h.generator.Generate(c.Request.Context(), generation.Request{
		Prompt:            query.Prompt,
		NegativePrompt:    query.NegativePrompt,
		Width:             query.Width,
		Height:            query.Height,
		NumInferenceSteps: query.NumInferenceSteps,
		GuidanceScale:     query.GuidanceScale,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenerateResponse{
		ImageURL:    resp.ImageURL,
		Base64Image: resp.Base64Image,
		Status:      generation.StatusSuccess,
	})
}
