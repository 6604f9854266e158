package remoteworker

import (
	"bytes"
	"context"
	"hash/fnv"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/noise"
	"github.com/anthonynsimon/bild/transform"
)

// PlaceholderWorker renders a soft noise field on the CPU. It lets the
// gateway run end to end without a GPU; the prompt only picks the hue.
type PlaceholderWorker struct{}

func NewPlaceholderWorker() *PlaceholderWorker {
	return &PlaceholderWorker{}
}

func (w *PlaceholderWorker) Generate(ctx context.Context, params Params) Result {
	if err := ctx.Err(); err != nil {
		return Result{Failure: contextFailure(ctx, err)}
	}
	if params.Width <= 0 || params.Height <= 0 {
		return Fail(KindGeneration, "image dimensions must be positive", nil)
	}

	// sample coarse noise and upscale it so the result looks like blobs
	coarse := noise.Generate(max(params.Width/32, 1), max(params.Height/32, 1), &noise.Options{NoiseFn: noise.Uniform})
	img := transform.Resize(coarse, params.Width, params.Height, transform.Linear)
	img = blur.Gaussian(img, float64(max(params.NumInferenceSteps/10, 1)))
	img = adjust.Hue(img, promptHue(params.Prompt))

	var buf bytes.Buffer
	if err := imgio.PNGEncoder()(&buf, img); err != nil {
		return Fail(KindGeneration, "failed to encode placeholder image", err)
	}

	return Success(buf.Bytes())
}

func (w *PlaceholderWorker) Ping(ctx context.Context) error {
	return nil
}

func promptHue(prompt string) int {
	h := fnv.New32a()
	h.Write([]byte(prompt))
	return int(h.Sum32()%360) - 180
}
