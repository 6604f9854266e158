package remoteworker

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/stablegen/gateway/internal/config"
)

func TestPlaceholderWorkerRendersPNG(t *testing.T) {
	worker := NewPlaceholderWorker()
	params := testParams
	params.Width, params.Height = 256, 320

	result := worker.Generate(context.Background(), params)
	if !result.OK() {
		t.Fatalf("unexpected failure: %v", result.Failure)
	}

	img, err := png.Decode(bytes.NewReader(result.Image))
	if err != nil {
		t.Fatalf("output is not a png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 256 || b.Dy() != 320 {
		t.Errorf("bounds = %v, want 256x320", b)
	}
}

func TestPlaceholderWorkerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewPlaceholderWorker().Generate(ctx, testParams)
	if result.OK() || result.Failure.Kind != KindTimeout {
		t.Fatalf("expected worker_timeout, got %+v", result.Failure)
	}
}

func TestNewWorker(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.WorkerConfig
		wantErr bool
	}{
		{"placeholder", &config.WorkerConfig{Type: config.WorkerPlaceholder}, false},
		{"http", &config.WorkerConfig{Type: config.WorkerHTTP, URL: "http://gpu.internal/generate"}, false},
		{"http without url", &config.WorkerConfig{Type: config.WorkerHTTP}, true},
		{"tcp", &config.WorkerConfig{Type: config.WorkerTCP, Address: "127.0.0.1:9009"}, false},
		{"unknown", &config.WorkerConfig{Type: "grpc"}, true},
		{"nil", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWorker(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewWorker err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
