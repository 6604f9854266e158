package remoteworker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var testParams = Params{
	Prompt:            "a lighthouse at dusk",
	Width:             512,
	Height:            512,
	NumInferenceSteps: 30,
	GuidanceScale:     8.0,
}

func TestHTTPWorkerGenerate(t *testing.T) {
	stub := bytes.Repeat([]byte{0x42}, 100)

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind Kind
		wantImg  []byte
	}{
		{
			name: "raw image body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/png")
				w.Write(stub)
			},
			wantImg: stub,
		},
		{
			name: "json base64 body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{"base64_image": base64.StdEncoding.EncodeToString(stub)})
			},
			wantImg: stub,
		},
		{
			name: "json error body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{"error": "CUDA out of memory"})
			},
			wantKind: KindGeneration,
		},
		{
			name: "service unavailable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantKind: KindUnavailable,
		},
		{
			name: "gateway timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusGatewayTimeout)
			},
			wantKind: KindTimeout,
		},
		{
			name: "pipeline fault",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "pipeline exploded", http.StatusInternalServerError)
			},
			wantKind: KindGeneration,
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/png")
			},
			wantKind: KindGeneration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			worker, err := NewHTTPWorker(server.URL)
			if err != nil {
				t.Fatal(err)
			}

			result := worker.Generate(context.Background(), testParams)
			if tt.wantKind != "" {
				if result.OK() {
					t.Fatalf("expected failure %s, got %d image bytes", tt.wantKind, len(result.Image))
				}
				if result.Failure.Kind != tt.wantKind {
					t.Errorf("kind = %s, want %s (%v)", result.Failure.Kind, tt.wantKind, result.Failure)
				}
				return
			}

			if !result.OK() {
				t.Fatalf("unexpected failure: %v", result.Failure)
			}
			if !bytes.Equal(result.Image, tt.wantImg) {
				t.Errorf("image mismatch: got %d bytes", len(result.Image))
			}
		})
	}
}

func TestHTTPWorkerSendsParamsAndToken(t *testing.T) {
	var (
		gotAuth   string
		gotParams Params
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotParams)
		w.Write([]byte("img"))
	}))
	defer server.Close()

	worker, _ := NewHTTPWorker(server.URL, WithToken("secret-token"))
	if result := worker.Generate(context.Background(), testParams); !result.OK() {
		t.Fatalf("unexpected failure: %v", result.Failure)
	}

	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotParams != testParams {
		t.Errorf("params = %+v, want %+v", gotParams, testParams)
	}
}

func TestHTTPWorkerDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	worker, _ := NewHTTPWorker(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result := worker.Generate(ctx, testParams)
	if result.OK() || result.Failure.Kind != KindTimeout {
		t.Fatalf("expected worker_timeout, got %+v", result.Failure)
	}
	if !errors.Is(result.Failure, context.DeadlineExceeded) {
		t.Errorf("failure should wrap DeadlineExceeded: %v", result.Failure)
	}
}

func TestHTTPWorkerUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	worker, _ := NewHTTPWorker(url)
	result := worker.Generate(context.Background(), testParams)
	if result.OK() || result.Failure.Kind != KindUnavailable {
		t.Fatalf("expected worker_unavailable, got %+v", result.Failure)
	}

	if err := worker.Ping(context.Background()); err == nil {
		t.Error("Ping should fail for a closed server")
	}
}

func TestHTTPWorkerPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer server.Close()

	good, _ := NewHTTPWorker(server.URL, WithToken("good"))
	if err := good.Ping(context.Background()); err != nil {
		t.Errorf("Ping with valid token: %v", err)
	}

	bad, _ := NewHTTPWorker(server.URL, WithToken("bad"))
	if err := bad.Ping(context.Background()); err == nil {
		t.Error("Ping with invalid token should fail")
	}
}
