package remoteworker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// HTTPWorker invokes a hosted GPU web endpoint with a JSON body. The endpoint
// answers either with raw image bytes or with {"base64_image": "..."}.
type HTTPWorker struct {
	url    string
	token  string
	client *http.Client
	logger *zap.Logger
}

type HTTPWorkerOption func(*HTTPWorker)

func WithToken(token string) HTTPWorkerOption {
	return func(w *HTTPWorker) {
		w.token = token
	}
}

func WithHTTPClient(client *http.Client) HTTPWorkerOption {
	return func(w *HTTPWorker) {
		w.client = client
	}
}

func WithHTTPLogger(logger *zap.Logger) HTTPWorkerOption {
	return func(w *HTTPWorker) {
		w.logger = logger
	}
}

type httpWorkerResponse struct {
	Base64Image string `json:"base64_image"`
	Error       string `json:"error"`
	Detail      string `json:"detail"`
}

func NewHTTPWorker(url string, opts ...HTTPWorkerOption) (*HTTPWorker, error) {
	if url == "" {
		return nil, fmt.Errorf("worker url is not set")
	}

	w := &HTTPWorker{
		url:    url,
		client: &http.Client{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

func (w *HTTPWorker) Generate(ctx context.Context, params Params) Result {
	body, err := json.Marshal(params)
	if err != nil {
		return Fail(KindGeneration, "failed to encode worker request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return Fail(KindUnavailable, "failed to build worker request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png, application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		if f := contextFailure(ctx, err); f != nil {
			return Result{Failure: f}
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return Fail(KindTimeout, "worker did not answer before the deadline", err)
		}
		return Fail(KindUnavailable, "worker is unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		if f := contextFailure(ctx, err); f != nil {
			return Result{Failure: f}
		}
		return Fail(KindUnavailable, "failed to read worker response", err)
	}
	if len(data) > MaxImageSize {
		return Fail(KindGeneration, "worker response exceeds maximum image size", nil)
	}

	if resp.StatusCode != http.StatusOK {
		return statusFailure(resp.StatusCode, data)
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return decodeJSONImage(data)
	}
	if len(data) == 0 {
		return Fail(KindGeneration, "worker returned an empty image", nil)
	}

	w.logger.Debug("worker returned image", zap.Int("bytes", len(data)))
	return Success(data)
}

// Ping reports whether the endpoint answers at all. Any status below 500
// counts as reachable since generation endpoints usually reject GET.
func (w *HTTPWorker) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url, nil)
	if err != nil {
		return err
	}
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("worker rejected the token (status %d)", resp.StatusCode)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("worker answered with status %d", resp.StatusCode)
	}
	return nil
}

func statusFailure(status int, body []byte) Result {
	message := fmt.Sprintf("worker answered with status %d", status)
	if detail := errorDetail(body); detail != "" {
		message += ": " + detail
	}

	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return Fail(KindUnavailable, message, nil)
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return Fail(KindTimeout, message, nil)
	}
	return Fail(KindGeneration, message, nil)
}

func errorDetail(body []byte) string {
	var resp httpWorkerResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		if resp.Detail != "" {
			return resp.Detail
		}
		if resp.Error != "" {
			return resp.Error
		}
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

func decodeJSONImage(data []byte) Result {
	var resp httpWorkerResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return Fail(KindGeneration, "worker returned malformed json", err)
	}
	if resp.Error != "" {
		return Fail(KindGeneration, resp.Error, nil)
	}
	if resp.Base64Image == "" {
		return Fail(KindGeneration, "worker response carries no image", nil)
	}

	image, err := base64.StdEncoding.DecodeString(resp.Base64Image)
	if err != nil {
		return Fail(KindGeneration, "worker returned invalid base64", err)
	}
	return Success(image)
}
