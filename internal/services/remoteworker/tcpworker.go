package remoteworker

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/stablegen/gateway/pkg/tcpclient"
)

const (
	tcpDialTimeout = 10 * time.Second
	tcpDialRetries = 2

	statusOK = "ok"
)

// TCPWorker talks to a local python gen-server over length-prefixed msgpack
// frames. One connection is opened per generation.
type TCPWorker struct {
	address string
	logger  *zap.Logger
}

type tcpRequest struct {
	Op     string `msgpack:"op"`
	Params Params `msgpack:"params"`
}

type tcpResponse struct {
	Status string `msgpack:"status"`
	Kind   string `msgpack:"kind"`
	Error  string `msgpack:"error"`
	Image  []byte `msgpack:"image"`
}

func NewTCPWorker(address string, logger *zap.Logger) (*TCPWorker, error) {
	if address == "" {
		return nil, fmt.Errorf("worker address is not set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TCPWorker{address: address, logger: logger}, nil
}

func (w *TCPWorker) Generate(ctx context.Context, params Params) Result {
	var resp tcpResponse
	if f := w.roundTrip(ctx, tcpRequest{Op: "generate", Params: params}, &resp); f != nil {
		return Result{Failure: f}
	}

	if resp.Status != statusOK {
		kind := Kind(resp.Kind)
		switch kind {
		case KindUnavailable, KindTimeout, KindGeneration:
		default:
			kind = KindGeneration
		}
		message := resp.Error
		if message == "" {
			message = "worker reported a failure"
		}
		return Fail(kind, message, nil)
	}

	if len(resp.Image) == 0 {
		return Fail(KindGeneration, "worker returned an empty image", nil)
	}
	if len(resp.Image) > MaxImageSize {
		return Fail(KindGeneration, "worker response exceeds maximum image size", nil)
	}

	return Success(resp.Image)
}

func (w *TCPWorker) Ping(ctx context.Context) error {
	var resp tcpResponse
	if f := w.roundTrip(ctx, tcpRequest{Op: "ping"}, &resp); f != nil {
		return f
	}
	if resp.Status != statusOK {
		return fmt.Errorf("worker answered ping with status %q", resp.Status)
	}
	return nil
}

func (w *TCPWorker) roundTrip(ctx context.Context, req tcpRequest, resp *tcpResponse) *Failure {
	client, err := tcpclient.Dial(ctx, w.address, min(tcpDialTimeout, remaining(ctx, tcpDialTimeout)),
		tcpclient.WithLogger(w.logger),
		tcpclient.WithMaxRetries(tcpDialRetries),
	)
	if err != nil {
		if f := contextFailure(ctx, err); f != nil {
			return f
		}
		return &Failure{Kind: KindUnavailable, Message: "worker is unreachable", Cause: err}
	}
	defer client.Close()

	payload, err := msgpack.Marshal(&req)
	if err != nil {
		return &Failure{Kind: KindGeneration, Message: "failed to encode worker request", Cause: err}
	}

	if err := client.WriteFrame(ctx, payload); err != nil {
		return w.ioFailure(ctx, "failed to send request to worker", err)
	}

	frame, err := client.ReadFrame(ctx)
	if err != nil {
		return w.ioFailure(ctx, "failed to read worker response", err)
	}

	if err := msgpack.Unmarshal(frame, resp); err != nil {
		return &Failure{Kind: KindGeneration, Message: "worker returned a malformed response", Cause: err}
	}

	return nil
}

func (w *TCPWorker) ioFailure(ctx context.Context, message string, err error) *Failure {
	if f := contextFailure(ctx, err); f != nil {
		return f
	}

	w.logger.Warn("worker connection failed", zap.String("address", w.address), zap.Error(err))
	return &Failure{Kind: KindUnavailable, Message: message, Cause: err}
}
