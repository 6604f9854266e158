package tcpclient

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"
)

// MaxFrameSize bounds a single length-prefixed frame.
const MaxFrameSize = 256 << 20

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrFrameTooLarge    = errors.New("frame exceeds maximum size")
)

// TCPClient exchanges length-prefixed frames (4-byte big-endian size
// followed by the payload) with a single remote peer.
type TCPClient struct {
	address     string
	dialTimeout time.Duration
	maxRetries  int
	tlsConfig   *tls.Config
	logger      *zap.Logger
	conn        net.Conn
}

type TCPClientOption func(*TCPClient)

func WithTLS(config *tls.Config) TCPClientOption {
	return func(c *TCPClient) {
		c.tlsConfig = config
	}
}

func WithLogger(logger *zap.Logger) TCPClientOption {
	return func(c *TCPClient) {
		c.logger = logger
	}
}

func WithMaxRetries(n int) TCPClientOption {
	return func(c *TCPClient) {
		c.maxRetries = n
	}
}

// Dial connects to address, retrying failed dials up to the configured
// number of attempts.
func Dial(ctx context.Context, address string, dialTimeout time.Duration, opts ...TCPClientOption) (*TCPClient, error) {
	client := &TCPClient{
		address:     address,
		dialTimeout: dialTimeout,
		maxRetries:  3,
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(client)
	}

	var err error
	for i := 0; i < client.maxRetries; i++ {
		if client.conn, err = client.dial(ctx); err == nil {
			return client, nil
		}
		if ctx.Err() != nil {
			break
		}
		client.logger.Warn("Failed to dial, retrying", zap.String("address", address), zap.Error(err), zap.Int("attempt", i+1))
	}

	return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
}

func (c *TCPClient) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: c.dialTimeout}
	if c.tlsConfig != nil {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: c.tlsConfig}
		return tlsDialer.DialContext(ctx, "tcp", c.address)
	}
	return dialer.DialContext(ctx, "tcp", c.address)
}

// WriteFrame sends payload as a single frame. The context deadline, if any,
// bounds the write.
func (c *TCPClient) WriteFrame(ctx context.Context, payload []byte) error {
	if c.conn == nil {
		return ErrConnectionClosed
	}
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	stop := c.watch(ctx)
	defer stop()

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))
	if _, err := c.conn.Write(append(header, payload...)); err != nil {
		return c.contextErr(ctx, fmt.Errorf("failed to send frame: %w", err))
	}

	return nil
}

// ReadFrame blocks until a full frame has been received.
func (c *TCPClient) ReadFrame(ctx context.Context) ([]byte, error) {
	if c.conn == nil {
		return nil, ErrConnectionClosed
	}

	stop := c.watch(ctx)
	defer stop()

	header := make([]byte, 4)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return nil, c.contextErr(ctx, fmt.Errorf("failed to receive frame size: %w", err))
	}

	size := binary.BigEndian.Uint32(header)
	if size > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return nil, c.contextErr(ctx, fmt.Errorf("failed to receive frame: %w", err))
	}

	return payload, nil
}

// watch applies the context deadline to the connection and unblocks pending
// I/O when the context is cancelled.
func (c *TCPClient) watch(ctx context.Context) func() {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
	} else {
		c.conn.SetDeadline(time.Time{})
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.conn.SetDeadline(time.Now())
		case <-done:
		}
	}()

	return func() { close(done) }
}

func (c *TCPClient) contextErr(ctx context.Context, err error) error {
	ctxErr := ctx.Err()
	if ctxErr == nil {
		// the connection deadline may fire before the context timer does
		var netErr net.Error
		deadline, ok := ctx.Deadline()
		if ok && errors.As(err, &netErr) && netErr.Timeout() && !time.Now().Before(deadline) {
			ctxErr = context.DeadlineExceeded
		}
	}
	if ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}

func (c *TCPClient) Close() error {
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		c.logger.Error("Failed to close connection", zap.Error(err))
	}
	return err
}
