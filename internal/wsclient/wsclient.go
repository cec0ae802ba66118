// Package wsclient opens a WebSocket to the game server and exchanges JSON
// text frames over it. The connection is split into a Sender and a Receiver so
// writes and the read loop can live on different goroutines.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const (
	// DefaultDialTimeout bounds the opening handshake.
	DefaultDialTimeout = 10 * time.Second
	// DefaultWriteTimeout bounds every outbound frame.
	DefaultWriteTimeout = 10 * time.Second
)

var (
	// ErrUnexpectedMessageType is returned when a binary frame arrives.
	ErrUnexpectedMessageType = errors.New("wsclient: unexpected message type")
	// ErrClosed is returned once the peer closed the stream normally.
	ErrClosed = errors.New("wsclient: stream closed")
	// ErrTimeout matches any StreamError caused by a deadline.
	ErrTimeout = errors.New("wsclient: operation timed out")
)

// SchemeError is a URL whose scheme cannot be mapped to ws or wss. It is a
// configuration mistake and is reported before any dial.
type SchemeError struct {
	URL    string
	Scheme string
}

func (e *SchemeError) Error() string {
	return fmt.Sprintf("wsclient: unsupported url scheme %q in %q", e.Scheme, e.URL)
}

// ConnectError wraps a failed opening handshake.
type ConnectError struct {
	URL string
	Err error
}

func (e *ConnectError) Error() string { return fmt.Sprintf("wsclient: connect %s: %v", e.URL, e.Err) }

func (e *ConnectError) Unwrap() error { return e.Err }

// StreamError wraps a failed read or write on an open stream.
type StreamError struct {
	Op  string
	Err error
}

func (e *StreamError) Error() string {
	if e.Timeout() {
		return fmt.Sprintf("wsclient: %s: timed out", e.Op)
	}
	return fmt.Sprintf("wsclient: %s: %v", e.Op, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// Timeout reports whether the operation ran out of time.
func (e *StreamError) Timeout() bool { return errors.Is(e.Err, context.DeadlineExceeded) }

func (e *StreamError) Is(target error) bool {
	return target == ErrTimeout && e.Timeout()
}

// DecodeError means a text frame was not the expected JSON.
type DecodeError struct {
	Text string
	Err  error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("wsclient: decode message: %v", e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// ToWebSocketURL rewrites http to ws and https to wss. ws and wss pass
// through; anything else is a *SchemeError.
func ToWebSocketURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, &SchemeError{URL: raw, Scheme: u.Scheme}
	}
	return u, nil
}

type options struct {
	token        string
	dialTimeout  time.Duration
	writeTimeout time.Duration
	httpClient  *http.Client
	readLimit   int64
	logger      *zap.Logger
}

type Option func(*options)

// WithToken sends "Authorization: Bearer <token>" with the handshake.
func WithToken(token string) Option {
	return func(o *options) { o.token = token }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// WithWriteTimeout bounds each SendText. Zero leaves writes bounded by the
// caller's context only.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithReadLimit caps the size of a single inbound message in bytes.
func WithReadLimit(n int64) Option {
	return func(o *options) { o.readLimit = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

type conn struct {
	ws        *websocket.Conn
	url       string
	logger    *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

func (c *conn) close(reason string) error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close(websocket.StatusNormalClosure, reason)
		c.logger.Debug("websocket closed", zap.String("url", c.url), zap.String("reason", reason))
	})
	return c.closeErr
}

// Connect dials rawURL after translating its scheme and returns both halves
// of the stream.
func Connect(ctx context.Context, rawURL string, opts ...Option) (*Sender, *Receiver, error) {
	o := options{
		dialTimeout:  DefaultDialTimeout,
		writeTimeout: DefaultWriteTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	u, err := ToWebSocketURL(rawURL)
	if err != nil {
		return nil, nil, err
	}

	dialCtx := ctx
	if o.dialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, o.dialTimeout)
		defer cancel()
	}

	header := http.Header{}
	if o.token != "" {
		header.Set("Authorization", "Bearer "+o.token)
	}

	ws, _, err := websocket.Dial(dialCtx, u.String(), &websocket.DialOptions{
		HTTPClient: o.httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, nil, &ConnectError{URL: u.String(), Err: err}
	}
	if o.readLimit > 0 {
		ws.SetReadLimit(o.readLimit)
	}
	o.logger.Debug("websocket connected", zap.String("url", u.String()))

	c := &conn{ws: ws, url: u.String(), logger: o.logger}
	return &Sender{c: c, timeout: o.writeTimeout}, &Receiver{c: c}, nil
}

// Sender is the write half.
type Sender struct {
	c       *conn
	timeout time.Duration
}

// SendText writes one text frame. A write that outlives the write timeout
// fails with a *StreamError matching ErrTimeout and the stream is torn down.
func (s *Sender) SendText(ctx context.Context, text string) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.c.ws.Write(ctx, websocket.MessageText, []byte(text)); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		s.c.logger.Debug("websocket write failed", zap.String("url", s.c.url), zap.Error(err))
		return &StreamError{Op: "write", Err: err}
	}
	return nil
}

// SendJSON encodes v and writes it as one text frame.
func (s *Sender) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.SendText(ctx, string(data))
}

// Close ends the stream with a normal closure.
func (s *Sender) Close(reason string) error { return s.c.close(reason) }

// Receiver is the read half. Only one goroutine may read at a time.
type Receiver struct {
	c *conn
}

// RecvText waits for the next text frame.
func (r *Receiver) RecvText(ctx context.Context) (string, error) {
	typ, data, err := r.c.ws.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return "", ErrClosed
		}
		return "", &StreamError{Op: "read", Err: err}
	}
	if typ != websocket.MessageText {
		return "", ErrUnexpectedMessageType
	}
	return string(data), nil
}

// RecvJSON waits for the next text frame and decodes it into v.
func (r *Receiver) RecvJSON(ctx context.Context, v any) error {
	text, err := r.RecvText(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return &DecodeError{Text: text, Err: err}
	}
	return nil
}

// Close ends the stream with a normal closure.
func (r *Receiver) Close(reason string) error { return r.c.close(reason) }

// Pump reads messages until the stream ends or ctx is done and hands every
// JSON message to emit. Text that is not JSON is logged and skipped. A normal
// close returns nil.
func Pump(ctx context.Context, r *Receiver, emit func(json.RawMessage)) error {
	for {
		text, err := r.RecvText(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if !json.Valid([]byte(text)) {
			r.c.logger.Warn("dropping non-json message", zap.String("url", r.c.url), zap.Int("bytes", len(text)))
			continue
		}
		emit(json.RawMessage(text))
	}
}
