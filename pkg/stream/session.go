package stream

import (
	"context"
	"io"
	"iter"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-alpaca/internal/logger"
	"github.com/rxtech-lab/argo-alpaca/pkg/errors"
)

// State is the lifecycle state of a Session.
type State string

const (
	// StateIdle is a session whose sequence has not been consumed yet.
	StateIdle           State = "idle"
	StateConnecting     State = "connecting"
	StateAuthenticating State = "authenticating"
	StateSubscribing    State = "subscribing"
	StateStreaming      State = "streaming"
	StateClosed         State = "closed"
	StateFailed         State = "failed"
)

// IsTerminal reports whether no further transitions can happen.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateFailed
}

// DefaultBufferSize is the hand-off capacity between the reader and the consumer.
const DefaultBufferSize = 64

// SessionConfig holds what every session needs regardless of channel.
type SessionConfig struct {
	URL string `validate:"required,url"`
	// Header is sent with the opening handshake. Market data and news
	// channels carry the credentials here.
	Header http.Header
	Dialer Dialer `validate:"required"`
	Logger *logger.Logger
	// BufferSize is the capacity of the hand-off channel. Zero means DefaultBufferSize.
	BufferSize    int `validate:"gte=0"`
	OnStateChange func(State)
}

// frameDecoder turns one inbound frame into at most one emitted unit.
// ok is false when the frame produced nothing to emit; a non-nil error ends the session.
type frameDecoder[T any] func(log *logger.Logger, frameType int, payload []byte) (value T, ok bool, err error)

type result[T any] struct {
	value T
	err   error
}

// Session owns one WebSocket connection for its whole life. It is single-use:
// once its sequence has been consumed it cannot be started again.
type Session[T any] struct {
	url           string
	header        http.Header
	dialer        Dialer
	log           *logger.Logger
	bufferSize    int
	onStateChange func(State)

	// control frames sent in order right after connecting
	handshake     [][]byte
	authenticates bool
	decode        frameDecoder[T]

	started atomic.Bool
	state   atomic.Value
}

func newSession[T any](config SessionConfig, handshake [][]byte, authenticates bool, decode frameDecoder[T]) (*Session[T], error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid stream session config", err)
	}

	log := config.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	bufferSize := config.BufferSize
	if bufferSize == 0 {
		bufferSize = DefaultBufferSize
	}

	s := &Session[T]{
		url:           config.URL,
		header:        config.Header.Clone(),
		dialer:        config.Dialer,
		log:           &logger.Logger{Logger: log.Named("stream").With(zap.String("url", config.URL))},
		bufferSize:    bufferSize,
		onStateChange: config.OnStateChange,
		handshake:     handshake,
		authenticates: authenticates,
		decode:        decode,
	}
	s.state.Store(StateIdle)

	return s, nil
}

// NewMarketDataSession creates a session that subscribes trades, quotes and bars
// for symbols and emits every decoded text frame as one batch.
func NewMarketDataSession(config SessionConfig, symbols []string) (*Session[[]Message], error) {
	frame, err := Encode(BuildMarketDataSubscribe(symbols))
	if err != nil {
		return nil, err
	}

	return newSession(config, [][]byte{frame}, false, decodeDataFrame)
}

// NewNewsSession creates a session on the news channel. Empty symbols means all news.
func NewNewsSession(config SessionConfig, symbols []string) (*Session[[]Message], error) {
	frame, err := Encode(BuildNewsSubscribe(symbols))
	if err != nil {
		return nil, err
	}

	return newSession(config, [][]byte{frame}, false, decodeDataFrame)
}

// NewAccountSession creates a session on the account channel. The credentials are
// sent in-band as the first frame, followed by the trade_updates listen request.
func NewAccountSession(config SessionConfig, key, secret string) (*Session[AccountEvent], error) {
	auth, err := Encode(BuildAuth(key, secret))
	if err != nil {
		return nil, err
	}

	listen, err := Encode(BuildListenTradeUpdates())
	if err != nil {
		return nil, err
	}

	return newSession(config, [][]byte{auth, listen}, true, decodeAccountFrame)
}

// State returns the current state.
func (s *Session[T]) State() State {
	return s.state.Load().(State)
}

func (s *Session[T]) setState(state State) {
	s.state.Store(state)
	s.log.Debug("stream state changed", zap.String("state", string(state)))

	if s.onStateChange != nil {
		s.onStateChange(state)
	}
}

// Stream returns the lazy sequence of decoded units. Nothing is dialled until the
// sequence is ranged over. Cancelling ctx or breaking out of the loop closes the
// connection and ends the sequence without an error. A failure is yielded once as
// the last element. Ranging a second time yields ErrCodeSessionReused.
func (s *Session[T]) Stream(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		if !s.started.CompareAndSwap(false, true) {
			yield(zero, errors.New(errors.ErrCodeSessionReused, "stream session can only be consumed once"))

			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		conn, err := s.open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.log.Debug("stream cancelled before streaming started")
				s.setState(StateClosed)

				return
			}

			s.log.Error("failed to open stream", zap.Error(err))
			s.setState(StateFailed)
			yield(zero, err)

			return
		}

		s.setState(StateStreaming)

		results := make(chan result[T], s.bufferSize)
		final := StateClosed

		go func() {
			defer close(results)

			final = s.readLoop(ctx, conn, results)
		}()

		for r := range results {
			if ctx.Err() != nil {
				break
			}

			if !yield(r.value, r.err) || r.err != nil {
				break
			}
		}

		// unblock the reader, then wait for it to exit so the connection is released
		cancel()

		for range results {
		}

		conn.release()
		s.setState(final)
	}
}

// openConn is a connection whose Close runs at most once, either when the
// session context is cancelled or when the session releases it.
type openConn struct {
	Conn
	closeOnce func() error
	stopClose func() bool
}

func (c *openConn) release() {
	c.stopClose()
	_ = c.closeOnce()
}

// open dials and sends the handshake frames. The connection is released on failure.
func (s *Session[T]) open(ctx context.Context) (*openConn, error) {
	s.setState(StateConnecting)

	raw, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConnectionFailed, "failed to connect", err)
	}

	s.header = nil

	conn := &openConn{Conn: raw, closeOnce: sync.OnceValue(raw.Close)}
	conn.stopClose = context.AfterFunc(ctx, func() {
		_ = conn.closeOnce()
	})

	for i, frame := range s.handshake {
		if i == 0 && s.authenticates {
			s.setState(StateAuthenticating)
		} else {
			s.setState(StateSubscribing)
		}

		if err := conn.WriteMessage(TextFrame, frame); err != nil {
			conn.release()

			return nil, errors.Wrap(errors.ErrCodeHandshakeFailed, "failed to send control frame", err)
		}
	}

	s.handshake = nil

	if ctx.Err() != nil {
		conn.release()

		return nil, ctx.Err()
	}

	return conn, nil
}

// readLoop owns ReadMessage until the connection ends and returns the terminal state.
func (s *Session[T]) readLoop(ctx context.Context, conn Conn, results chan<- result[T]) State {
	send := func(r result[T]) bool {
		select {
		case results <- r:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		frameType, payload, err := conn.ReadMessage()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				s.log.Debug("stream cancelled")

				return StateClosed
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived),
				errors.Is(err, io.EOF):
				s.log.Info("stream closed by server")

				return StateClosed
			default:
				s.log.Error("stream connection lost", zap.Error(err))
				send(result[T]{err: errors.Wrap(errors.ErrCodeConnectionLost, "websocket error", err)})

				return StateFailed
			}
		}

		value, ok, err := s.decode(s.log, frameType, payload)
		if err != nil {
			s.log.Error("failed to decode frame", zap.Error(err))
			send(result[T]{err: err})

			return StateFailed
		}

		if !ok {
			continue
		}

		if !send(result[T]{value: value}) {
			s.log.Debug("stream cancelled")

			return StateClosed
		}
	}
}

func decodeDataFrame(log *logger.Logger, frameType int, payload []byte) ([]Message, bool, error) {
	if frameType != TextFrame {
		log.Warn("skipping unexpected frame",
			zap.Error(errors.Newf(errors.ErrCodeUnexpectedFrameType, "unexpected frame type %d", frameType)))

		return nil, false, nil
	}

	batch, err := DecodeFrame(payload)
	if err != nil {
		return nil, false, err
	}

	for _, failure := range batch.Failures {
		log.Warn("skipping undecodable message", zap.Int("index", failure.Index), zap.Error(failure.Err))
	}

	if len(batch.Messages) == 0 {
		return nil, false, nil
	}

	return batch.Messages, true, nil
}

func decodeAccountFrame(log *logger.Logger, frameType int, payload []byte) (AccountEvent, bool, error) {
	if frameType != BinaryFrame && frameType != TextFrame {
		log.Warn("skipping unexpected frame",
			zap.Error(errors.Newf(errors.ErrCodeUnexpectedFrameType, "unexpected frame type %d", frameType)))

		return AccountEvent{}, false, nil
	}

	event, err := DecodeAccountEvent(payload)
	if err != nil {
		return AccountEvent{}, false, err
	}

	return event, true, nil
}
