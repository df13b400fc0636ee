package perp

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// PositionsSnapshot is the latest POSITION message of the account stream.
type PositionsSnapshot struct {
	Positions []json.RawMessage `json:"positions"`
	TS        int64             `json:"ts"`
	Seq       *int64            `json:"seq,omitempty"`
}

// Stream keeps a reconnecting account WebSocket open and remembers the last
// positions message.
type Stream struct {
	url      string
	apiKey   string
	dialer   *websocket.Dialer
	onUpdate func(PositionsSnapshot)

	mu     sync.RWMutex
	latest *PositionsSnapshot

	cancel context.CancelFunc
	done   chan struct{}
}

func NewStream(url, apiKey string, onUpdate func(PositionsSnapshot)) *Stream {
	return &Stream{
		url:      url,
		apiKey:   apiKey,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		onUpdate: onUpdate,
	}
}

// Start connects in the background. Without an API key the stream stays off.
func (s *Stream) Start(ctx context.Context) {
	if s.apiKey == "" {
		log.Warn().Msg("Perp stream disabled: X10_API_KEY missing")
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
}

func (s *Stream) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	log.Info().Msg("Perp stream stopped")
}

// Latest returns the last positions message, if any.
func (s *Stream) Latest() (PositionsSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return PositionsSnapshot{}, false
	}
	return *s.latest, true
}

func (s *Stream) run(ctx context.Context) {
	defer close(s.done)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 10 * time.Second

	for {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			policy.Reset()
		}
		delay := policy.NextBackOff()
		log.Warn().Err(err).Dur("retry_in", delay).Msg("Perp stream disconnected")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// session runs one connection until it drops. connected reports whether the
// handshake succeeded.
func (s *Stream) session(ctx context.Context) (bool, error) {
	header := http.Header{}
	header.Set("X-Api-Key", s.apiKey)
	conn, _, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	log.Info().Str("url", s.url).Msg("📡 Perp stream connected")
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		s.handle(data)
	}
}

func (s *Stream) handle(data []byte) {
	var msg struct {
		Type string `json:"type"`
		Data struct {
			Positions []json.RawMessage `json:"positions"`
		} `json:"data"`
		TS  int64  `json:"ts"`
		Seq *int64 `json:"seq"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Msg("Perp stream parse error")
		return
	}
	if msg.Type != "POSITION" || msg.Data.Positions == nil {
		return
	}

	snap := PositionsSnapshot{Positions: msg.Data.Positions, TS: msg.TS, Seq: msg.Seq}
	if snap.TS == 0 {
		snap.TS = time.Now().UnixMilli()
	}
	s.mu.Lock()
	s.latest = &snap
	s.mu.Unlock()

	log.Debug().Int("positions", len(snap.Positions)).Msg("Perp positions update")
	if s.onUpdate != nil {
		s.onUpdate(snap)
	}
}
