package feeds

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/artbotdev/art-trader/internal/market"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STREAMING QUOTE PROVIDER - WebSocket venue feed
// ═══════════════════════════════════════════════════════════════════════════════
//
// Maintains a live WebSocket to a venue's market channel and keeps the
// latest quote per event in memory. Fetch snapshots the cache, so the
// engine's cycle sees a point-in-time batch regardless of stream timing.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	reconnectDelay = 5 * time.Second
	pingInterval   = 30 * time.Second
)

// streamMessage is the wire shape pushed by the venue's market channel.
type streamMessage struct {
	EventKey    string          `json:"event_key"`
	Description string          `json:"description"`
	Probability decimal.Decimal `json:"probability"`
	Volume      decimal.Decimal `json:"volume"`
}

// StreamProvider is a QuoteProvider backed by a WebSocket subscription.
type StreamProvider struct {
	mu sync.RWMutex

	venue   string
	wsURL   string
	conn    *websocket.Conn
	running bool
	stopCh  chan struct{}

	// Latest quote per event key.
	cache map[string]market.Quote
}

// NewStreamProvider creates a streaming provider for one venue.
func NewStreamProvider(venue, wsURL string) *StreamProvider {
	return &StreamProvider{
		venue:  venue,
		wsURL:  wsURL,
		stopCh: make(chan struct{}),
		cache:  make(map[string]market.Quote),
	}
}

func (s *StreamProvider) Venue() string { return s.venue }

// Start connects and begins consuming updates.
func (s *StreamProvider) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.connectionLoop()
	log.Info().Str("venue", s.venue).Msg("📡 Stream provider started")
}

// Stop closes the connection.
func (s *StreamProvider) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)

	if s.conn != nil {
		s.conn.Close()
	}
	log.Info().Str("venue", s.venue).Msg("Stream provider stopped")
}

// Fetch snapshots the current cache. Context is accepted for interface
// symmetry; the snapshot itself never blocks.
func (s *StreamProvider) Fetch(ctx context.Context) ([]market.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	quotes := make([]market.Quote, 0, len(s.cache))
	for _, q := range s.cache {
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// connectionLoop maintains the WebSocket connection with reconnects.
func (s *StreamProvider) connectionLoop() {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if err := s.connect(); err != nil {
			log.Warn().Err(err).Str("venue", s.venue).Msg("⚠️ Stream connect failed, retrying")
			select {
			case <-s.stopCh:
				return
			case <-time.After(reconnectDelay):
				continue
			}
		}

		s.readLoop()
	}
}

func (s *StreamProvider) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.pingLoop(conn)

	log.Info().Str("venue", s.venue).Msg("🔌 Stream connected")
	return nil
}

// readLoop consumes messages until the connection drops.
func (s *StreamProvider) readLoop() {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Str("venue", s.venue).Msg("Stream read error, reconnecting")
			conn.Close()
			return
		}

		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug().Err(err).Str("venue", s.venue).Msg("Skipping malformed stream message")
			continue
		}
		if msg.EventKey == "" {
			continue
		}

		s.mu.Lock()
		s.cache[msg.EventKey] = market.Quote{
			VenueID:     s.venue,
			EventKey:    msg.EventKey,
			Description: msg.Description,
			Probability: msg.Probability,
			Volume:      msg.Volume,
			ObservedAt:  time.Now(),
		}
		s.mu.Unlock()
	}
}

func (s *StreamProvider) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
