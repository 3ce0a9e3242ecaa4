// Package broadcast manages downstream client connections and fans out
// score updates, transaction alerts, and flag notifications over
// websockets, per spec §4.7.
package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wallet-sentinel/sentinel/internal/apperr"
	"github.com/wallet-sentinel/sentinel/internal/codec"
	"github.com/wallet-sentinel/sentinel/pkg/logging"
	"github.com/wallet-sentinel/sentinel/pkg/models"
)

const (
	// HeartbeatInterval is how often a heartbeat frame is broadcast.
	HeartbeatInterval = 30 * time.Second
	// ReapInterval is how often idle connections are swept.
	ReapInterval = 60 * time.Second
	// ConnectionTimeout is how long a connection may sit idle before reaping.
	ConnectionTimeout = 300 * time.Second

	protocolVersion = "1.0.0"
)

// Frame is the envelope every message, inbound or outbound, is wrapped in.
type Frame struct {
	Type      string      `json:"type"`
	ID        string      `json:"id"`
	Timestamp int64       `json:"timestamp"`
	Version   string      `json:"version"`
	Data      interface{} `json:"data"`
}

const (
	typeSubscribe         = "subscribe"
	typeUnsubscribe       = "unsubscribe"
	typeHeartbeat         = "heartbeat"
	typeScoreUpdate       = "score_update"
	typeTransactionAlert  = "transaction_alert"
	typeWalletFlagged     = "wallet_flagged"
	typeError             = "error"
)

// connection is one live downstream client.
type connection struct {
	models.ClientConnection
	ws        *websocket.Conn
	sendMu    sync.Mutex
	limiter   *slidingWindowLimiter
	closeOnce sync.Once

	// lastActivityNano holds LastActivity as Unix nanoseconds so the
	// receive-loop goroutine (writer) and the idle reaper (reader, from a
	// different goroutine) never touch the embedded time.Time concurrently.
	lastActivityNano atomic.Int64
}

func (c *connection) send(frame Frame) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.ws.WriteJSON(frame)
}

func (c *connection) touchActivity() {
	c.lastActivityNano.Store(time.Now().UnixNano())
}

func (c *connection) idleSince(cutoff time.Time) bool {
	return time.Unix(0, c.lastActivityNano.Load()).Before(cutoff)
}

// Hub owns the set of live connections and their subscriptions.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*connection
	upgrader    websocket.Upgrader
	logger      *logging.Logger

	startedAt time.Time
}

// New builds an empty Hub.
func New(logger *logging.Logger) *Hub {
	return &Hub{
		connections: make(map[string]*connection),
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:      logger,
		startedAt:   time.Now(),
	}
}

// Accept upgrades an HTTP request to a websocket connection and starts its
// receive loop, blocking until the connection closes.
func (h *Hub) Accept(w http.ResponseWriter, r *http.Request) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return apperr.Wrap(apperr.CodeBroadcast, "upgrading connection", err)
	}

	conn := &connection{
		ClientConnection: models.ClientConnection{
			ID:                uuid.NewString(),
			SubscribedWallets: make(map[string]struct{}),
			ConnectedAt:       time.Now(),
		},
		ws:      ws,
		limiter: newSlidingWindowLimiter(windowSize, maxMessages),
	}
	conn.touchActivity()

	h.mu.Lock()
	h.connections[conn.ID] = conn
	h.mu.Unlock()

	if h.logger != nil {
		h.logger.Info("connection accepted", map[string]interface{}{"connectionId": conn.ID})
	}

	_ = conn.send(h.welcomeFrame())

	h.receiveLoop(conn)
	return nil
}

func (h *Hub) welcomeFrame() Frame {
	return Frame{
		Type: typeHeartbeat, ID: uuid.NewString(), Timestamp: nowMs(), Version: protocolVersion,
		Data: map[string]interface{}{
			"serverTime":        nowMs(),
			"activeConnections": h.ConnectionCount(),
			"memoryUsage":       memStats(),
		},
	}
}

func (h *Hub) receiveLoop(conn *connection) {
	defer h.removeConnection(conn.ID)
	defer conn.ws.Close()

	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			return // disconnect or transport error: loop exits, connection is freed
		}

		conn.touchActivity()

		if !conn.limiter.Allow(time.Now()) {
			_ = conn.send(errorFrame(apperr.CodeRateLimit, "rate limit exceeded", "", true))
			continue
		}

		var in Frame
		if err := json.Unmarshal(raw, &in); err != nil {
			_ = conn.send(errorFrame(apperr.CodeValidation, "malformed frame", err.Error(), false))
			continue
		}

		h.handleInbound(conn, in)
	}
}

func (h *Hub) handleInbound(conn *connection, in Frame) {
	switch in.Type {
	case typeSubscribe:
		h.handleSubscribe(conn, in)
	case "unsubscribe":
		h.handleUnsubscribe(conn, in)
	case "ping":
		conn.touchActivity()
		_ = conn.send(Frame{Type: "pong", ID: uuid.NewString(), Timestamp: nowMs(), Version: protocolVersion})
	default:
		_ = conn.send(errorFrame(apperr.CodeValidation, "unknown frame type: "+in.Type, "", false))
	}
}

type subUnsubPayload struct {
	Wallet    string `json:"wallet"`
	SessionID string `json:"sessionId"`
}

func (h *Hub) handleSubscribe(conn *connection, in Frame) {
	payload := decodePayload(in.Data)
	wallet, checksummed, err := codec.Normalize(payload.Wallet)
	if err != nil {
		_ = conn.send(errorFrame(apperr.CodeValidation, "invalid wallet address", err.Error(), false))
		return
	}
	_ = checksummed

	h.mu.Lock()
	if payload.SessionID != "" {
		conn.SessionID = payload.SessionID
	}
	subscribed := false
	message := "subscription limit reached"
	if _, already := conn.SubscribedWallets[wallet]; already {
		subscribed = true
		message = "already subscribed"
	} else if len(conn.SubscribedWallets) < models.MaxSubsPerConnection {
		conn.SubscribedWallets[wallet] = struct{}{}
		subscribed = true
		message = "subscribed"
	}
	h.mu.Unlock()

	_ = conn.send(Frame{
		Type: typeSubscribe, ID: uuid.NewString(), Timestamp: nowMs(), Version: protocolVersion,
		Data: map[string]interface{}{
			"wallet": wallet, "sessionId": conn.SessionID, "subscribed": subscribed, "message": message,
		},
	})
}

func (h *Hub) handleUnsubscribe(conn *connection, in Frame) {
	payload := decodePayload(in.Data)
	wallet, _, err := codec.Normalize(payload.Wallet)
	if err != nil {
		_ = conn.send(errorFrame(apperr.CodeValidation, "invalid wallet address", err.Error(), false))
		return
	}

	h.mu.Lock()
	_, was := conn.SubscribedWallets[wallet]
	delete(conn.SubscribedWallets, wallet)
	h.mu.Unlock()

	message := "not subscribed"
	if was {
		message = "unsubscribed"
	}
	_ = conn.send(Frame{
		Type: typeUnsubscribe, ID: uuid.NewString(), Timestamp: nowMs(), Version: protocolVersion,
		Data: map[string]interface{}{
			"wallet": wallet, "sessionId": conn.SessionID, "unsubscribed": was, "message": message,
		},
	})
}

func decodePayload(data interface{}) subUnsubPayload {
	raw, err := json.Marshal(data)
	if err != nil {
		return subUnsubPayload{}
	}
	var p subUnsubPayload
	_ = json.Unmarshal(raw, &p)
	return p
}

func (h *Hub) removeConnection(id string) {
	h.mu.Lock()
	delete(h.connections, id)
	h.mu.Unlock()
	if h.logger != nil {
		h.logger.Info("connection removed", map[string]interface{}{"connectionId": id})
	}
}

// ConnectionCount returns the number of currently live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// BroadcastScoreUpdate sends a score_update frame to every connection
// subscribed to wallet, per §4.7.
func (h *Hub) BroadcastScoreUpdate(wallet string, newScore models.ScoringResult, previousScore *models.ScoringResult) {
	h.fanout(wallet, Frame{
		Type: typeScoreUpdate, ID: uuid.NewString(), Timestamp: nowMs(), Version: protocolVersion,
		Data: map[string]interface{}{"wallet": wallet, "score": newScore, "previousScore": previousScore},
	})
}

// BroadcastTxAlert sends a transaction_alert frame, normalizing the event
// timestamp to milliseconds if it looks like it was given in seconds.
func (h *Hub) BroadcastTxAlert(wallet string, event models.WalletEvent, riskLevel models.RiskLevel, scoreDelta float64) {
	if looksLikeSeconds(event.BlockTimestamp) {
		event.BlockTimestamp *= 1000
	}
	h.fanout(wallet, Frame{
		Type: typeTransactionAlert, ID: uuid.NewString(), Timestamp: nowMs(), Version: protocolVersion,
		Data: map[string]interface{}{
			"wallet": wallet, "transaction": event, "riskLevel": riskLevel, "scoreImpact": scoreDelta,
		},
	})
}

// BroadcastFlagged sends a wallet_flagged frame.
func (h *Hub) BroadcastFlagged(wallet string, riskLevel models.RiskLevel, score float64, txHash string) {
	h.fanout(wallet, Frame{
		Type: typeWalletFlagged, ID: uuid.NewString(), Timestamp: nowMs(), Version: protocolVersion,
		Data: map[string]interface{}{
			"wallet": wallet, "riskLevel": riskLevel, "score": score,
			"contractTxHash": txHash, "flaggedAt": nowMs(),
		},
	})
}

// fanout delivers frame to every connection subscribed to wallet.
// Per-connection delivery errors are logged and don't affect other
// connections.
func (h *Hub) fanout(wallet string, frame Frame) {
	h.mu.RLock()
	targets := make([]*connection, 0, len(h.connections))
	for _, c := range h.connections {
		if _, ok := c.SubscribedWallets[wallet]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(frame); err != nil && h.logger != nil {
			h.logger.Warn("broadcast delivery failed", map[string]interface{}{
				"connectionId": c.ID, "wallet": wallet, "error": err.Error(),
			})
		}
	}
}

// RunHeartbeat broadcasts a heartbeat frame to every connection every
// HeartbeatInterval until ctx is cancelled.
func (h *Hub) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.broadcastHeartbeat()
		}
	}
}

func (h *Hub) broadcastHeartbeat() {
	frame := Frame{
		Type: typeHeartbeat, ID: uuid.NewString(), Timestamp: nowMs(), Version: protocolVersion,
		Data: map[string]interface{}{
			"serverTime":        nowMs(),
			"activeConnections": h.ConnectionCount(),
			"memoryUsage":       memStats(),
		},
	}
	h.mu.RLock()
	targets := make([]*connection, 0, len(h.connections))
	for _, c := range h.connections {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	for _, c := range targets {
		_ = c.send(frame)
	}
}

// RunIdleReaper forcibly closes connections idle longer than
// ConnectionTimeout, every ReapInterval, until ctx is cancelled.
func (h *Hub) RunIdleReaper(ctx context.Context) {
	ticker := time.NewTicker(ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.reapIdle()
		}
	}
}

func (h *Hub) reapIdle() {
	cutoff := time.Now().Add(-ConnectionTimeout)

	h.mu.RLock()
	var stale []*connection
	for _, c := range h.connections {
		if c.idleSince(cutoff) {
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		c.closeOnce.Do(func() { c.ws.Close() })
		h.removeConnection(c.ID)
	}
}

func errorFrame(code apperr.Code, message, details string, recoverable bool) Frame {
	return Frame{
		Type: typeError, ID: uuid.NewString(), Timestamp: nowMs(), Version: protocolVersion,
		Data: map[string]interface{}{
			"code": code, "message": message, "details": details, "recoverable": recoverable,
		},
	}
}

func nowMs() int64 { return time.Now().UnixMilli() }

// looksLikeSeconds applies the spec's heuristic: a value well under a
// plausible millisecond epoch is assumed to be seconds instead.
func looksLikeSeconds(ts int64) bool {
	const year2001Ms = 978307200000
	return ts > 0 && ts < year2001Ms
}

func memStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return map[string]interface{}{
		"allocBytes":      m.Alloc,
		"totalAllocBytes": m.TotalAlloc,
		"numGoroutine":    runtime.NumGoroutine(),
	}
}
