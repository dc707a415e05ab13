package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/common"
	"github.com/ternarybob/capto/internal/interfaces"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the wire envelope for all websocket traffic
type WSMessage struct {
	Type       string      `json:"type"`
	CampaignID string      `json:"campaign_id,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

func newWSMessage(msgType, campaignID string, data interface{}) WSMessage {
	return WSMessage{
		Type:       msgType,
		CampaignID: campaignID,
		Data:       data,
		Timestamp:  time.Now().UTC(),
	}
}

// ConnectedPayload greets a client on subscription
type ConnectedPayload struct {
	CampaignID       string `json:"campaign_id,omitempty"`
	AccountID        string `json:"account_id,omitempty"`
	ServerInstanceID string `json:"server_instance_id"`
}

// WebSocketHub fans events out to subscribed clients. Campaign channels
// carry scraping progress for one campaign; the account channel carries
// account-wide notices like limit_reached. Progress events are throttled
// per campaign so a fast scraper cannot flood slow clients.
type WebSocketHub struct {
	logger           arbor.ILogger
	mu               sync.RWMutex
	campaignClients  map[string]map[*websocket.Conn]bool
	accountClients   map[string]map[*websocket.Conn]bool
	connMutex        map[*websocket.Conn]*sync.Mutex
	throttlers       map[string]*rate.Limiter
	throttleInterval time.Duration
	pingInterval     time.Duration
	writeTimeout     time.Duration
	serverInstanceID string
}

// NewWebSocketHub creates the hub and bridges it onto the event bus
func NewWebSocketHub(eventService interfaces.EventService, cfg common.WebSocketConfig, logger arbor.ILogger) *WebSocketHub {
	h := &WebSocketHub{
		logger:           logger,
		campaignClients:  make(map[string]map[*websocket.Conn]bool),
		accountClients:   make(map[string]map[*websocket.Conn]bool),
		connMutex:        make(map[*websocket.Conn]*sync.Mutex),
		throttlers:       make(map[string]*rate.Limiter),
		pingInterval:     cfg.PingInterval,
		writeTimeout:     cfg.WriteTimeout,
		serverInstanceID: uuid.New().String(),
	}
	if h.pingInterval <= 0 {
		h.pingInterval = 30 * time.Second
	}
	if h.writeTimeout <= 0 {
		h.writeTimeout = 10 * time.Second
	}

	if intervalStr, ok := cfg.ThrottleIntervals[string(interfaces.EventScrapingProgress)]; ok {
		if interval, err := time.ParseDuration(intervalStr); err == nil {
			h.throttleInterval = interval
			logger.Debug().
				Str("event_type", string(interfaces.EventScrapingProgress)).
				Str("interval", intervalStr).
				Msg("Progress throttling enabled")
		} else {
			logger.Warn().
				Err(err).
				Str("interval", intervalStr).
				Msg("Failed to parse progress throttle interval, throttling disabled")
		}
	}

	if eventService != nil {
		if err := eventService.SubscribeAll(h.onEvent); err != nil {
			logger.Error().Err(err).Msg("Failed to subscribe hub to event bus")
		}
	}

	logger.Info().
		Str("server_instance_id", h.serverInstanceID).
		Msg("WebSocket hub initialized")
	return h
}

// HandleScrapingWS subscribes a client to one campaign's live feed.
// Route shape: /ws/scraping/{campaignID}
func (h *WebSocketHub) HandleScrapingWS(w http.ResponseWriter, r *http.Request) {
	campaignID := r.PathValue("campaignID")
	if campaignID == "" {
		WriteError(w, http.StatusBadRequest, "campaign ID is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.register(h.campaignClients, campaignID, conn)
	defer h.unregister(h.campaignClients, campaignID, conn)

	h.send(conn, newWSMessage("connected", campaignID, ConnectedPayload{
		CampaignID:       campaignID,
		ServerInstanceID: h.serverInstanceID,
	}))

	h.serveConn(conn)
}

// HandleAccountWS subscribes a client to account-wide notices.
// Route shape: /ws/account?account_id={id}
func (h *WebSocketHub) HandleAccountWS(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		WriteError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.register(h.accountClients, accountID, conn)
	defer h.unregister(h.accountClients, accountID, conn)

	h.send(conn, newWSMessage("connected", "", ConnectedPayload{
		AccountID:        accountID,
		ServerInstanceID: h.serverInstanceID,
	}))

	h.serveConn(conn)
}

func (h *WebSocketHub) register(registry map[string]map[*websocket.Conn]bool, key string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if registry[key] == nil {
		registry[key] = make(map[*websocket.Conn]bool)
	}
	registry[key][conn] = true
	h.connMutex[conn] = &sync.Mutex{}
	h.logger.Debug().
		Str("key", key).
		Int("subscribers", len(registry[key])).
		Msg("WebSocket client connected")
}

func (h *WebSocketHub) unregister(registry map[string]map[*websocket.Conn]bool, key string, conn *websocket.Conn) {
	h.mu.Lock()
	if clients, ok := registry[key]; ok {
		delete(clients, conn)
		if len(clients) == 0 {
			delete(registry, key)
		}
	}
	delete(h.connMutex, conn)
	h.mu.Unlock()

	conn.Close()
	h.logger.Debug().Str("key", key).Msg("WebSocket client disconnected")
}

// serveConn runs the ping loop and the read loop until the client drops.
// Browser clients cannot see protocol-level control frames, so an inbound
// JSON {"type":"ping"} is answered with a JSON pong on the same channel.
func (h *WebSocketHub) serveConn(conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(h.pingInterval * 2))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pingInterval * 2))
	})

	go func() {
		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := h.writeControl(conn, websocket.PingMessage); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			h.send(conn, newWSMessage("pong", "", nil))
		}
	}
}

// onEvent routes a bus event to campaign and account subscribers
func (h *WebSocketHub) onEvent(ctx context.Context, event interfaces.Event) error {
	if event.Type == interfaces.EventScrapingProgress && !h.allowProgress(event.CampaignID) {
		return nil
	}

	msg := newWSMessage(string(event.Type), event.CampaignID, event.Payload)

	if event.CampaignID != "" {
		h.broadcast(h.campaignClients, event.CampaignID, msg)
	}
	if event.AccountID != "" && accountFacing(event.Type) {
		h.broadcast(h.accountClients, event.AccountID, msg)
	}
	return nil
}

// accountFacing filters which event types reach the account channel
func accountFacing(eventType interfaces.EventType) bool {
	switch eventType {
	case interfaces.EventLimitReached, interfaces.EventCampaignPaused:
		return true
	default:
		return false
	}
}

// allowProgress rate-limits progress events per campaign
func (h *WebSocketHub) allowProgress(campaignID string) bool {
	if h.throttleInterval <= 0 {
		return true
	}

	h.mu.Lock()
	limiter, ok := h.throttlers[campaignID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(h.throttleInterval), 1)
		h.throttlers[campaignID] = limiter
	}
	h.mu.Unlock()

	return limiter.Allow()
}

func (h *WebSocketHub) broadcast(registry map[string]map[*websocket.Conn]bool, key string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal websocket message")
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(registry[key]))
	mutexes := make([]*sync.Mutex, 0, len(registry[key]))
	for conn := range registry[key] {
		conns = append(conns, conn)
		mutexes = append(mutexes, h.connMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range conns {
		mutex := mutexes[i]
		if mutex == nil {
			continue
		}
		mutex.Lock()
		conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			// Read loop handles cleanup once the connection errors.
			h.logger.Debug().Err(err).Str("key", key).Msg("WebSocket write failed")
		}
	}
}

func (h *WebSocketHub) send(conn *websocket.Conn, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	mutex := h.connMutex[conn]
	h.mu.RUnlock()
	if mutex == nil {
		return
	}

	mutex.Lock()
	defer mutex.Unlock()
	conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Debug().Err(err).Str("type", msg.Type).Msg("WebSocket send failed")
	}
}

func (h *WebSocketHub) writeControl(conn *websocket.Conn, messageType int) error {
	h.mu.RLock()
	mutex := h.connMutex[conn]
	h.mu.RUnlock()
	if mutex == nil {
		return websocket.ErrCloseSent
	}

	mutex.Lock()
	defer mutex.Unlock()
	return conn.WriteControl(messageType, nil, time.Now().Add(h.writeTimeout))
}
