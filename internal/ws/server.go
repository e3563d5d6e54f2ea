package ws

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"tablefront-pos-service/internal/auth"
	"tablefront-pos-service/internal/config"
	"tablefront-pos-service/internal/http/handlers"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config

	kitchenRealtime *kitchenRealtime
}

func New(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config) *Server {
	srv := &Server{DB: db, Logger: logger, Config: cfg}
	srv.kitchenRealtime = newKitchenRealtime(db, logger, cfg.WSKitchenPollInterval)
	return srv
}

type wsRealtimeClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsRealtimeClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(value)
}

func (c *wsRealtimeClient) writePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
}

// kitchenRealtime pushes ticket snapshots to every kitchen display of a
// restaurant. Every ticket mutation bumps the restaurant's ticket_version
// in its own transaction, so the loop only has to watch one integer per
// subscribed tenant and refetch when it moves.
type kitchenRealtime struct {
	db           *pgxpool.Pool
	logger       *zap.Logger
	pollInterval time.Duration

	started sync.Once
	mu      sync.RWMutex
	subs    map[int64]map[*wsRealtimeClient]struct{}
	seen    map[int64]int64
}

func newKitchenRealtime(db *pgxpool.Pool, logger *zap.Logger, pollInterval time.Duration) *kitchenRealtime {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &kitchenRealtime{
		db:           db,
		logger:       logger,
		pollInterval: pollInterval,
		subs:         make(map[int64]map[*wsRealtimeClient]struct{}),
		seen:         make(map[int64]int64),
	}
}

func (kr *kitchenRealtime) ensureStarted() {
	kr.started.Do(func() {
		go kr.pollLoop(context.Background())
	})
}

func (kr *kitchenRealtime) subscribe(restaurantID int64, client *wsRealtimeClient) (unsubscribe func()) {
	kr.mu.Lock()
	if kr.subs[restaurantID] == nil {
		kr.subs[restaurantID] = make(map[*wsRealtimeClient]struct{})
	}
	kr.subs[restaurantID][client] = struct{}{}
	kr.mu.Unlock()

	return func() {
		kr.mu.Lock()
		clients := kr.subs[restaurantID]
		delete(clients, client)
		if len(clients) == 0 {
			delete(kr.subs, restaurantID)
			delete(kr.seen, restaurantID)
		}
		kr.mu.Unlock()
	}
}

func (kr *kitchenRealtime) broadcast(restaurantID int64, message any) {
	kr.mu.RLock()
	clientsMap := kr.subs[restaurantID]
	clients := make([]*wsRealtimeClient, 0, len(clientsMap))
	for c := range clientsMap {
		clients = append(clients, c)
	}
	kr.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	for _, c := range clients {
		if err := c.writeJSON(message); err != nil {
			_ = c.conn.Close()
			kr.mu.Lock()
			if current := kr.subs[restaurantID]; current != nil {
				delete(current, c)
				if len(current) == 0 {
					delete(kr.subs, restaurantID)
					delete(kr.seen, restaurantID)
				}
			}
			kr.mu.Unlock()
		}
	}
}

func (kr *kitchenRealtime) subscribedRestaurants() []int64 {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	ids := make([]int64, 0, len(kr.subs))
	for id := range kr.subs {
		ids = append(ids, id)
	}
	return ids
}

func (kr *kitchenRealtime) lastSeenVersion(restaurantID int64) int64 {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	return kr.seen[restaurantID]
}

func (kr *kitchenRealtime) markSeenVersion(restaurantID, version int64) {
	kr.mu.Lock()
	if _, ok := kr.subs[restaurantID]; ok {
		kr.seen[restaurantID] = version
	}
	kr.mu.Unlock()
}

func (kr *kitchenRealtime) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(kr.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, restaurantID := range kr.subscribedRestaurants() {
			var version int64
			err := kr.db.QueryRow(ctx,
				`select ticket_version from restaurants where id = $1`,
				restaurantID,
			).Scan(&version)
			if err != nil {
				if kr.logger != nil {
					kr.logger.Warn("ticket version poll failed", zap.Int64("restaurantId", restaurantID), zap.Error(err))
				}
				continue
			}
			if version == kr.lastSeenVersion(restaurantID) {
				continue
			}

			tickets, version, err := handlers.LoadKitchenTickets(ctx, kr.db, restaurantID)
			if err != nil {
				if kr.logger != nil {
					kr.logger.Warn("ticket snapshot fetch failed", zap.Int64("restaurantId", restaurantID), zap.Error(err))
				}
				continue
			}

			kr.markSeenVersion(restaurantID, version)
			kr.broadcast(restaurantID, map[string]any{
				"type":    "tickets",
				"version": version,
				"tickets": tickets,
			})
		}
	}
}

// KitchenWS streams the active ticket board to kitchen displays. Clients
// authenticate with the same access token as the REST API, passed as a
// query parameter because browsers cannot set websocket headers.
func (s *Server) KitchenWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	claims, err := auth.VerifyAccessToken(r.URL.Query().Get("token"), s.Config.JWTSecret)
	if err != nil || claims.RestaurantID == nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}
	if claims.Role != auth.RoleOwner && claims.Role != auth.RoleManager && claims.Role != auth.RoleChef && claims.Role != auth.RoleWaiter {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}

	restaurantID, err := strconv.ParseInt(*claims.RestaurantID, 10, 64)
	if err != nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}

	sessionID, err := strconv.ParseInt(claims.SessionID, 10, 64)
	if err != nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}

	// The session row is the revocation point; a revoked token must not
	// keep a live stream open.
	var sessionOK bool
	err = s.DB.QueryRow(r.Context(), `
		select exists (
			select 1 from user_sessions
			where id = $1 and status = 'ACTIVE' and expires_at > now()
		)
	`, sessionID).Scan(&sessionOK)
	if err != nil || !sessionOK {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}

	s.kitchenRealtime.ensureStarted()
	ctx := r.Context()
	client := &wsRealtimeClient{conn: conn}
	unsubscribe := s.kitchenRealtime.subscribe(restaurantID, client)
	defer unsubscribe()

	// Initial snapshot so the display renders without waiting for a change.
	if tickets, version, fetchErr := handlers.LoadKitchenTickets(ctx, s.DB, restaurantID); fetchErr == nil {
		s.kitchenRealtime.markSeenVersion(restaurantID, version)
		_ = client.writeJSON(map[string]any{
			"type":    "tickets",
			"version": version,
			"tickets": tickets,
		})
	}

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(s.Config.WSHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := client.writePing(); err != nil {
				return
			}
		}
	}
}
