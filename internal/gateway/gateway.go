package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/terminal-bench/walletguard/internal/auth"
	"github.com/terminal-bench/walletguard/internal/policy"
	"github.com/terminal-bench/walletguard/internal/wallet"
	"github.com/terminal-bench/walletguard/pkg/messaging"
	"github.com/terminal-bench/walletguard/shared/events"
)

// Gateway is the HTTP front door: it authenticates signers, forwards
// authorization requests to the wallet service, and streams wallet events to
// websocket subscribers.
type Gateway struct {
	router  *gin.Engine
	auth    *auth.Service
	wallets *wallet.Service
	bus     *messaging.Client

	wsClients   map[uuid.UUID][]*WSClient // walletID -> subscribers
	wsMu        sync.RWMutex
	rateLimiter *RateLimiter
	log         zerolog.Logger
}

// WSClient is one websocket subscriber.
type WSClient struct {
	ID       uuid.UUID
	WalletID uuid.UUID
	Conn     *websocket.Conn
	Send     chan []byte
	Done     chan struct{}
}

// RateLimiter implements per-key sliding-window rate limiting.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

// Allow records a request for key and reports whether it is within limits.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	kept := r.requests[key][:0]
	for _, t := range r.requests[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= r.limit {
		r.requests[key] = kept
		return false
	}
	r.requests[key] = append(kept, now)
	return true
}

// Config holds gateway configuration.
type Config struct {
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// NewGateway wires the routes.
func NewGateway(cfg Config, authSvc *auth.Service, wallets *wallet.Service, bus *messaging.Client, log zerolog.Logger) *Gateway {
	g := &Gateway{
		router:    gin.New(),
		auth:      authSvc,
		wallets:   wallets,
		bus:       bus,
		wsClients: make(map[uuid.UUID][]*WSClient),
		rateLimiter: &RateLimiter{
			requests: make(map[string][]time.Time),
			limit:    cfg.RateLimitMax,
			window:   cfg.RateLimitWindow,
		},
		log: log,
	}

	g.router.Use(gin.Recovery())
	g.setupRoutes()
	return g
}

func (g *Gateway) setupRoutes() {
	g.router.Use(g.rateLimitMiddleware())
	g.router.Use(g.tracingMiddleware())

	g.router.GET("/health", g.healthCheck)

	v1 := g.router.Group("/api/v1")
	{
		v1.POST("/auth/token", g.issueToken)

		v1.POST("/wallets", g.createWallet)
		v1.GET("/wallets/:id", g.authMiddleware(), g.getWallet)

		v1.POST("/wallets/:id/payments", g.authMiddleware(), g.authorizePayment)
		v1.POST("/wallets/:id/payments/check", g.authMiddleware(), g.checkPayment)

		v1.POST("/wallets/:id/payees", g.authMiddleware(), g.addPayee)
		v1.PUT("/wallets/:id/payees/:addr", g.authMiddleware(), g.updatePayee)
		v1.DELETE("/wallets/:id/payees/:addr", g.authMiddleware(), g.removePayee)
		v1.POST("/wallets/:id/payees/pending", g.authMiddleware(), g.addPendingPayee)
		v1.POST("/wallets/:id/payees/:addr/confirm", g.authMiddleware(), g.confirmPendingPayee)
		v1.DELETE("/wallets/:id/payees/:addr/pending", g.authMiddleware(), g.cancelPendingPayee)

		v1.POST("/wallets/:id/managers", g.authMiddleware(), g.addManager)
		v1.PUT("/wallets/:id/managers/:addr", g.authMiddleware(), g.updateManager)
		v1.DELETE("/wallets/:id/managers/:addr", g.authMiddleware(), g.removeManager)
		v1.PUT("/wallets/:id/settings/managers", g.authMiddleware(), g.setGlobalManagerSettings)
		v1.PUT("/wallets/:id/settings/payees", g.authMiddleware(), g.setGlobalPayeeSettings)
		v1.POST("/wallets/:id/ownership", g.authMiddleware(), g.transferOwnership)

		v1.POST("/wallets/:id/whitelist/pending", g.authMiddleware(), g.addPendingWhitelist)
		v1.POST("/wallets/:id/whitelist/:addr/confirm", g.authMiddleware(), g.confirmWhitelist)
		v1.DELETE("/wallets/:id/whitelist/:addr/pending", g.authMiddleware(), g.cancelPendingWhitelist)
		v1.DELETE("/wallets/:id/whitelist/:addr", g.authMiddleware(), g.removeWhitelist)

		v1.GET("/ws", g.authMiddleware(), g.handleWebSocket)
	}
}

// Start subscribes to wallet events for the websocket relay and runs the
// HTTP server.
func (g *Gateway) Start(addr string) error {
	if g.bus != nil {
		subjects := []string{
			events.PaymentAuthorized, events.PaymentRejected,
			events.PayeeAdded, events.PayeeUpdated, events.PayeeRemoved,
			events.PayeePendingAdded, events.PayeePendingConfirmed, events.PayeePendingCancelled,
			events.ManagerAdded, events.ManagerUpdated, events.ManagerRemoved,
			events.WhitelistPendingAdded, events.WhitelistConfirmed,
			events.WhitelistCancelled, events.WhitelistRemoved,
			events.AlertTriggered,
		}
		for _, subject := range subjects {
			if err := g.bus.Subscribe(subject, g.relayEvent); err != nil {
				return err
			}
		}
	}
	return g.router.Run(addr)
}

// Middleware

func (g *Gateway) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		claims, err := g.auth.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}

func (g *Gateway) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.rateLimiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (g *Gateway) tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		c.Set("correlation_id", correlationID)
		c.Header("X-Correlation-ID", correlationID)
		c.Next()
	}
}

func (g *Gateway) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// claimsFrom extracts the verified claims plus the caller identity.
func claimsFrom(c *gin.Context) (*auth.Claims, policy.Caller) {
	claims := c.MustGet("claims").(*auth.Claims)
	return claims, claims.Caller()
}

// walletIDParam parses the :id route parameter.
func walletIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet ID"})
		return uuid.Nil, false
	}
	return id, true
}

// statusFor maps rejection reasons to HTTP statuses.
func statusFor(err error) int {
	switch policy.ReasonOf(err) {
	case policy.ReasonPermissionDenied:
		return http.StatusForbidden
	case policy.ReasonNotFound:
		return http.StatusNotFound
	case policy.ReasonAlreadyExists:
		return http.StatusConflict
	case policy.ReasonInvalidConfig:
		return http.StatusBadRequest
	case policy.ReasonTimelockNotReached, policy.ReasonOwnerMismatch:
		return http.StatusConflict
	case policy.ReasonNone:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

func renderError(c *gin.Context, err error) {
	reason := policy.ReasonOf(err)
	body := gin.H{"error": err.Error()}
	if reason != policy.ReasonNone {
		body["reason"] = string(reason)
	}
	c.JSON(statusFor(err), body)
}

// WebSocket handling

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (g *Gateway) handleWebSocket(c *gin.Context) {
	claims, _ := claimsFrom(c)
	walletID, err := claims.WalletUUID()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet ID in token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := &WSClient{
		ID:       uuid.New(),
		WalletID: walletID,
		Conn:     conn,
		Send:     make(chan []byte, 64),
		Done:     make(chan struct{}),
	}

	g.wsMu.Lock()
	g.wsClients[walletID] = append(g.wsClients[walletID], client)
	g.wsMu.Unlock()

	go g.writePump(client)
	go g.readPump(client)
}

func (g *Gateway) writePump(client *WSClient) {
	defer client.Conn.Close()
	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				g.dropClient(client)
				return
			}
		case <-client.Done:
			return
		}
	}
}

func (g *Gateway) readPump(client *WSClient) {
	defer g.dropClient(client)
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *Gateway) dropClient(client *WSClient) {
	g.wsMu.Lock()
	defer g.wsMu.Unlock()

	subs := g.wsClients[client.WalletID]
	for i, c := range subs {
		if c.ID == client.ID {
			g.wsClients[client.WalletID] = append(subs[:i], subs[i+1:]...)
			close(c.Done)
			break
		}
	}
}

// relayEvent forwards a bus event to the owning wallet's subscribers.
func (g *Gateway) relayEvent(msg *nats.Msg) {
	var env messaging.Event
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		g.log.Warn().Err(err).Str("subject", msg.Subject).Msg("bad event envelope")
		return
	}

	g.wsMu.RLock()
	subs := g.wsClients[env.WalletID]
	g.wsMu.RUnlock()

	for _, client := range subs {
		select {
		case client.Send <- msg.Data:
		default:
			// Slow consumer; drop the message rather than block the relay.
		}
	}
}
