// Package ws adapts the client-facing realtime protocol onto websocket
// transport: one long-lived bidirectional connection per client, bearer
// token carried out-of-band at establishment.
package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/parley-chat/parley/internal/core"
	"github.com/parley-chat/parley/internal/gateway"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	gw        *gateway.Gateway
	limiter   *RateLimiter
	readLimit int64
}

func NewController(gw *gateway.Gateway, limiter *RateLimiter, readLimit int64) *Controller {
	return &Controller{gw: gw, limiter: limiter, readLimit: readLimit}
}

// Conn owns the websocket and the buffered outbound queue. TrySend never
// blocks; a full queue reports backpressure and the gateway decides.
type Conn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// bearerToken reads the credential from the access_token query parameter or
// the Authorization header.
func bearerToken(c *gin.Context) string {
	if t := c.Query("access_token"); t != "" {
		return t
	}
	h := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return after
	}
	return ""
}

// HandleChat upgrades the connection and takes it through the gateway's
// connect step. Identity or directory failure tears the socket down before
// any pump starts.
func (ctl *Controller) HandleChat(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade")
		return
	}
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}

	conn := &Conn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	sess, err := ctl.gw.Connect(c.Request.Context(), bearerToken(c), conn)
	if err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("connection refused")
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"))
		conn.Close()
		return
	}

	log.Info().Str("module", "ws").Str("sid", string(sess.ID)).Msg("new chat connection")
	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sess, conn)

	_ = conn.TrySend(gateway.EncodeConnectedFrame())
}
