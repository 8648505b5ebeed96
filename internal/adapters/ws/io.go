package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/parley-chat/parley/internal/core"
	"github.com/parley-chat/parley/internal/domain"
	"github.com/parley-chat/parley/internal/gateway"
)

func (ctl *Controller) writePump(ctx context.Context, c *Conn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "ws").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "ws").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, sess *core.Session, c *Conn) {
	defer func() {
		log.Info().Str("module", "ws").Str("sid", string(sess.ID)).Msg("readPump closing")
		ctl.gw.Disconnect(sess)
		c.Close()
		cancel()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "ws").Str("sid", string(sess.ID)).Msg("readPump read error")
				return
			}
			ctl.handleFrame(ctx, sess, c, data)
		}
	}
}

func (ctl *Controller) handleFrame(ctx context.Context, sess *core.Session, c *Conn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad json")
		_ = c.TrySend(gateway.EncodeErrorFrame("malformed frame"))
		return
	}

	switch env.Type {
	case "sendMessage":
		ctl.handleSendMessage(ctx, sess, c, data)
	case "ping":
		_ = c.TrySend(gateway.EncodePongFrame())
	default:
		log.Warn().Str("module", "ws").Str("type", env.Type).Msg("unknown frame")
		_ = c.TrySend(gateway.EncodeErrorFrame("unknown frame type: " + env.Type))
	}
}

func (ctl *Controller) handleSendMessage(ctx context.Context, sess *core.Session, c *Conn, data []byte) {
	var p struct {
		Type    string        `json:"type"`
		RoomID  domain.RoomID `json:"roomId"`
		Content string        `json:"content"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		_ = c.TrySend(gateway.EncodeErrorFrame("malformed sendMessage payload"))
		return
	}
	if !ctl.limiter.Allow(sess.UserID) {
		_ = c.TrySend(gateway.EncodeErrorFrame("rate limited"))
		return
	}

	err := ctl.gw.SendMessage(ctx, sess, p.RoomID, p.Content)
	switch {
	case err == nil:
	case errors.Is(err, gateway.ErrNotInRoom):
		// Rejected sends stay silent on the wire.
	case errors.Is(err, domain.ErrContentEmpty), errors.Is(err, domain.ErrContentTooLong):
		_ = c.TrySend(gateway.EncodeErrorFrame(err.Error()))
	default:
		log.Error().Err(err).Str("module", "ws").Str("sid", string(sess.ID)).Msg("delivery error")
		_ = c.TrySend(gateway.EncodeErrorFrame("delivery failed"))
	}
}
