package gateway

import (
	"encoding/json"
	"time"

	"github.com/parley-chat/parley/internal/core"
	"github.com/parley-chat/parley/internal/domain"
)

// Server-to-client frame types of the realtime protocol.
const (
	FrameReceiveMessage = "receiveMessage"
	FrameReceiveError   = "receiveError"
	FrameConnected      = "connected"
	FramePong           = "pong"
)

type messageFrame struct {
	Type     string        `json:"type"`
	RoomID   domain.RoomID `json:"roomId"`
	SenderID domain.UserID `json:"senderId"`
	Content  string        `json:"content"`
	Time     time.Time     `json:"time"`
}

type errorFrame struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type bareFrame struct {
	Type string `json:"type"`
}

func EncodeMessageFrame(m domain.ChatMessage) core.Frame {
	b, _ := json.Marshal(messageFrame{
		Type:     FrameReceiveMessage,
		RoomID:   m.RoomID,
		SenderID: m.SenderID,
		Content:  m.Content,
		Time:     m.Time,
	})
	return b
}

func EncodeErrorFrame(reason string) core.Frame {
	b, _ := json.Marshal(errorFrame{Type: FrameReceiveError, Reason: reason})
	return b
}

func EncodeConnectedFrame() core.Frame {
	b, _ := json.Marshal(bareFrame{Type: FrameConnected})
	return b
}

func EncodePongFrame() core.Frame {
	b, _ := json.Marshal(bareFrame{Type: FramePong})
	return b
}
