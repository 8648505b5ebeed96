package core

// Frame is a raw serialized payload pushed to a client connection.
type Frame []byte

type SessionID string

// Sender abstracts the transport endpoint of one live connection.
// Owned by the adapter; the adapter must Close() it.
type Sender interface {
	TrySend(Frame) error
	Close()
}

// DeliveryResult reports fan-out stats and backpressure victims.
type DeliveryResult struct {
	SentTo  int
	Dropped []*Session
}
