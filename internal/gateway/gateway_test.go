package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/parley-chat/parley/internal/bus"
	"github.com/parley-chat/parley/internal/core"
	"github.com/parley-chat/parley/internal/domain"
)

type fakeIdentity struct {
	tokens map[string]string
}

func (f fakeIdentity) Assert(token string) (string, error) {
	id, ok := f.tokens[token]
	if !ok {
		return "", errors.New("invalid token")
	}
	return id, nil
}

type fakeDirectory struct {
	users   map[string]domain.UserID
	rooms   map[domain.UserID][]domain.RoomID
	failing bool
}

func (f *fakeDirectory) GetUserIDForIdentity(_ context.Context, identity string) (domain.UserID, error) {
	id, ok := f.users[identity]
	if !ok {
		return "", domain.ErrUserNotFound
	}
	return id, nil
}

func (f *fakeDirectory) GetRoomsForUser(_ context.Context, userID domain.UserID) ([]domain.RoomID, error) {
	if f.failing {
		return nil, errors.New("directory unavailable")
	}
	return f.rooms[userID], nil
}

type fakeProducer struct {
	events []bus.Event
	err    error
}

func (f *fakeProducer) Publish(_ context.Context, e bus.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

type fakeSender struct {
	frames []core.Frame
	closed bool
}

func (f *fakeSender) TrySend(fr core.Frame) error {
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeSender) Close() { f.closed = true }

func (f *fakeSender) lastMessage(t *testing.T) (typ string, roomID, content string) {
	t.Helper()
	if len(f.frames) == 0 {
		t.Fatal("no frames received")
	}
	var frame struct {
		Type    string `json:"type"`
		RoomID  string `json:"roomId"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(f.frames[len(f.frames)-1], &frame); err != nil {
		t.Fatalf("bad frame: %v", err)
	}
	return frame.Type, frame.RoomID, frame.Content
}

func newTestGateway(producer *fakeProducer) (*Gateway, *core.Hub, *fakeDirectory) {
	dir := &fakeDirectory{
		users: map[string]domain.UserID{
			"alice@example.com": "u-alice",
			"bob@example.com":   "u-bob",
		},
		rooms: map[domain.UserID][]domain.RoomID{
			"u-alice": {"r1", "r2"},
			"u-bob":   {"r1"},
		},
	}
	idm := fakeIdentity{tokens: map[string]string{
		"tok-alice": "alice@example.com",
		"tok-bob":   "bob@example.com",
	}}
	hub := core.NewHub()
	return New("inst-A", hub, idm, dir, producer), hub, dir
}

func TestConnectSubscribesExactMembership(t *testing.T) {
	gw, hub, _ := newTestGateway(&fakeProducer{})

	sess, err := gw.Connect(context.Background(), "tok-alice", &fakeSender{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if sess.UserID != "u-alice" {
		t.Errorf("user = %s, want u-alice", sess.UserID)
	}
	for _, r := range []domain.RoomID{"r1", "r2"} {
		if !sess.InRoom(r) {
			t.Errorf("session missing room %s", r)
		}
		if hub.GroupSize(r) != 1 {
			t.Errorf("group %s size = %d, want 1", r, hub.GroupSize(r))
		}
	}
	if len(sess.Rooms()) != 2 {
		t.Errorf("cached rooms = %d, want exactly 2", len(sess.Rooms()))
	}
}

func TestConnectRejectsBadToken(t *testing.T) {
	gw, hub, _ := newTestGateway(&fakeProducer{})

	_, err := gw.Connect(context.Background(), "tok-mallory", &fakeSender{})
	if !errors.Is(err, ErrIdentity) {
		t.Fatalf("err = %v, want ErrIdentity", err)
	}
	if hub.GroupSize("r1") != 0 {
		t.Error("refused connection left a subscription behind")
	}
}

func TestConnectFatalOnDirectoryFailure(t *testing.T) {
	producer := &fakeProducer{}
	gw, _, dir := newTestGateway(producer)
	dir.failing = true

	if _, err := gw.Connect(context.Background(), "tok-alice", &fakeSender{}); err == nil {
		t.Fatal("expected error when membership load fails")
	}
}

func TestSendMessageOutsideMembershipHasNoEffect(t *testing.T) {
	producer := &fakeProducer{}
	gw, _, _ := newTestGateway(producer)

	bobSender := &fakeSender{}
	bobSess, err := gw.Connect(context.Background(), "tok-bob", bobSender)
	if err != nil {
		t.Fatal(err)
	}
	aliceSender := &fakeSender{}
	if _, err := gw.Connect(context.Background(), "tok-alice", aliceSender); err != nil {
		t.Fatal(err)
	}
	aliceFramesBefore := len(aliceSender.frames)

	// Bob belongs to r1 only; r2 must reject.
	err = gw.SendMessage(context.Background(), bobSess, "r2", "hi")
	if !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("err = %v, want ErrNotInRoom", err)
	}
	if len(producer.events) != 0 {
		t.Error("rejected send reached the bus")
	}
	if len(aliceSender.frames) != aliceFramesBefore {
		t.Error("rejected send was delivered locally")
	}
}

func TestSendMessageFansOutAndPublishes(t *testing.T) {
	producer := &fakeProducer{}
	gw, _, _ := newTestGateway(producer)

	aliceSender := &fakeSender{}
	aliceSess, _ := gw.Connect(context.Background(), "tok-alice", aliceSender)
	bobSender := &fakeSender{}
	if _, err := gw.Connect(context.Background(), "tok-bob", bobSender); err != nil {
		t.Fatal(err)
	}
	aliceFramesBefore := len(aliceSender.frames)

	if err := gw.SendMessage(context.Background(), aliceSess, "r1", "hello r1"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	typ, roomID, content := bobSender.lastMessage(t)
	if typ != FrameReceiveMessage || roomID != "r1" || content != "hello r1" {
		t.Errorf("bob got %s %s %q", typ, roomID, content)
	}
	if len(aliceSender.frames) != aliceFramesBefore {
		t.Error("sender received its own message")
	}
	if len(producer.events) != 1 {
		t.Fatalf("bus events = %d, want 1", len(producer.events))
	}
	e := producer.events[0]
	if e.Kind != bus.KindMessage || e.Origin != "inst-A" || e.Message.RoomID != "r1" || e.Message.SenderID != "u-alice" {
		t.Errorf("published event = %+v", e)
	}
}

func TestSendMessagePublishFailureStillDeliversLocally(t *testing.T) {
	producer := &fakeProducer{err: errors.New("acks failed")}
	gw, _, _ := newTestGateway(producer)

	aliceSess, _ := gw.Connect(context.Background(), "tok-alice", &fakeSender{})
	bobSender := &fakeSender{}
	if _, err := gw.Connect(context.Background(), "tok-bob", bobSender); err != nil {
		t.Fatal(err)
	}

	err := gw.SendMessage(context.Background(), aliceSess, "r1", "best effort")
	if err == nil {
		t.Fatal("expected delivery error when publish fails")
	}
	typ, _, content := bobSender.lastMessage(t)
	if typ != FrameReceiveMessage || content != "best effort" {
		t.Error("local fan-out rolled back on publish failure")
	}
}

func TestBusMessageFromOtherInstanceDelivered(t *testing.T) {
	gw, _, _ := newTestGateway(&fakeProducer{})
	bobSender := &fakeSender{}
	if _, err := gw.Connect(context.Background(), "tok-bob", bobSender); err != nil {
		t.Fatal(err)
	}

	gw.HandleBusEvent(context.Background(), bus.Event{
		Kind:    bus.KindMessage,
		Origin:  "inst-B",
		Message: &domain.ChatMessage{SenderID: "u-carol", RoomID: "r1", Content: "from afar"},
	})

	typ, roomID, content := bobSender.lastMessage(t)
	if typ != FrameReceiveMessage || roomID != "r1" || content != "from afar" {
		t.Errorf("bob got %s %s %q", typ, roomID, content)
	}
}

func TestBusMessageFromOwnInstanceSkipped(t *testing.T) {
	gw, _, _ := newTestGateway(&fakeProducer{})
	bobSender := &fakeSender{}
	if _, err := gw.Connect(context.Background(), "tok-bob", bobSender); err != nil {
		t.Fatal(err)
	}
	before := len(bobSender.frames)

	gw.HandleBusEvent(context.Background(), bus.Event{
		Kind:    bus.KindMessage,
		Origin:  "inst-A",
		Message: &domain.ChatMessage{SenderID: "u-alice", RoomID: "r1", Content: "dup"},
	})

	if len(bobSender.frames) != before {
		t.Error("own-origin event re-delivered locally")
	}
}

func TestMembershipEventsPatchLiveSessions(t *testing.T) {
	gw, hub, _ := newTestGateway(&fakeProducer{})
	bobSess, err := gw.Connect(context.Background(), "tok-bob", &fakeSender{})
	if err != nil {
		t.Fatal(err)
	}

	gw.HandleBusEvent(context.Background(), bus.Event{
		Kind:        bus.KindMemberAdded,
		MemberAdded: &bus.MemberAdded{RoomID: "r9", UserID: "u-bob", Role: domain.RoleRegular},
	})
	if !bobSess.InRoom("r9") {
		t.Error("member_added did not patch the live session")
	}
	if hub.GroupSize("r9") != 1 {
		t.Error("member_added did not subscribe the session")
	}

	gw.HandleBusEvent(context.Background(), bus.Event{
		Kind:          bus.KindMemberRemoved,
		MemberRemoved: &bus.MemberRemoved{RoomID: "r1", UserID: "u-bob"},
	})
	if bobSess.InRoom("r1") {
		t.Error("member_removed did not patch the live session")
	}
}

func TestRoomDeletedEvictsAndNotifies(t *testing.T) {
	gw, hub, _ := newTestGateway(&fakeProducer{})
	bobSender := &fakeSender{}
	bobSess, err := gw.Connect(context.Background(), "tok-bob", bobSender)
	if err != nil {
		t.Fatal(err)
	}

	gw.HandleBusEvent(context.Background(), bus.Event{
		Kind:        bus.KindRoomDeleted,
		RoomDeleted: &bus.RoomDeleted{RoomID: "r1"},
	})

	if bobSess.InRoom("r1") || hub.GroupSize("r1") != 0 {
		t.Error("room_deleted left subscriptions behind")
	}
	typ, _, _ := bobSender.lastMessage(t)
	if typ != FrameReceiveError {
		t.Errorf("last frame = %s, want %s", typ, FrameReceiveError)
	}
}
