package bus

import (
	"errors"
	"testing"
	"time"

	"github.com/parley-chat/parley/internal/domain"
)

func TestEncodeDecodeMessageEvent(t *testing.T) {
	sent := time.Date(2026, 2, 3, 10, 30, 0, 0, time.UTC)
	in := Event{
		Kind:   KindMessage,
		Origin: "inst-1",
		Message: &domain.ChatMessage{
			SenderID: "u1",
			RoomID:   "r1",
			Content:  "hello",
			Time:     sent,
		},
	}

	key, value, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(key) != "r1" {
		t.Errorf("key = %q, want room id", key)
	}

	out, err := Decode(value)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Kind != KindMessage || out.Origin != "inst-1" {
		t.Errorf("header = %s/%s", out.Kind, out.Origin)
	}
	if out.Message == nil {
		t.Fatal("message payload missing")
	}
	if *out.Message != *in.Message {
		t.Errorf("message = %+v, want %+v", *out.Message, *in.Message)
	}
}

func TestEncodeDecodeLifecycleEvents(t *testing.T) {
	events := []Event{
		{Kind: KindRoomCreated, RoomCreated: &RoomCreated{RoomID: "r1", UserID: "u1", Role: domain.RoleAdmin}},
		{Kind: KindRoomDeleted, RoomDeleted: &RoomDeleted{RoomID: "r1"}},
		{Kind: KindMemberAdded, MemberAdded: &MemberAdded{RoomID: "r1", UserID: "u2", Role: domain.RoleRegular}},
		{Kind: KindMemberRemoved, MemberRemoved: &MemberRemoved{RoomID: "r1", UserID: "u2"}},
	}
	for _, in := range events {
		key, value, err := Encode(in)
		if err != nil {
			t.Fatalf("%s: Encode: %v", in.Kind, err)
		}
		if string(key) != "r1" {
			t.Errorf("%s: key = %q", in.Kind, key)
		}
		out, err := Decode(value)
		if err != nil {
			t.Fatalf("%s: Decode: %v", in.Kind, err)
		}
		if out.Kind != in.Kind || out.RoomID() != "r1" {
			t.Errorf("%s: decoded %s for room %s", in.Kind, out.Kind, out.RoomID())
		}
	}
}

func TestEncodeRejectsUnknownKind(t *testing.T) {
	_, _, err := Encode(Event{Kind: "vanished"})
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("err = %v, want ErrUnknownKind", err)
	}
}

func TestEncodeRejectsMissingPayload(t *testing.T) {
	_, _, err := Encode(Event{Kind: KindRoomDeleted})
	if !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("err = %v, want ErrEmptyPayload", err)
	}
}

func TestDecodeRejectsMalformedRecords(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  error
	}{
		{"unknown kind", `{"kind":"vanished","payload":{}}`, ErrUnknownKind},
		{"missing payload", `{"kind":"room_deleted"}`, ErrEmptyPayload},
		{"payload mismatch", `{"kind":"message","payload":"not-an-object"}`, ErrPayloadForKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.value))
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := Decode([]byte("{not json")); err == nil {
		t.Error("garbage record decoded without error")
	}
}
