package ws

import (
	"encoding/json"
	"fmt"
)

// Wire frame, shared by inbound and outbound directions.
type frame struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId,omitempty"`
	Body    string `json:"body,omitempty"`
	UserID  string `json:"userId,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	typeJoin    = "join-room"
	typeLeave   = "leave-room"
	typeMessage = "message"
	typeJoined  = "joined"
	typeLeft    = "left"
	typeError   = "error"
)

// Event is the closed set of inbound events. Frames are decoded once at
// the transport boundary; everything downstream switches exhaustively.
type Event interface{ isEvent() }

type JoinRoom struct{ RoomID string }

type LeaveRoom struct{ RoomID string }

type Message struct {
	RoomID string
	Body   string
}

func (JoinRoom) isEvent()  {}
func (LeaveRoom) isEvent() {}
func (Message) isEvent()   {}

// decodeEvent parses a raw frame into one of the three event kinds.
func decodeEvent(raw []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if f.RoomID == "" {
		return nil, fmt.Errorf("frame %q missing roomId", f.Type)
	}
	switch f.Type {
	case typeJoin:
		return JoinRoom{RoomID: f.RoomID}, nil
	case typeLeave:
		return LeaveRoom{RoomID: f.RoomID}, nil
	case typeMessage:
		return Message{RoomID: f.RoomID, Body: f.Body}, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", f.Type)
	}
}

func messageFrame(roomID, body, userID string) []byte {
	b, _ := json.Marshal(frame{Type: typeMessage, RoomID: roomID, Body: body, UserID: userID})
	return b
}

func ackFrame(typ, roomID string) []byte {
	b, _ := json.Marshal(frame{Type: typ, RoomID: roomID})
	return b
}

func errorFrame(msg string) []byte {
	b, _ := json.Marshal(frame{Type: typeError, Message: msg})
	return b
}
