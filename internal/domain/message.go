// Package domain contains the wire types of the chat protocol, just meta-data.
package domain

import "fmt"

const MaxUsernameLen = 36

// RoomID identifies a room. Opaque, caller-supplied, case-sensitive.
type RoomID string

// MessageType discriminates the JSON envelope on the wire.
type MessageType string

const (
	TypeJoinRoom     MessageType = "JOIN_ROOM"
	TypeLeaveRoom    MessageType = "LEAVE_ROOM"
	TypeChatMessage  MessageType = "CHAT_MESSAGE"
	TypeImageMessage MessageType = "IMAGE_MESSAGE"
	TypeUserList     MessageType = "USER_LIST"
	TypeError        MessageType = "ERROR"
)

// Message is the single envelope exchanged over the socket in both
// directions. Which fields are meaningful depends on Type; the rest stay
// empty and are omitted from the JSON. System is true for server-originated
// notifications (join/leave/user-list/error) and false for user content.
type Message struct {
	System    bool        `json:"system"`
	Type      MessageType `json:"type"`
	RoomID    RoomID      `json:"roomId"`
	Username  string      `json:"username,omitempty"`
	Content   string      `json:"content,omitempty"`
	ImageData string      `json:"imageData,omitempty"`
	Caption   string      `json:"caption,omitempty"`
	Users     []string    `json:"users,omitempty"`
	Timestamp int64       `json:"timestamp,omitempty"`
}

// JoinNotice announces a successful join to the room.
func JoinNotice(roomID RoomID, username string) Message {
	return Message{
		System:   true,
		Type:     TypeJoinRoom,
		RoomID:   roomID,
		Username: username,
		Content:  fmt.Sprintf("@%s joined the room", username),
	}
}

// LeaveNotice announces a departure to the remaining members.
func LeaveNotice(roomID RoomID, username string) Message {
	return Message{
		System:   true,
		Type:     TypeLeaveRoom,
		RoomID:   roomID,
		Username: username,
		Content:  fmt.Sprintf("@%s left the room", username),
	}
}

// UserListMessage carries the current roster of a room.
func UserListMessage(roomID RoomID, users []string) Message {
	return Message{
		System: true,
		Type:   TypeUserList,
		RoomID: roomID,
		Users:  users,
	}
}

// ErrorMessage is sent to a single connection, never broadcast.
func ErrorMessage(roomID RoomID, username, content string) Message {
	return Message{
		System:   true,
		Type:     TypeError,
		RoomID:   roomID,
		Username: username,
		Content:  content,
	}
}
