package store

import "time"

type User struct {
	ID        string
	Username  string
	Name      string
	CreatedAt time.Time
}

type Room struct {
	ID        string
	Slug      string
	HostID    string
	CreatedAt time.Time
}

type Chat struct {
	ID        string
	RoomID    string
	UserID    string
	Message   string
	CreatedAt time.Time
}

// ChatRecord is one pending durable write handed to InsertChats.
type ChatRecord struct {
	RoomID  string
	UserID  string
	Message string
}
