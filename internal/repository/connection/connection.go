package connection

import "errors"

var (
	ErrAlreadyExists = errors.New("connection already exists")
	ErrNotFound      = errors.New("connection not found")
)

// Conn is the outbound half of a client transport.
type Conn interface {
	Id() string
	Send(msg []byte) error
	Close() error
}

// Session binds a connection to a verified identity and to at most one
// room, either as a member or as a pending requester.
type Session struct {
	ConnId        string
	UserId        string
	Username      string
	Verified      bool
	RoomId        string
	PendingRoomId string
}
