package broadcast

// Server to client message types.
const (
	TypeRoomCreated         = "ROOM_CREATED"
	TypeRoomJoined          = "ROOM_JOINED"
	TypeRoomUpdate          = "ROOM_UPDATE"
	TypeRoomLeft            = "ROOM_LEFT"
	TypeError               = "ERROR"
	TypeJoinPending         = "JOIN_PENDING"
	TypeJoinApproved        = "JOIN_APPROVED"
	TypeJoinRejected        = "JOIN_REJECTED"
	TypeJoinRequestReceived = "JOIN_REQUEST_RECEIVED"
	TypeSyncClockResponse   = "SYNC_CLOCK_RESPONSE"
	TypeChatReceive         = "CHAT_RECEIVE"
	TypeEmojiReaction       = "EMOJI_REACTION"
)
