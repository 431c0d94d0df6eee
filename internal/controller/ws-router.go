package controller

import (
	"github.com/sharetube/tuneverse/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdWSMw(), c.loggerWSMw())
	mux.SetValidator(c.validatePayload)
	mux.SetErrorHandler(c.handleWSError)

	wsrouter.Handle(mux, "ALIVE", c.handleAlive)
	wsrouter.Handle(mux, "SYNC_CLOCK", c.handleSyncClock)

	// room
	wsrouter.Handle(mux, "ROOM_CREATE", c.handleCreateRoom)
	wsrouter.Handle(mux, "ROOM_JOIN", c.handleJoinRoom)
	wsrouter.Handle(mux, "ROOM_LEAVE", c.handleLeaveRoom)
	wsrouter.Handle(mux, "JOIN_DECISION", c.handleJoinDecision)

	// player
	wsrouter.Handle(mux, "PLAYER_PLAY", c.handlePlay)
	wsrouter.Handle(mux, "PLAYER_PAUSE", c.handlePause)
	wsrouter.Handle(mux, "PLAYER_SEEK", c.handleSeek)
	wsrouter.Handle(mux, "PLAYER_SKIP", c.handleSkip)
	wsrouter.Handle(mux, "PLAYER_PREVIOUS", c.handlePrevious)
	wsrouter.Handle(mux, "PLAYER_ENDED", c.handleEnded)

	// queue
	wsrouter.Handle(mux, "QUEUE_ADD", c.handleQueueAdd)
	wsrouter.Handle(mux, "QUEUE_UPVOTE", c.handleQueueUpvote)
	wsrouter.Handle(mux, "QUEUE_REMOVE", c.handleQueueRemove)

	// chat
	wsrouter.Handle(mux, "CHAT_SEND", c.handleChatSend)
	wsrouter.Handle(mux, "EMOJI_REACTION", c.handleEmojiReaction)

	return mux
}
