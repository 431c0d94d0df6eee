package domain

type ChatMessage struct {
	Id        string  `json:"id"`
	MemberId  string  `json:"member_id"`
	Username  string  `json:"username"`
	AvatarUrl *string `json:"avatar_url"`
	Text      string  `json:"text"`
	Timestamp int64   `json:"timestamp"`
	IsSystem  bool    `json:"is_system"`
}

// AppendMessage keeps at most limit latest messages.
func (r *Room) AppendMessage(msg ChatMessage, limit int) {
	r.Messages = append(r.Messages, msg)
	if limit > 0 && len(r.Messages) > limit {
		r.Messages = append([]ChatMessage(nil), r.Messages[len(r.Messages)-limit:]...)
	}
}
