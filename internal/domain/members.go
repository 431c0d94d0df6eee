package domain

type Member struct {
	Id        string  `json:"id"`
	UserId    string  `json:"user_id"`
	Username  string  `json:"username"`
	Color     string  `json:"color"`
	AvatarUrl *string `json:"avatar_url"`
	JoinedAt  int64   `json:"joined_at"`
	// Verified members carry a UserId issued by the identity provider.
	Verified bool `json:"verified"`
}

func (r *Room) MemberIndex(memberId string) int {
	for i := range r.Members {
		if r.Members[i].Id == memberId {
			return i
		}
	}

	return -1
}

func (r *Room) HasMember(memberId string) bool {
	return r.MemberIndex(memberId) >= 0
}

func (r *Room) GetMember(memberId string) (Member, bool) {
	if i := r.MemberIndex(memberId); i >= 0 {
		return r.Members[i], true
	}

	return Member{}, false
}

// AddMember appends m in join order. Adding an id that is already present
// is a no-op and reports false.
func (r *Room) AddMember(m Member) bool {
	if r.HasMember(m.Id) {
		return false
	}
	r.Members = append(r.Members, m)

	return true
}

func (r *Room) RemoveMember(memberId string) (Member, bool) {
	i := r.MemberIndex(memberId)
	if i < 0 {
		return Member{}, false
	}
	m := r.Members[i]
	r.Members = append(r.Members[:i], r.Members[i+1:]...)

	return m, true
}

func (r *Room) MemberIds() []string {
	ids := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		ids = append(ids, m.Id)
	}

	return ids
}

func (r *Room) IsHost(memberId string) bool {
	return memberId != "" && r.HostId == memberId
}

func (r *Room) Host() (Member, bool) {
	return r.GetMember(r.HostId)
}

// Successor is the longest-present member.
func (r *Room) Successor() (Member, bool) {
	if len(r.Members) == 0 {
		return Member{}, false
	}

	return r.Members[0], true
}

// allowKey identifies a member on the allow-list: by UserId when verified,
// by username otherwise.
func allowKey(m Member) string {
	if m.Verified {
		return "user:" + m.UserId
	}

	return "name:" + m.Username
}

func (r *Room) IsAllowed(m Member) bool {
	_, ok := r.Allowed[allowKey(m)]
	return ok
}

func (r *Room) Allow(m Member) {
	if r.Allowed == nil {
		r.Allowed = make(map[string]struct{})
	}
	r.Allowed[allowKey(m)] = struct{}{}
}
