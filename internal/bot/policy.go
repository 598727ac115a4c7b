package bot

import (
	"time"

	"github.com/himanishpuri/tunebot/internal/config"
)

// Policy decides who may talk to the bot.
type Policy struct {
	chats        config.ChatPolicy
	allowPrivate bool
	blocked      map[int64]struct{}
	startedAt    time.Time
}

func NewPolicy(chats config.ChatPolicy, allowPrivate bool, blocked []int64, startedAt time.Time) Policy {
	set := make(map[int64]struct{}, len(blocked))
	for _, id := range blocked {
		set[id] = struct{}{}
	}
	return Policy{chats: chats, allowPrivate: allowPrivate, blocked: set, startedAt: startedAt}
}

func (p Policy) Blocked(userID int64) bool {
	_, ok := p.blocked[userID]
	return ok
}

// AllowMessage drops backlog from before start, chats outside the allow
// list and blocked users.
func (p Policy) AllowMessage(m Message) bool {
	if m.Date.Before(p.startedAt) {
		return false
	}
	private := m.ChatKind == ChatPrivate
	if !(private && p.allowPrivate) && !p.chats.Allows(m.ChatID) {
		return false
	}
	return !p.Blocked(m.From.ID)
}
