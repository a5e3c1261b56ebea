package state

import "sync"

// ActiveChatTracker marks the conversation the user currently has open so
// unread badges never increment for messages being viewed. Set on screen
// focus, cleared on blur; writes come from user interaction so last-write-wins
// is correct.
type ActiveChatTracker struct {
	mu     sync.Mutex
	chatID uint
}

func NewActiveChatTracker() *ActiveChatTracker {
	return &ActiveChatTracker{}
}

func (t *ActiveChatTracker) Set(chatID uint) {
	t.mu.Lock()
	t.chatID = chatID
	t.mu.Unlock()
}

func (t *ActiveChatTracker) Clear() {
	t.Set(0)
}

// Active returns the open chat id, 0 when none
func (t *ActiveChatTracker) Active() uint {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chatID
}
