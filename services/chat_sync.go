package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bluefodor88/activeportland-11.16.25/state"

	"github.com/sirupsen/logrus"
)

// UnreadWindow is the trailing window unread counts are computed over. This is
// a deliberate simplification layered on top of the read marker: very old
// messages never count, even for chats that were never opened.
const UnreadWindow = 24 * time.Hour

// ChatPreview is one row of the conversation list
type ChatPreview struct {
	ChatID        uint
	OtherUserID   uint
	Name          string
	Email         string
	AvatarURL     string
	LastMessageAt *time.Time
	UnreadCount   int
}

// ChatSynchronizer resolves chats between user pairs and keeps one chat's
// message list current, alongside the per-user preview list with unread
// counts. Same subscribe-and-refetch reconciliation as the forum.
type ChatSynchronizer struct {
	gw       Gateway
	viewerID uint
	active   *state.ActiveChatTracker

	mu       sync.Mutex
	chatID   uint // 0 = no conversation open
	messages []ChatMessageRow
	loading  bool
	lastErr  error
	fetchSeq uint64
	sub      *Subscription
	stopped  bool

	now func() time.Time
}

func NewChatSynchronizer(gw Gateway, viewerID uint, active *state.ActiveChatTracker) *ChatSynchronizer {
	return &ChatSynchronizer{gw: gw, viewerID: viewerID, active: active, now: time.Now}
}

// GetOrCreateChat resolves the chat for an unordered user pair, creating it on
// first contact. A concurrent create from another device loses the unique-pair
// race and falls back to the winner's row.
func (s *ChatSynchronizer) GetOrCreateChat(ctx context.Context, a, b uint) (uint, error) {
	chat, err := s.gw.FindChatByPair(ctx, a, b)
	if err != nil {
		return 0, err
	}
	if chat != nil {
		return chat.ID, nil
	}

	chat, err = s.gw.CreateChat(ctx, a, b)
	if err == ErrChatConflict {
		chat, err = s.gw.FindChatByPair(ctx, a, b)
		if err != nil {
			return 0, err
		}
		if chat == nil {
			return 0, ErrChatConflict
		}
		return chat.ID, nil
	}
	if err != nil {
		return 0, err
	}
	return chat.ID, nil
}

// Open switches to a conversation: fetches its history, subscribes to its
// change feed and marks it read. The caller separately marks it active on
// screen focus via the ActiveChatTracker.
func (s *ChatSynchronizer) Open(ctx context.Context, chatID uint) error {
	s.mu.Lock()
	if s.sub != nil {
		s.sub.Unsubscribe()
		s.sub = nil
	}
	s.chatID = chatID
	s.fetchSeq++
	if chatID == 0 {
		s.messages = nil
		s.loading = false
		s.lastErr = nil
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	sub, err := s.gw.Subscribe(ctx, TableChatMessages, chatID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.stopped || s.chatID != chatID {
		s.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	s.sub = sub
	s.mu.Unlock()

	go func() {
		for range sub.Events() {
			if err := s.Fetch(ctx, false); err != nil {
				logrus.WithError(err).Warn("chat refetch after change event failed")
			}
		}
	}()

	if err := s.Fetch(ctx, true); err != nil {
		return err
	}
	return s.MarkAsRead(ctx, chatID)
}

// Stop unsubscribes and blocks late fetch results
func (s *ChatSynchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.sub != nil {
		s.sub.Unsubscribe()
		s.sub = nil
	}
}

// Fetch loads the open chat's messages, oldest-first (this list is not
// inverted, unlike the forum). Sequence-guarded like the forum fetch; errors
// preserve the previous list. When the list grows the chat is re-marked read,
// since the user is looking at it.
func (s *ChatSynchronizer) Fetch(ctx context.Context, showLoading bool) error {
	s.mu.Lock()
	if s.stopped || s.chatID == 0 {
		s.mu.Unlock()
		return nil
	}
	s.fetchSeq++
	seq := s.fetchSeq
	chatID := s.chatID
	if showLoading {
		s.loading = true
	}
	s.mu.Unlock()

	rows, err := s.gw.QueryChatMessages(ctx, chatID)

	s.mu.Lock()
	if s.stopped || seq != s.fetchSeq || chatID != s.chatID {
		s.mu.Unlock()
		return nil
	}
	s.loading = false
	if err != nil {
		s.lastErr = err
		s.mu.Unlock()
		logrus.WithError(err).WithField("chatID", chatID).Error("error fetching chat messages")
		return err
	}
	s.lastErr = nil
	grew := len(rows) > len(s.messages)
	s.messages = rows
	s.mu.Unlock()

	if grew {
		if err := s.MarkAsRead(ctx, chatID); err != nil {
			logrus.WithError(err).Warn("mark-as-read after growth failed")
		}
	}
	return nil
}

// Send validates locally, uploads images best-effort and inserts the message.
// The last-message-at bump is a secondary write: its failure is logged only,
// because the primary effect already succeeded.
func (s *ChatSynchronizer) Send(ctx context.Context, body string, images []string) bool {
	s.mu.Lock()
	chatID := s.chatID
	s.mu.Unlock()
	if chatID == 0 {
		return false
	}

	body = strings.TrimSpace(body)
	if body == "" && len(images) == 0 {
		return false
	}
	if len(body) > MaxMessageLength {
		return false
	}

	urls := uploadImages(ctx, s.gw, images, "chat")

	err := s.gw.InsertChatMessage(ctx, NewChatMessage{
		ChatID:    chatID,
		SenderID:  s.viewerID,
		Message:   body,
		ImageURLs: urls,
	})
	if err != nil {
		logrus.WithError(err).Error("error sending chat message")
		return false
	}

	if err := s.gw.TouchChat(ctx, chatID, s.now()); err != nil {
		logrus.WithError(err).Warn("error updating chat last_message_at")
	}

	if err := s.Fetch(ctx, false); err != nil {
		logrus.WithError(err).Warn("refetch after send failed")
	}
	return true
}

// Previews builds the conversation list for the viewer. Unread counts cover
// the other participant's messages within the trailing window and past the
// read marker; the active chat is pinned to zero because its messages are on
// screen.
func (s *ChatSynchronizer) Previews(ctx context.Context) ([]ChatPreview, error) {
	chats, err := s.gw.QueryChats(ctx, s.viewerID)
	if err != nil {
		return nil, err
	}

	activeID := uint(0)
	if s.active != nil {
		activeID = s.active.Active()
	}
	since := s.now().Add(-UnreadWindow)

	previews := make([]ChatPreview, 0, len(chats))
	for _, chat := range chats {
		otherID := chat.Other(s.viewerID)
		preview := ChatPreview{
			ChatID:        chat.ID,
			OtherUserID:   otherID,
			LastMessageAt: chat.LastMessageAt,
		}

		profile, err := s.gw.GetProfile(ctx, otherID)
		if err != nil {
			logrus.WithError(err).WithField("userID", otherID).Warn("skipping chat with unknown participant")
			continue
		}
		preview.Name = profile.Name
		preview.Email = profile.Email
		preview.AvatarURL = profile.AvatarURL

		if chat.ID != activeID {
			count, err := s.gw.CountUnread(ctx, chat.ID, s.viewerID, since)
			if err != nil {
				logrus.WithError(err).WithField("chatID", chat.ID).Warn("unread count failed")
			} else {
				preview.UnreadCount = count
			}
		}

		previews = append(previews, preview)
	}
	return previews, nil
}

// MarkAsRead moves the viewer's read marker to now, zeroing the unread count
func (s *ChatSynchronizer) MarkAsRead(ctx context.Context, chatID uint) error {
	return s.gw.MarkChatRead(ctx, chatID, s.viewerID, s.now())
}

// Messages returns the current snapshot, oldest-first
func (s *ChatSynchronizer) Messages() []ChatMessageRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatMessageRow, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *ChatSynchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *ChatSynchronizer) LastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
