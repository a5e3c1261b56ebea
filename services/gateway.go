package services

import (
	"context"
	"errors"
	"time"

	"github.com/bluefodor88/activeportland-11.16.25/storage"
)

// Tables carrying a change feed
const (
	TableForumMessages = "forum_messages"
	TableChatMessages  = "chat_messages"
)

var (
	// ErrChatConflict is returned by CreateChat when another writer created
	// the same pair first; callers re-run the lookup
	ErrChatConflict = errors.New("chat already exists for pair")

	// ErrAlreadyResponded is returned when responding to a non-pending invite
	ErrAlreadyResponded = errors.New("invite already responded to")
)

// Result shapes are named per query so the synchronizers never work on
// untyped joined rows.

type ProfileRow struct {
	ID        uint
	Name      string
	Email     string
	AvatarURL string
}

type ForumMessageRow struct {
	ID            uint
	ActivityID    uint
	AuthorID      uint
	AuthorName    string
	AuthorAvatar  string
	AuthorSkill   string // skill for this activity specifically, "" when absent
	Message       string
	ImageURLs     []string
	ReplyToID     *uint
	ActivityName  string
	ActivityEmoji string
	CreatedAt     time.Time
}

type NewForumMessage struct {
	ActivityID uint
	UserID     uint
	Message    string
	ImageURLs  []string
	ReplyToID  *uint
}

type ChatRow struct {
	ID            uint
	Participant1  uint
	Participant2  uint
	LastMessageAt *time.Time
	CreatedAt     time.Time
}

// Other returns the participant that is not userID
func (c ChatRow) Other(userID uint) uint {
	if c.Participant1 == userID {
		return c.Participant2
	}
	return c.Participant1
}

type ChatMessageRow struct {
	ID        uint
	ChatID    uint
	SenderID  uint
	Message   string
	ImageURLs []string
	CreatedAt time.Time
}

type NewChatMessage struct {
	ChatID    uint
	SenderID  uint
	Message   string
	ImageURLs []string
}

type InviteRow struct {
	ID            uint
	ChatID        uint
	SenderID      uint
	RecipientID   uint
	SenderName    string
	RecipientName string
	Location      string
	EventDate     string // YYYY-MM-DD
	EventTime     string // HH:MM
	Status        string
	RespondedAt   *time.Time
	CreatedAt     time.Time
}

// EventAt combines EventDate and EventTime into a wall-clock instant
func (i InviteRow) EventAt() (time.Time, error) {
	return time.ParseInLocation("2006-01-02T15:04", i.EventDate+"T"+i.EventTime, time.Local)
}

type NewInvite struct {
	ChatID      uint
	SenderID    uint
	RecipientID uint
	Location    string
	EventDate   string
	EventTime   string
}

type SkillRow struct {
	UserID     uint
	ActivityID uint
	SkillLevel string
	ReadyToday bool
}

// Subscription is a handle on a filtered change feed; Events closes after
// Unsubscribe.
type Subscription struct {
	events <-chan storage.ChangeEvent
	cancel func()
}

func NewSubscription(events <-chan storage.ChangeEvent, cancel func()) *Subscription {
	return &Subscription{events: events, cancel: cancel}
}

func (s *Subscription) Events() <-chan storage.ChangeEvent { return s.events }

func (s *Subscription) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Gateway is the remote data store boundary the synchronizers run against:
// authenticated CRUD over typed tables plus a filtered change feed and blob
// storage. The production implementation is DBGateway; tests use an in-memory
// gateway.
type Gateway interface {
	// Forum
	QueryForumMessages(ctx context.Context, activityID uint) ([]ForumMessageRow, error) // newest-first
	InsertForumMessage(ctx context.Context, msg NewForumMessage) error

	// Chats
	FindChatByPair(ctx context.Context, a, b uint) (*ChatRow, error) // nil when absent
	CreateChat(ctx context.Context, a, b uint) (*ChatRow, error)     // ErrChatConflict on duplicate pair
	QueryChats(ctx context.Context, userID uint) ([]ChatRow, error)  // most recent first
	QueryChatMessages(ctx context.Context, chatID uint) ([]ChatMessageRow, error) // oldest-first
	InsertChatMessage(ctx context.Context, msg NewChatMessage) error
	TouchChat(ctx context.Context, chatID uint, at time.Time) error
	CountUnread(ctx context.Context, chatID, userID uint, since time.Time) (int, error)
	MarkChatRead(ctx context.Context, chatID, userID uint, at time.Time) error

	// Profiles and skills
	GetProfile(ctx context.Context, userID uint) (*ProfileRow, error)
	UpsertSkill(ctx context.Context, skill SkillRow) error
	DeleteSkill(ctx context.Context, userID, activityID uint) error
	QuerySkills(ctx context.Context, userID uint) ([]SkillRow, error)

	// Meetup invites
	QueryPendingInvites(ctx context.Context, chatID uint) ([]InviteRow, error)
	QueryAcceptedInvites(ctx context.Context, chatID uint) ([]InviteRow, error)
	QueryAcceptedInvitesForUser(ctx context.Context, userID uint) ([]InviteRow, error)
	InsertInvite(ctx context.Context, invite NewInvite) (*InviteRow, error)
	UpdateInviteStatus(ctx context.Context, inviteID uint, status string, at time.Time) error

	// Blob storage; returns the public URL
	UploadImage(ctx context.Context, base64Data string, folder string) (string, error)

	// Change feed
	Subscribe(ctx context.Context, table string, filterID uint) (*Subscription, error)
}
