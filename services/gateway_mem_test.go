package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bluefodor88/activeportland-11.16.25/models"
	"github.com/bluefodor88/activeportland-11.16.25/storage"
)

// memoryGateway is the in-memory Gateway used by the synchronizer tests. It
// keeps the same semantics as the production gateway: unique chat pairs,
// upsert-on-conflict skills, one-shot invite responses and a per-channel
// change feed.
type memoryGateway struct {
	mu sync.Mutex

	nextID uint

	profiles  map[uint]ProfileRow
	skills    map[[2]uint]SkillRow // (userID, activityID)
	forum     []ForumMessageRow
	chats     []ChatRow
	chatMsgs  []ChatMessageRow
	invites   []InviteRow
	readMarks map[[2]uint]time.Time // (chatID, userID)

	subs map[string][]chan storage.ChangeEvent

	clock func() time.Time

	// error injection
	failQueryForum    error
	failQueryChatMsgs error
	failGetProfile    map[uint]error
	failUpload        error

	// call counters
	forumQueries int
	uploads      int
}

func newMemoryGateway() *memoryGateway {
	return &memoryGateway{
		profiles:       make(map[uint]ProfileRow),
		skills:         make(map[[2]uint]SkillRow),
		readMarks:      make(map[[2]uint]time.Time),
		subs:           make(map[string][]chan storage.ChangeEvent),
		failGetProfile: make(map[uint]error),
		clock:          time.Now,
	}
}

func (g *memoryGateway) id() uint {
	g.nextID++
	return g.nextID
}

func (g *memoryGateway) addProfile(p ProfileRow) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.profiles[p.ID] = p
}

func (g *memoryGateway) QueryForumMessages(ctx context.Context, activityID uint) ([]ForumMessageRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.forumQueries++
	if g.failQueryForum != nil {
		return nil, g.failQueryForum
	}
	var rows []ForumMessageRow
	for _, m := range g.forum {
		if m.ActivityID == activityID {
			rows = append(rows, m)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return rows, nil
}

func (g *memoryGateway) InsertForumMessage(ctx context.Context, msg NewForumMessage) error {
	g.mu.Lock()
	row := ForumMessageRow{
		ID:         g.id(),
		ActivityID: msg.ActivityID,
		AuthorID:   msg.UserID,
		Message:    msg.Message,
		ImageURLs:  msg.ImageURLs,
		ReplyToID:  msg.ReplyToID,
		CreatedAt:  g.clock(),
	}
	if p, ok := g.profiles[msg.UserID]; ok {
		row.AuthorName = p.Name
		row.AuthorAvatar = p.AvatarURL
	}
	if s, ok := g.skills[[2]uint{msg.UserID, msg.ActivityID}]; ok {
		row.AuthorSkill = s.SkillLevel
	}
	g.forum = append(g.forum, row)
	g.mu.Unlock()

	g.publish(TableForumMessages, msg.ActivityID, row.ID)
	return nil
}

func (g *memoryGateway) FindChatByPair(ctx context.Context, a, b uint) (*ChatRow, error) {
	low, high := models.NormalizePair(a, b)
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.chats {
		cl, ch := models.NormalizePair(g.chats[i].Participant1, g.chats[i].Participant2)
		if cl == low && ch == high {
			chat := g.chats[i]
			return &chat, nil
		}
	}
	return nil, nil
}

func (g *memoryGateway) CreateChat(ctx context.Context, a, b uint) (*ChatRow, error) {
	low, high := models.NormalizePair(a, b)
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.chats {
		cl, ch := models.NormalizePair(g.chats[i].Participant1, g.chats[i].Participant2)
		if cl == low && ch == high {
			return nil, ErrChatConflict
		}
	}
	chat := ChatRow{ID: g.id(), Participant1: low, Participant2: high, CreatedAt: g.clock()}
	g.chats = append(g.chats, chat)
	return &chat, nil
}

func (g *memoryGateway) QueryChats(ctx context.Context, userID uint) ([]ChatRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var rows []ChatRow
	for _, c := range g.chats {
		if c.Participant1 == userID || c.Participant2 == userID {
			rows = append(rows, c)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		li, lj := rows[i].LastMessageAt, rows[j].LastMessageAt
		if li == nil {
			return false
		}
		if lj == nil {
			return true
		}
		return li.After(*lj)
	})
	return rows, nil
}

func (g *memoryGateway) QueryChatMessages(ctx context.Context, chatID uint) ([]ChatMessageRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failQueryChatMsgs != nil {
		return nil, g.failQueryChatMsgs
	}
	var rows []ChatMessageRow
	for _, m := range g.chatMsgs {
		if m.ChatID == chatID {
			rows = append(rows, m)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	return rows, nil
}

func (g *memoryGateway) InsertChatMessage(ctx context.Context, msg NewChatMessage) error {
	g.mu.Lock()
	row := ChatMessageRow{
		ID:        g.id(),
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Message:   msg.Message,
		ImageURLs: msg.ImageURLs,
		CreatedAt: g.clock(),
	}
	g.chatMsgs = append(g.chatMsgs, row)
	g.mu.Unlock()

	g.publish(TableChatMessages, msg.ChatID, row.ID)
	return nil
}

func (g *memoryGateway) TouchChat(ctx context.Context, chatID uint, at time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.chats {
		if g.chats[i].ID == chatID {
			t := at
			g.chats[i].LastMessageAt = &t
			return nil
		}
	}
	return fmt.Errorf("chat %d not found", chatID)
}

func (g *memoryGateway) CountUnread(ctx context.Context, chatID, userID uint, since time.Time) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cutoff := since
	if readAt, ok := g.readMarks[[2]uint{chatID, userID}]; ok && readAt.After(cutoff) {
		cutoff = readAt
	}
	count := 0
	for _, m := range g.chatMsgs {
		if m.ChatID == chatID && m.SenderID != userID && m.CreatedAt.After(cutoff) {
			count++
		}
	}
	return count, nil
}

func (g *memoryGateway) MarkChatRead(ctx context.Context, chatID, userID uint, at time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.readMarks[[2]uint{chatID, userID}] = at
	return nil
}

func (g *memoryGateway) GetProfile(ctx context.Context, userID uint) (*ProfileRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.failGetProfile[userID]; ok {
		return nil, err
	}
	p, ok := g.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %d not found", userID)
	}
	return &p, nil
}

func (g *memoryGateway) UpsertSkill(ctx context.Context, skill SkillRow) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.skills[[2]uint{skill.UserID, skill.ActivityID}] = skill
	return nil
}

func (g *memoryGateway) DeleteSkill(ctx context.Context, userID, activityID uint) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.skills, [2]uint{userID, activityID})
	return nil
}

func (g *memoryGateway) QuerySkills(ctx context.Context, userID uint) ([]SkillRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var rows []SkillRow
	for key, s := range g.skills {
		if key[0] == userID {
			rows = append(rows, s)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ActivityID < rows[j].ActivityID })
	return rows, nil
}

func (g *memoryGateway) queryInvites(chatID uint, status string) []InviteRow {
	var rows []InviteRow
	for _, inv := range g.invites {
		if inv.ChatID == chatID && inv.Status == status {
			rows = append(rows, inv)
		}
	}
	return rows
}

func (g *memoryGateway) QueryPendingInvites(ctx context.Context, chatID uint) ([]InviteRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queryInvites(chatID, models.InvitePending), nil
}

func (g *memoryGateway) QueryAcceptedInvites(ctx context.Context, chatID uint) ([]InviteRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queryInvites(chatID, models.InviteAccepted), nil
}

func (g *memoryGateway) QueryAcceptedInvitesForUser(ctx context.Context, userID uint) ([]InviteRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var rows []InviteRow
	for _, inv := range g.invites {
		if inv.Status == models.InviteAccepted && (inv.SenderID == userID || inv.RecipientID == userID) {
			rows = append(rows, inv)
		}
	}
	return rows, nil
}

func (g *memoryGateway) InsertInvite(ctx context.Context, invite NewInvite) (*InviteRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	row := InviteRow{
		ID:          g.id(),
		ChatID:      invite.ChatID,
		SenderID:    invite.SenderID,
		RecipientID: invite.RecipientID,
		Location:    invite.Location,
		EventDate:   invite.EventDate,
		EventTime:   invite.EventTime,
		Status:      models.InvitePending,
		CreatedAt:   g.clock(),
	}
	g.invites = append(g.invites, row)
	return &row, nil
}

func (g *memoryGateway) UpdateInviteStatus(ctx context.Context, inviteID uint, status string, at time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.invites {
		if g.invites[i].ID != inviteID {
			continue
		}
		if g.invites[i].Status != models.InvitePending {
			return ErrAlreadyResponded
		}
		g.invites[i].Status = status
		t := at
		g.invites[i].RespondedAt = &t
		return nil
	}
	return fmt.Errorf("invite %d not found", inviteID)
}

func (g *memoryGateway) UploadImage(ctx context.Context, base64Data string, folder string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failUpload != nil {
		return "", g.failUpload
	}
	g.uploads++
	return fmt.Sprintf("https://cdn.test/%s/%d", folder, g.uploads), nil
}

func (g *memoryGateway) Subscribe(ctx context.Context, table string, filterID uint) (*Subscription, error) {
	ch := make(chan storage.ChangeEvent, 16)
	channel := storage.ChangeChannel(table, filterID)

	g.mu.Lock()
	g.subs[channel] = append(g.subs[channel], ch)
	g.mu.Unlock()

	cancel := func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		chans := g.subs[channel]
		for i, c := range chans {
			if c == ch {
				g.subs[channel] = append(chans[:i], chans[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return NewSubscription(ch, cancel), nil
}

func (g *memoryGateway) publish(table string, filterID, rowID uint) {
	channel := storage.ChangeChannel(table, filterID)
	g.mu.Lock()
	chans := append([]chan storage.ChangeEvent(nil), g.subs[channel]...)
	g.mu.Unlock()
	for _, ch := range chans {
		select {
		case ch <- storage.ChangeEvent{Table: table, Event: "INSERT", RowID: rowID}:
		default:
		}
	}
}

var _ Gateway = (*memoryGateway)(nil)
