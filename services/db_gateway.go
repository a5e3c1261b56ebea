package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bluefodor88/activeportland-11.16.25/models"
	"github.com/bluefodor88/activeportland-11.16.25/storage"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBGateway is the production Gateway: rows live in postgres via gorm, the
// change feed rides redis pub/sub and blobs go to Cloudinary. Route handlers
// publish to the same feed, so a synchronizer sees inserts no matter which
// process wrote them.
type DBGateway struct {
	db *gorm.DB
}

func NewDBGateway(db *gorm.DB) *DBGateway {
	return &DBGateway{db: db}
}

func jsonToStrings(data datatypes.JSON) []string {
	if data == nil {
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func stringsToJSON(values []string) datatypes.JSON {
	if len(values) == 0 {
		return nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return data
}

func (g *DBGateway) QueryForumMessages(ctx context.Context, activityID uint) ([]ForumMessageRow, error) {
	var messages []models.ForumMessage
	err := g.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Preload("User").
		Preload("Activity").
		Order("created_at DESC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// The skill badge joins the author's assignment for this activity
	// specifically, not a generic level
	var skills []models.UserActivitySkill
	if err := g.db.WithContext(ctx).Where("activity_id = ?", activityID).Find(&skills).Error; err != nil {
		return nil, err
	}
	skillByUser := make(map[uint]string, len(skills))
	for _, skill := range skills {
		skillByUser[skill.UserID] = skill.SkillLevel
	}

	rows := make([]ForumMessageRow, 0, len(messages))
	for _, msg := range messages {
		rows = append(rows, ForumMessageRow{
			ID:            msg.ID,
			ActivityID:    msg.ActivityID,
			AuthorID:      msg.UserID,
			AuthorName:    msg.User.Name,
			AuthorAvatar:  msg.User.AvatarURL,
			AuthorSkill:   skillByUser[msg.UserID],
			Message:       msg.Message,
			ImageURLs:     jsonToStrings(msg.ImageURLs),
			ReplyToID:     msg.ReplyToID,
			ActivityName:  msg.Activity.Name,
			ActivityEmoji: msg.Activity.Emoji,
			CreatedAt:     msg.CreatedAt,
		})
	}
	return rows, nil
}

func (g *DBGateway) InsertForumMessage(ctx context.Context, msg NewForumMessage) error {
	row := models.ForumMessage{
		ActivityID: msg.ActivityID,
		UserID:     msg.UserID,
		Message:    msg.Message,
		ImageURLs:  stringsToJSON(msg.ImageURLs),
		ReplyToID:  msg.ReplyToID,
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	storage.PublishChange(ctx, TableForumMessages, msg.ActivityID, row.ID)
	return nil
}

func chatToRow(chat models.Chat) *ChatRow {
	return &ChatRow{
		ID:            chat.ID,
		Participant1:  chat.ParticipantLow,
		Participant2:  chat.ParticipantHigh,
		LastMessageAt: chat.LastMessageAt,
		CreatedAt:     chat.CreatedAt,
	}
}

func (g *DBGateway) FindChatByPair(ctx context.Context, a, b uint) (*ChatRow, error) {
	low, high := models.NormalizePair(a, b)
	var chat models.Chat
	err := g.db.WithContext(ctx).
		Where("participant_low = ? AND participant_high = ?", low, high).
		First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return chatToRow(chat), nil
}

func (g *DBGateway) CreateChat(ctx context.Context, a, b uint) (*ChatRow, error) {
	low, high := models.NormalizePair(a, b)
	chat := models.Chat{ParticipantLow: low, ParticipantHigh: high}
	err := g.db.WithContext(ctx).Create(&chat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
			return nil, ErrChatConflict
		}
		return nil, err
	}
	return chatToRow(chat), nil
}

func (g *DBGateway) QueryChats(ctx context.Context, userID uint) ([]ChatRow, error) {
	var chats []models.Chat
	err := g.db.WithContext(ctx).
		Where("participant_low = ? OR participant_high = ?", userID, userID).
		Order("last_message_at DESC NULLS LAST").
		Find(&chats).Error
	if err != nil {
		return nil, err
	}
	rows := make([]ChatRow, 0, len(chats))
	for _, chat := range chats {
		rows = append(rows, *chatToRow(chat))
	}
	return rows, nil
}

func (g *DBGateway) QueryChatMessages(ctx context.Context, chatID uint) ([]ChatMessageRow, error) {
	var messages []models.ChatMessage
	err := g.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	rows := make([]ChatMessageRow, 0, len(messages))
	for _, msg := range messages {
		rows = append(rows, ChatMessageRow{
			ID:        msg.ID,
			ChatID:    msg.ChatID,
			SenderID:  msg.SenderID,
			Message:   msg.Message,
			ImageURLs: jsonToStrings(msg.ImageURLs),
			CreatedAt: msg.CreatedAt,
		})
	}
	return rows, nil
}

func (g *DBGateway) InsertChatMessage(ctx context.Context, msg NewChatMessage) error {
	row := models.ChatMessage{
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Message:   msg.Message,
		ImageURLs: stringsToJSON(msg.ImageURLs),
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	storage.PublishChange(ctx, TableChatMessages, msg.ChatID, row.ID)
	return nil
}

func (g *DBGateway) TouchChat(ctx context.Context, chatID uint, at time.Time) error {
	return g.db.WithContext(ctx).
		Model(&models.Chat{}).
		Where("id = ?", chatID).
		Update("last_message_at", at).Error
}

func (g *DBGateway) CountUnread(ctx context.Context, chatID, userID uint, since time.Time) (int, error) {
	// Unread = the other participant's messages after both the trailing
	// window start and the viewer's read marker
	var read models.ChatRead
	err := g.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		First(&read).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	if read.ReadAt.After(since) {
		since = read.ReadAt
	}

	var count int64
	err = g.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("chat_id = ? AND sender_id <> ? AND created_at > ?", chatID, userID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (g *DBGateway) MarkChatRead(ctx context.Context, chatID, userID uint, at time.Time) error {
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"read_at": at}),
	}).Create(&models.ChatRead{ChatID: chatID, UserID: userID, ReadAt: at}).Error
}

func (g *DBGateway) GetProfile(ctx context.Context, userID uint) (*ProfileRow, error) {
	var user models.User
	if err := g.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &ProfileRow{ID: user.ID, Name: user.Name, Email: user.Email, AvatarURL: user.AvatarURL}, nil
}

func (g *DBGateway) UpsertSkill(ctx context.Context, skill SkillRow) error {
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "activity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"skill_level", "ready_today", "updated_at"}),
	}).Create(&models.UserActivitySkill{
		UserID:     skill.UserID,
		ActivityID: skill.ActivityID,
		SkillLevel: skill.SkillLevel,
		ReadyToday: skill.ReadyToday,
	}).Error
}

func (g *DBGateway) DeleteSkill(ctx context.Context, userID, activityID uint) error {
	return g.db.WithContext(ctx).
		Where("user_id = ? AND activity_id = ?", userID, activityID).
		Delete(&models.UserActivitySkill{}).Error
}

func (g *DBGateway) QuerySkills(ctx context.Context, userID uint) ([]SkillRow, error) {
	var skills []models.UserActivitySkill
	err := g.db.WithContext(ctx).Where("user_id = ?", userID).Find(&skills).Error
	if err != nil {
		return nil, err
	}
	rows := make([]SkillRow, 0, len(skills))
	for _, skill := range skills {
		rows = append(rows, SkillRow{
			UserID:     skill.UserID,
			ActivityID: skill.ActivityID,
			SkillLevel: skill.SkillLevel,
			ReadyToday: skill.ReadyToday,
		})
	}
	return rows, nil
}

func inviteToRow(invite models.MeetupInvite) InviteRow {
	return InviteRow{
		ID:            invite.ID,
		ChatID:        invite.ChatID,
		SenderID:      invite.SenderID,
		RecipientID:   invite.RecipientID,
		SenderName:    invite.Sender.Name,
		RecipientName: invite.Recipient.Name,
		Location:      invite.Location,
		EventDate:     invite.EventDate,
		EventTime:     invite.EventTime,
		Status:        invite.Status,
		RespondedAt:   invite.RespondedAt,
		CreatedAt:     invite.CreatedAt,
	}
}

func (g *DBGateway) queryInvites(ctx context.Context, chatID uint, status string) ([]InviteRow, error) {
	var invites []models.MeetupInvite
	err := g.db.WithContext(ctx).
		Where("chat_id = ? AND status = ?", chatID, status).
		Preload("Sender").
		Preload("Recipient").
		Order("created_at DESC").
		Find(&invites).Error
	if err != nil {
		return nil, err
	}
	rows := make([]InviteRow, 0, len(invites))
	for _, invite := range invites {
		rows = append(rows, inviteToRow(invite))
	}
	return rows, nil
}

func (g *DBGateway) QueryPendingInvites(ctx context.Context, chatID uint) ([]InviteRow, error) {
	return g.queryInvites(ctx, chatID, models.InvitePending)
}

func (g *DBGateway) QueryAcceptedInvites(ctx context.Context, chatID uint) ([]InviteRow, error) {
	return g.queryInvites(ctx, chatID, models.InviteAccepted)
}

func (g *DBGateway) QueryAcceptedInvitesForUser(ctx context.Context, userID uint) ([]InviteRow, error) {
	var invites []models.MeetupInvite
	err := g.db.WithContext(ctx).
		Where("status = ? AND (sender_id = ? OR recipient_id = ?)", models.InviteAccepted, userID, userID).
		Preload("Sender").
		Preload("Recipient").
		Find(&invites).Error
	if err != nil {
		return nil, err
	}
	rows := make([]InviteRow, 0, len(invites))
	for _, invite := range invites {
		rows = append(rows, inviteToRow(invite))
	}
	return rows, nil
}

func (g *DBGateway) InsertInvite(ctx context.Context, invite NewInvite) (*InviteRow, error) {
	row := models.MeetupInvite{
		ChatID:      invite.ChatID,
		SenderID:    invite.SenderID,
		RecipientID: invite.RecipientID,
		Location:    invite.Location,
		EventDate:   invite.EventDate,
		EventTime:   invite.EventTime,
		Status:      models.InvitePending,
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	out := inviteToRow(row)
	return &out, nil
}

func (g *DBGateway) UpdateInviteStatus(ctx context.Context, inviteID uint, status string, at time.Time) error {
	// Conditional on pending so the transition stays one-shot
	result := g.db.WithContext(ctx).
		Model(&models.MeetupInvite{}).
		Where("id = ? AND status = ?", inviteID, models.InvitePending).
		Updates(map[string]interface{}{"status": status, "responded_at": at})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyResponded
	}
	return nil
}

func (g *DBGateway) UploadImage(ctx context.Context, base64Data string, folder string) (string, error) {
	return storage.UploadBase64Image(base64Data, folder)
}

func (g *DBGateway) Subscribe(ctx context.Context, table string, filterID uint) (*Subscription, error) {
	pubsub := storage.Redis.Subscribe(ctx, storage.ChangeChannel(table, filterID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	events := make(chan storage.ChangeEvent)
	go func() {
		defer close(events)
		for msg := range pubsub.Channel() {
			var event storage.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return NewSubscription(events, func() { pubsub.Close() }), nil
}
