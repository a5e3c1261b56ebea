package routes

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bluefodor88/activeportland-11.16.25/models"
	"github.com/bluefodor88/activeportland-11.16.25/services"
	"github.com/bluefodor88/activeportland-11.16.25/storage"
	"github.com/bluefodor88/activeportland-11.16.25/utils"

	"github.com/kataras/iris/v12"
	jsonWT "github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

func stringsToJSONColumn(values []string) datatypes.JSON {
	if len(values) == 0 {
		return nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return data
}

type EnsureChatInput struct {
	OtherUserID uint `json:"otherUserID" validate:"required"`
}

// EnsureChat resolves the chat for the caller and another user, creating it
// on first contact. The unique pair index makes the find-before-create safe:
// a lost race falls back to the winner's row.
func EnsureChat(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var input EnsureChatInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	if input.OtherUserID == claims.ID {
		utils.CreateError(iris.StatusBadRequest, "Validation error", "Cannot open a chat with yourself.", ctx)
		return
	}

	low, high := models.NormalizePair(claims.ID, input.OtherUserID)

	var chat models.Chat
	found := storage.DB.
		Where("participant_low = ? AND participant_high = ?", low, high).
		Limit(1).Find(&chat)
	if found.Error == nil && found.RowsAffected > 0 {
		ctx.JSON(iris.Map{"success": true, "chatID": chat.ID, "created": false})
		return
	}

	chat = models.Chat{ParticipantLow: low, ParticipantHigh: high}
	if err := storage.DB.Create(&chat).Error; err != nil {
		// Another device created the pair first; use its row
		retry := storage.DB.
			Where("participant_low = ? AND participant_high = ?", low, high).
			Limit(1).Find(&chat)
		if retry.Error != nil || retry.RowsAffected == 0 {
			utils.CreateInternalServerError(ctx)
			return
		}
		ctx.JSON(iris.Map{"success": true, "chatID": chat.ID, "created": false})
		return
	}

	ctx.JSON(iris.Map{"success": true, "chatID": chat.ID, "created": true})
}

type chatPreview struct {
	ChatID        uint       `json:"chatID"`
	OtherUserID   uint       `json:"otherUserID"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	AvatarURL     string     `json:"avatarURL"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
	UnreadCount   int        `json:"unreadCount"`
}

// ListChats returns the caller's conversation previews, most recent first,
// with unread counts over the trailing window past the read marker. An
// activeChatID query param suppresses counting for the conversation the
// caller is looking at.
func ListChats(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	activeChatID := uint(ctx.URLParamIntDefault("activeChatID", 0))

	var chats []models.Chat
	storage.DB.
		Where("participant_low = ? OR participant_high = ?", claims.ID, claims.ID).
		Order("last_message_at DESC NULLS LAST").
		Find(&chats)

	since := time.Now().Add(-services.UnreadWindow)

	previews := make([]chatPreview, 0, len(chats))
	for _, chat := range chats {
		otherID := chat.OtherParticipant(claims.ID)

		var other models.User
		if err := storage.DB.Select("id, name, email, avatar_url").First(&other, otherID).Error; err != nil {
			continue
		}

		preview := chatPreview{
			ChatID:        chat.ID,
			OtherUserID:   otherID,
			Name:          other.Name,
			Email:         other.Email,
			AvatarURL:     other.AvatarURL,
			LastMessageAt: chat.LastMessageAt,
		}

		if chat.ID != activeChatID {
			cutoff := since
			var read models.ChatRead
			if err := storage.DB.
				Where("chat_id = ? AND user_id = ?", chat.ID, claims.ID).
				First(&read).Error; err == nil && read.ReadAt.After(cutoff) {
				cutoff = read.ReadAt
			}

			var count int64
			storage.DB.Model(&models.ChatMessage{}).
				Where("chat_id = ? AND sender_id <> ? AND created_at > ?", chat.ID, claims.ID, cutoff).
				Count(&count)
			preview.UnreadCount = int(count)
		}

		previews = append(previews, preview)
	}

	ctx.JSON(iris.Map{"success": true, "chats": previews})
}

// ListChatMessages returns a chat's messages oldest-first
func ListChatMessages(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	chatID, err := ctx.Params().GetUint("chatID")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	if _, ok := requireParticipant(ctx, chatID, claims.ID); !ok {
		return
	}

	var messages []models.ChatMessage
	storage.DB.
		Where("chat_id = ?", chatID).
		Preload("Sender").
		Order("created_at ASC").
		Find(&messages)
	ctx.JSON(iris.Map{"success": true, "messages": messages})
}

type SendChatMessageInput struct {
	Message string   `json:"message" validate:"max=1000"`
	Images  []string `json:"images"` // base64 payloads
}

// SendChatMessage inserts a message, bumps last_message_at (secondary write,
// logged only on failure inside TouchChat semantics), publishes the change
// event and pushes a notification to the other participant.
func SendChatMessage(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	chatID, err := ctx.Params().GetUint("chatID")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	chat, ok := requireParticipant(ctx, chatID, claims.ID)
	if !ok {
		return
	}

	var input SendChatMessageInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	body := strings.TrimSpace(input.Message)
	if body == "" && len(input.Images) == 0 {
		utils.CreateError(iris.StatusBadRequest, "Validation error", "Message cannot be empty.", ctx)
		return
	}

	var urls []string
	for _, image := range input.Images {
		url, uploadErr := storage.UploadBase64Image(image, "chat")
		if uploadErr != nil {
			continue
		}
		urls = append(urls, url)
	}

	message := models.ChatMessage{
		ChatID:    chatID,
		SenderID:  claims.ID,
		Message:   body,
		ImageURLs: stringsToJSONColumn(urls),
	}
	if err := storage.DB.Create(&message).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	// Secondary write; the message is already delivered if this fails
	storage.DB.Model(&models.Chat{}).Where("id = ?", chatID).Update("last_message_at", time.Now())

	storage.PublishChange(ctx.Request().Context(), services.TableChatMessages, chatID, message.ID)

	var sender models.User
	if err := storage.DB.First(&sender, claims.ID).Error; err == nil {
		notificationService := services.NewNotificationService()
		go notificationService.SendChatMessageNotification(chat.OtherParticipant(claims.ID), claims.ID, chatID, sender.Name, body)
	}

	storage.DB.Preload("Sender").First(&message, message.ID)
	ctx.JSON(iris.Map{"success": true, "message": message})
}

// MarkChatRead moves the caller's read marker to now
func MarkChatRead(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	chatID, err := ctx.Params().GetUint("chatID")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	if _, ok := requireParticipant(ctx, chatID, claims.ID); !ok {
		return
	}

	err = storage.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"read_at": time.Now()}),
	}).Create(&models.ChatRead{ChatID: chatID, UserID: claims.ID, ReadAt: time.Now()}).Error
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true})
}

// RemoveDuplicateChats is the maintenance action for pairs duplicated before
// the unique index existed: messages move to the oldest row, the rest go.
func RemoveDuplicateChats(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var chats []models.Chat
	storage.DB.
		Where("participant_low = ? OR participant_high = ?", claims.ID, claims.ID).
		Order("created_at ASC").
		Find(&chats)

	keeperByPair := make(map[[2]uint]uint)
	removed := 0
	for _, chat := range chats {
		pair := [2]uint{chat.ParticipantLow, chat.ParticipantHigh}
		keeper, seen := keeperByPair[pair]
		if !seen {
			keeperByPair[pair] = chat.ID
			continue
		}

		storage.DB.Model(&models.ChatMessage{}).Where("chat_id = ?", chat.ID).Update("chat_id", keeper)
		storage.DB.Model(&models.MeetupInvite{}).Where("chat_id = ?", chat.ID).Update("chat_id", keeper)
		storage.DB.Delete(&models.Chat{}, chat.ID)
		removed++
	}

	ctx.JSON(iris.Map{"success": true, "removed": removed})
}

// requireParticipant loads the chat and rejects callers that are not part of
// the pair
func requireParticipant(ctx iris.Context, chatID, userID uint) (*models.Chat, bool) {
	var chat models.Chat
	if err := storage.DB.First(&chat, chatID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return nil, false
	}
	if !chat.HasParticipant(userID) {
		ctx.StopWithStatus(http.StatusForbidden)
		return nil, false
	}
	return &chat, true
}
