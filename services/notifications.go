package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bluefodor88/activeportland-11.16.25/models"
	"github.com/bluefodor88/activeportland-11.16.25/storage"

	"github.com/sirupsen/logrus"
)

const expoPushURL = "https://exp.host/--/api/v2/push/send"

// NotificationService handles all push notification logic
type NotificationService struct{}

func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotificationData is the payload used for deep linking on the client
type NotificationData struct {
	Type   string `json:"type"`
	ChatID string `json:"chatId,omitempty"`
	UserID string `json:"userId,omitempty"`
	Screen string `json:"screen"`
}

type expoPushMessage struct {
	To    string           `json:"to"`
	Title string           `json:"title"`
	Body  string           `json:"body"`
	Data  NotificationData `json:"data"`
	Sound string           `json:"sound"`
}

// getUserPushTokens retrieves all push tokens for a user that allows them
func (ns *NotificationService) getUserPushTokens(userID uint) ([]string, error) {
	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	if user.AllowsNotifications == nil || !*user.AllowsNotifications || user.PushTokens == nil {
		return nil, fmt.Errorf("user %d has notifications disabled or no tokens", userID)
	}

	var tokens []string
	if err := json.Unmarshal(user.PushTokens, &tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal push tokens: %w", err)
	}
	return tokens, nil
}

func (ns *NotificationService) sendToUser(userID uint, title, body string, data NotificationData) error {
	tokens, err := ns.getUserPushTokens(userID)
	if err != nil {
		logrus.WithError(err).WithField("userID", userID).Debug("push skipped")
		return err
	}

	var lastError error
	for _, token := range tokens {
		if err := sendExpoPush(token, title, body, data); err != nil {
			logrus.WithError(err).WithField("userID", userID).Warn("push delivery failed")
			lastError = err
		}
	}
	return lastError
}

func sendExpoPush(token, title, body string, data NotificationData) error {
	payload, err := json.Marshal(expoPushMessage{
		To:    token,
		Title: title,
		Body:  body,
		Data:  data,
		Sound: "default",
	})
	if err != nil {
		return err
	}

	res, err := http.Post(expoPushURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("expo push status %d", res.StatusCode)
	}
	return nil
}

// SendChatMessageNotification notifies the other participant of a new message
func (ns *NotificationService) SendChatMessageNotification(recipientID, senderID, chatID uint, senderName, preview string) error {
	if len(preview) > 80 {
		preview = preview[:77] + "..."
	}
	title := "💬 " + senderName
	body := preview
	if body == "" {
		body = "Sent you a photo"
	}

	return ns.sendToUser(recipientID, title, body, NotificationData{
		Type:   "chat_message",
		ChatID: fmt.Sprintf("%d", chatID),
		UserID: fmt.Sprintf("%d", senderID),
		Screen: "Chat",
	})
}

// SendInviteNotification notifies the recipient of a new meetup invite
func (ns *NotificationService) SendInviteNotification(recipientID, senderID, chatID uint, senderName, location string) error {
	title := "📍 Meetup Invite"
	body := fmt.Sprintf("%s wants to meet up at %s", senderName, location)

	return ns.sendToUser(recipientID, title, body, NotificationData{
		Type:   "meetup_invite",
		ChatID: fmt.Sprintf("%d", chatID),
		UserID: fmt.Sprintf("%d", senderID),
		Screen: "Chat",
	})
}
