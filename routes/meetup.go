package routes

import (
	"net/http"
	"sort"
	"time"

	"github.com/bluefodor88/activeportland-11.16.25/models"
	"github.com/bluefodor88/activeportland-11.16.25/services"
	"github.com/bluefodor88/activeportland-11.16.25/storage"
	"github.com/bluefodor88/activeportland-11.16.25/utils"

	"github.com/kataras/iris/v12"
	jsonWT "github.com/kataras/iris/v12/middleware/jwt"
)

type CreateInviteInput struct {
	ChatID    uint   `json:"chatID" validate:"required"`
	Location  string `json:"location" validate:"required,max=256"`
	EventDate string `json:"eventDate" validate:"required,datetime=2006-01-02"`
	EventTime string `json:"eventTime" validate:"required,datetime=15:04"`
}

// CreateInvite proposes a meetup inside a chat and notifies the other
// participant.
func CreateInvite(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var input CreateInviteInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	chat, ok := requireParticipant(ctx, input.ChatID, claims.ID)
	if !ok {
		return
	}

	invite := models.MeetupInvite{
		ChatID:      input.ChatID,
		SenderID:    claims.ID,
		RecipientID: chat.OtherParticipant(claims.ID),
		Location:    input.Location,
		EventDate:   input.EventDate,
		EventTime:   input.EventTime,
		Status:      models.InvitePending,
	}
	if err := storage.DB.Create(&invite).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	storage.PublishChange(ctx.Request().Context(), services.TableChatMessages, input.ChatID, invite.ID)

	var sender models.User
	if err := storage.DB.First(&sender, claims.ID).Error; err == nil {
		notificationService := services.NewNotificationService()
		go notificationService.SendInviteNotification(invite.RecipientID, claims.ID, input.ChatID, sender.Name, invite.Location)
	}

	storage.DB.Preload("Sender").Preload("Recipient").First(&invite, invite.ID)
	ctx.JSON(iris.Map{"success": true, "invite": invite})
}

// ListChatInvites returns every invite in a chat, oldest first, so the
// conversation feed can interleave them with messages.
func ListChatInvites(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	chatID, err := ctx.Params().GetUint("chatID")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	if _, ok := requireParticipant(ctx, chatID, claims.ID); !ok {
		return
	}

	var invites []models.MeetupInvite
	storage.DB.
		Where("chat_id = ?", chatID).
		Preload("Sender").
		Preload("Recipient").
		Order("created_at ASC").
		Find(&invites)
	ctx.JSON(iris.Map{"success": true, "invites": invites})
}

type RespondToInviteInput struct {
	Accept *bool `json:"accept" validate:"required"`
}

// RespondToInvite records the recipient's decision exactly once. The
// conditional update on pending status makes a second response a no-op that
// surfaces as a conflict.
func RespondToInvite(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	inviteID, err := ctx.Params().GetUint("inviteID")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	var input RespondToInviteInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var invite models.MeetupInvite
	if err := storage.DB.First(&invite, inviteID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if invite.RecipientID != claims.ID {
		ctx.StopWithStatus(http.StatusForbidden)
		return
	}

	status := models.InviteDeclined
	if *input.Accept {
		status = models.InviteAccepted
	}

	now := time.Now()
	result := storage.DB.Model(&models.MeetupInvite{}).
		Where("id = ? AND status = ?", inviteID, models.InvitePending).
		Updates(map[string]interface{}{"status": status, "responded_at": now})
	if result.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if result.RowsAffected == 0 {
		utils.CreateError(iris.StatusConflict, "Conflict", "This invite has already been responded to.", ctx)
		return
	}

	storage.PublishChange(ctx.Request().Context(), services.TableChatMessages, invite.ChatID, invite.ID)
	ctx.JSON(iris.Map{"success": true, "status": status})
}

type upcomingMeetup struct {
	InviteID   uint      `json:"inviteID"`
	ChatID     uint      `json:"chatID"`
	OtherName  string    `json:"otherName"`
	Location   string    `json:"location"`
	EventAt    time.Time `json:"eventAt"`
	Urgency    string    `json:"urgency"`
	IsWithinHr bool      `json:"isWithinHour"`
}

// ListUpcomingMeetups returns the caller's accepted meetups that have not
// happened yet, soonest first, each labeled with its urgency bucket.
func ListUpcomingMeetups(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var invites []models.MeetupInvite
	storage.DB.
		Where("status = ? AND (sender_id = ? OR recipient_id = ?)", models.InviteAccepted, claims.ID, claims.ID).
		Preload("Sender").
		Preload("Recipient").
		Find(&invites)

	now := time.Now()
	meetups := make([]upcomingMeetup, 0, len(invites))
	for _, invite := range invites {
		eventAt, parseErr := invite.EventAt()
		if parseErr != nil || !eventAt.After(now) {
			continue
		}

		other := invite.Sender
		if invite.SenderID == claims.ID {
			other = invite.Recipient
		}

		urgency := services.UrgencyFor(now, eventAt)
		meetups = append(meetups, upcomingMeetup{
			InviteID:   invite.ID,
			ChatID:     invite.ChatID,
			OtherName:  other.Name,
			Location:   invite.Location,
			EventAt:    eventAt,
			Urgency:    urgency.Label(),
			IsWithinHr: urgency.Level == services.UrgencyWithinHour || urgency.Level == services.UrgencyAboutAnHour,
		})
	}

	sort.SliceStable(meetups, func(i, j int) bool {
		return meetups[i].EventAt.Before(meetups[j].EventAt)
	})

	ctx.JSON(iris.Map{"success": true, "meetups": meetups})
}

type CreateScheduledEventInput struct {
	Title           string `json:"title" validate:"required,max=256"`
	Location        string `json:"location" validate:"required,max=256"`
	EventDate       string `json:"eventDate" validate:"required,datetime=2006-01-02"`
	EventTime       string `json:"eventTime" validate:"required,datetime=15:04"`
	Description     string `json:"description" validate:"max=1024"`
	ActivityID      *uint  `json:"activityID"`
	MaxParticipants int    `json:"maxParticipants" validate:"min=0,max=500"`
	InviteeIDs      []uint `json:"inviteeIDs"`
}

// CreateScheduledEvent creates a group meetup and fans pending invitations
// out to the invitee list.
func CreateScheduledEvent(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var input CreateScheduledEventInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	event := models.ScheduledEvent{
		OrganizerID:     claims.ID,
		ActivityID:      input.ActivityID,
		Title:           input.Title,
		Location:        input.Location,
		EventDate:       input.EventDate,
		EventTime:       input.EventTime,
		Description:     input.Description,
		MaxParticipants: input.MaxParticipants,
	}
	if err := storage.DB.Create(&event).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	now := time.Now()
	for _, inviteeID := range input.InviteeIDs {
		if inviteeID == claims.ID {
			continue
		}
		participant := models.EventParticipant{
			EventID:   event.ID,
			UserID:    inviteeID,
			Status:    models.InvitePending,
			InvitedAt: now,
		}
		// Duplicate invitee IDs collapse on the unique index
		storage.DB.Create(&participant)
	}

	ctx.JSON(iris.Map{"success": true, "event": event})
}

// ListMyScheduledEvents returns events the caller organizes or is invited to
func ListMyScheduledEvents(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var invitedEventIDs []uint
	storage.DB.Model(&models.EventParticipant{}).
		Where("user_id = ?", claims.ID).
		Pluck("event_id", &invitedEventIDs)

	var events []models.ScheduledEvent
	query := storage.DB.Preload("Organizer").Preload("Activity")
	if len(invitedEventIDs) > 0 {
		query = query.Where("organizer_id = ? OR id IN ?", claims.ID, invitedEventIDs)
	} else {
		query = query.Where("organizer_id = ?", claims.ID)
	}
	query.Order("event_date ASC, event_time ASC").Find(&events)

	ctx.JSON(iris.Map{"success": true, "events": events})
}

type RespondToEventInput struct {
	Accept *bool `json:"accept" validate:"required"`
}

// RespondToEvent records an invitee's decision on a scheduled event
func RespondToEvent(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	eventID, err := ctx.Params().GetUint("eventID")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	var input RespondToEventInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	status := models.InviteDeclined
	if *input.Accept {
		status = models.InviteAccepted
	}

	now := time.Now()
	result := storage.DB.Model(&models.EventParticipant{}).
		Where("event_id = ? AND user_id = ?", eventID, claims.ID).
		Updates(map[string]interface{}{"status": status, "responded_at": now})
	if result.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if result.RowsAffected == 0 {
		utils.CreateNotFound(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true, "status": status})
}
