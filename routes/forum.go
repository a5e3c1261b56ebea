package routes

import (
	"net/http"
	"strings"

	"github.com/bluefodor88/activeportland-11.16.25/models"
	"github.com/bluefodor88/activeportland-11.16.25/services"
	"github.com/bluefodor88/activeportland-11.16.25/storage"
	"github.com/bluefodor88/activeportland-11.16.25/utils"

	"github.com/kataras/iris/v12"
	jsonWT "github.com/kataras/iris/v12/middleware/jwt"
)

// ListForumMessages returns every message for an activity, newest-first (the
// client renders an inverted list), with author, reply target and activity
// joined in.
func ListForumMessages(ctx iris.Context) {
	activityID, err := ctx.Params().GetUint("activityID")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	var messages []models.ForumMessage
	queryErr := storage.DB.
		Where("activity_id = ?", activityID).
		Preload("User").
		Preload("Activity").
		Preload("ReplyTo").
		Preload("ReplyTo.User").
		Order("created_at DESC").
		Find(&messages).Error
	if queryErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	// Each author's badge is their skill for this activity specifically
	var skills []models.UserActivitySkill
	storage.DB.Where("activity_id = ?", activityID).Find(&skills)
	skillByUser := make(map[uint]string, len(skills))
	for _, skill := range skills {
		skillByUser[skill.UserID] = skill.SkillLevel
	}

	ctx.JSON(iris.Map{"success": true, "messages": messages, "skillLevels": skillByUser})
}

type CreateForumMessageInput struct {
	ActivityID uint     `json:"activityID" validate:"required"`
	Message    string   `json:"message" validate:"max=1000"`
	ReplyToID  *uint    `json:"replyToID"`
	Images     []string `json:"images"` // base64 payloads
}

// CreateForumMessage validates, uploads images best-effort, inserts the
// message and publishes an insert event on the activity's change feed.
func CreateForumMessage(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var input CreateForumMessageInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	body := strings.TrimSpace(input.Message)
	if body == "" && len(input.Images) == 0 {
		utils.CreateError(iris.StatusBadRequest, "Validation error", "Message cannot be empty.", ctx)
		return
	}

	if input.ReplyToID != nil {
		// A reply target must be a message in the same activity
		var target models.ForumMessage
		if err := storage.DB.First(&target, *input.ReplyToID).Error; err != nil || target.ActivityID != input.ActivityID {
			utils.CreateError(iris.StatusBadRequest, "Validation error", "Reply target not found in this activity.", ctx)
			return
		}
	}

	var urls []string
	for _, image := range input.Images {
		url, err := storage.UploadBase64Image(image, "forum")
		if err != nil {
			// Failed uploads are dropped, the rest still go through
			continue
		}
		urls = append(urls, url)
	}

	message := models.ForumMessage{
		ActivityID: input.ActivityID,
		UserID:     claims.ID,
		Message:    body,
		ImageURLs:  stringsToJSONColumn(urls),
		ReplyToID:  input.ReplyToID,
	}
	if err := storage.DB.Create(&message).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	storage.PublishChange(ctx.Request().Context(), services.TableForumMessages, input.ActivityID, message.ID)

	storage.DB.Preload("User").Preload("Activity").First(&message, message.ID)
	ctx.JSON(iris.Map{"success": true, "message": message})
}
