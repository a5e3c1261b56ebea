package routes

import (
	"net/http"
	"sort"

	"github.com/bluefodor88/activeportland-11.16.25/models"
	"github.com/bluefodor88/activeportland-11.16.25/storage"
	"github.com/bluefodor88/activeportland-11.16.25/utils"

	"github.com/kataras/iris/v12"
	jsonWT "github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/gorm/clause"
)

// ListActivities returns the static activity catalog
func ListActivities(ctx iris.Context) {
	var activities []models.Activity
	if err := storage.DB.Order("name ASC").Find(&activities).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true, "activities": activities})
}

// ListMySkills returns the caller's skill assignments with activity metadata
func ListMySkills(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var skills []models.UserActivitySkill
	storage.DB.
		Preload("Activity").
		Where("user_id = ?", claims.ID).
		Find(&skills)
	ctx.JSON(iris.Map{"success": true, "skills": skills})
}

type SetSkillInput struct {
	ActivityID uint   `json:"activityID" validate:"required"`
	SkillLevel string `json:"skillLevel" validate:"required,oneof=Beginner Intermediate Advanced"`
	ReadyToday bool   `json:"readyToday"`
}

// SetSkill saves the caller's level for an activity. Upsert on the
// (user, activity) pair: saving twice updates one row, never duplicates it.
func SetSkill(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var input SetSkillInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	skill := models.UserActivitySkill{
		UserID:     claims.ID,
		ActivityID: input.ActivityID,
		SkillLevel: input.SkillLevel,
		ReadyToday: input.ReadyToday,
	}
	err := storage.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "activity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"skill_level", "ready_today", "updated_at"}),
	}).Create(&skill).Error
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true, "skill": skill})
}

// RemoveSkill deletes the caller's assignment for an activity
func RemoveSkill(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	activityID, err := ctx.Params().GetUint("activityID")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	if err := storage.DB.
		Where("user_id = ? AND activity_id = ?", claims.ID, activityID).
		Delete(&models.UserActivitySkill{}).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true})
}

type personWithSkill struct {
	ID            uint    `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	AvatarURL     string  `json:"avatarURL"`
	SkillLevel    string  `json:"skillLevel"`
	ReadyToday    bool    `json:"readyToday"`
	Distance      string  `json:"distance"`
	distanceMiles float64
}

// ListPeopleForActivity returns the other users with a skill assignment for
// the activity, sorted ready-today first, then nearest. Distance needs the
// caller and the other user to both share a location; otherwise the person
// sorts last with an empty distance.
func ListPeopleForActivity(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	activityID, err := ctx.Params().GetUint("activityID")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	var me models.User
	if err := storage.DB.First(&me, claims.ID).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	var skills []models.UserActivitySkill
	storage.DB.
		Preload("User").
		Where("activity_id = ? AND user_id <> ?", activityID, claims.ID).
		Find(&skills)

	const farAway = 1e9
	people := make([]personWithSkill, 0, len(skills))
	for _, skill := range skills {
		person := personWithSkill{
			ID:            skill.User.ID,
			Name:          skill.User.Name,
			Email:         skill.User.Email,
			AvatarURL:     skill.User.AvatarURL,
			SkillLevel:    skill.SkillLevel,
			ReadyToday:    skill.ReadyToday,
			distanceMiles: farAway,
		}

		if me.Latitude != nil && me.Longitude != nil &&
			skill.User.LocationSharingEnabled &&
			skill.User.Latitude != nil && skill.User.Longitude != nil {
			miles := utils.HaversineMiles(*me.Latitude, *me.Longitude, *skill.User.Latitude, *skill.User.Longitude)
			person.distanceMiles = miles
			person.Distance = utils.FormatDistance(miles)
		}

		people = append(people, person)
	}

	// Ready people at the top, then closest first
	sort.SliceStable(people, func(i, j int) bool {
		if people[i].ReadyToday != people[j].ReadyToday {
			return people[i].ReadyToday
		}
		return people[i].distanceMiles < people[j].distanceMiles
	})

	ctx.JSON(iris.Map{"success": true, "people": people})
}
