package services

import (
	"context"
	"fmt"

	"github.com/bluefodor88/activeportland-11.16.25/models"

	"golang.org/x/exp/slices"
)

var skillLevels = []string{models.SkillBeginner, models.SkillIntermediate, models.SkillAdvanced}

// ValidSkillLevel reports whether level is one of the three known levels
func ValidSkillLevel(level string) bool {
	return slices.Contains(skillLevels, level)
}

// SetSkillLevel saves the user's level for an activity. Writes go through the
// gateway upsert keyed on (user, activity): saving twice updates the one row,
// it never duplicates it.
func SetSkillLevel(ctx context.Context, gw Gateway, userID, activityID uint, level string, readyToday bool) error {
	if !ValidSkillLevel(level) {
		return fmt.Errorf("unknown skill level %q", level)
	}
	return gw.UpsertSkill(ctx, SkillRow{
		UserID:     userID,
		ActivityID: activityID,
		SkillLevel: level,
		ReadyToday: readyToday,
	})
}

// RemoveActivity deletes the user's skill assignment for an activity
func RemoveActivity(ctx context.Context, gw Gateway, userID, activityID uint) error {
	return gw.DeleteSkill(ctx, userID, activityID)
}
