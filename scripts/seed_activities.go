package main

import (
	"fmt"
	"log"
	"os"

	"github.com/bluefodor88/activeportland-11.16.25/models"
	"github.com/bluefodor88/activeportland-11.16.25/storage"

	"github.com/joho/godotenv"
	"gorm.io/gorm/clause"
)

// The activity catalog is static; re-running the seed is a no-op for
// activities that already exist.
var catalog = []models.Activity{
	{Name: "Basketball", Emoji: "🏀", Description: "Pickup games and shootarounds"},
	{Name: "Tennis", Emoji: "🎾", Description: "Singles and doubles on local courts"},
	{Name: "Pickleball", Emoji: "🏓", Description: "Fast-growing paddle sport for all levels"},
	{Name: "Soccer", Emoji: "⚽", Description: "Casual matches and scrimmages"},
	{Name: "Running", Emoji: "🏃", Description: "Group runs around the city"},
	{Name: "Cycling", Emoji: "🚴", Description: "Road and trail rides"},
	{Name: "Hiking", Emoji: "🥾", Description: "Trails in and around town"},
	{Name: "Climbing", Emoji: "🧗", Description: "Indoor gyms and outdoor crags"},
	{Name: "Golf", Emoji: "⛳", Description: "Rounds and driving range sessions"},
	{Name: "Volleyball", Emoji: "🏐", Description: "Indoor and sand courts"},
	{Name: "Swimming", Emoji: "🏊", Description: "Lap swims and open water"},
	{Name: "Yoga", Emoji: "🧘", Description: "Studio classes and park sessions"},
	{Name: "Disc Golf", Emoji: "🥏", Description: "Courses around the metro area"},
	{Name: "Skiing", Emoji: "⛷️", Description: "Day trips to the mountain"},
	{Name: "Kayaking", Emoji: "🛶", Description: "River and flatwater paddling"},
}

func main() {
	if os.Getenv("RENDER") == "" {
		godotenv.Load()
	}

	storage.InitializeDB()

	for _, activity := range catalog {
		err := storage.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&activity).Error
		if err != nil {
			log.Fatalf("Error seeding activity %q: %v", activity.Name, err)
		}
	}

	fmt.Printf("Seeded %d activities\n", len(catalog))
}
