package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/go-redis/redis/v8"
)

var Redis *redis.Client

func InitializeRedis() {
	// Get Redis URL from environment, fallback to localhost for development
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "localhost:6379"
		log.Println("⚠️  REDIS_URL not set, using localhost:6379 (development mode)")
	}

	Redis = redis.NewClient(&redis.Options{
		Addr:     redisURL,
		Password: "",
		DB:       0,
	})

	log.Println("🔧 Redis initialized with address:", redisURL)
}

// ChangeEvent mirrors the hosted-database change feed: every insert on a
// synchronized table is published to a channel keyed by table and filter id,
// and subscribers refetch rather than merge the payload.
type ChangeEvent struct {
	Table string `json:"table"`
	Event string `json:"event"` // INSERT
	RowID uint   `json:"rowID"`
}

// ChangeChannel builds the pub/sub channel name for a table scoped by a filter
// id (activity id for forum messages, chat id for chat messages).
func ChangeChannel(table string, filterID uint) string {
	return fmt.Sprintf("changes:%s:%d", table, filterID)
}

// PublishChange emits an insert notification on the table's change channel.
// Best-effort: a publish failure is logged, never surfaced to the writer.
func PublishChange(ctx context.Context, table string, filterID uint, rowID uint) {
	if Redis == nil {
		return
	}
	payload, err := json.Marshal(ChangeEvent{Table: table, Event: "INSERT", RowID: rowID})
	if err != nil {
		return
	}
	if err := Redis.Publish(ctx, ChangeChannel(table, filterID), payload).Err(); err != nil {
		log.Printf("change publish failed for %s/%d: %v", table, filterID, err)
	}
}
