package routes

import (
	"context"
	"net/http"

	"github.com/bluefodor88/activeportland-11.16.25/services"
	"github.com/bluefodor88/activeportland-11.16.25/storage"
	"github.com/bluefodor88/activeportland-11.16.25/utils"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	jsonWT "github.com/kataras/iris/v12/middleware/jwt"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Token auth happens before the upgrade; the socket carries no cookies
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ForumChangeFeed upgrades to a websocket and forwards the activity's forum
// change events. The client treats every event as a refetch signal.
func ForumChangeFeed(ctx iris.Context) {
	activityID, err := ctx.Params().GetUint("activityID")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}
	serveChangeFeed(ctx, services.TableForumMessages, activityID)
}

// ChatChangeFeed forwards a chat's message change events over a websocket
func ChatChangeFeed(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)
	chatID, err := ctx.Params().GetUint("chatID")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}
	if _, ok := requireParticipant(ctx, chatID, claims.ID); !ok {
		return
	}
	serveChangeFeed(ctx, services.TableChatMessages, chatID)
}

func serveChangeFeed(ctx iris.Context, table string, filterID uint) {
	conn, err := upgrader.Upgrade(ctx.ResponseWriter(), ctx.Request(), nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	feedCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := storage.ChangeChannel(table, filterID)
	pubsub := storage.Redis.Subscribe(feedCtx, channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(feedCtx); err != nil {
		logrus.WithError(err).WithField("channel", channel).Warn("change feed subscribe failed")
		return
	}

	// The read loop only exists to notice the peer going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-feedCtx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
		}
	}
}
