package main

import (
	"fmt"
	"log"
	"os"

	"github.com/bluefodor88/activeportland-11.16.25/routes"
	"github.com/bluefodor88/activeportland-11.16.25/storage"
	"github.com/bluefodor88/activeportland-11.16.25/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	// Only load .env in development
	if os.Getenv("RENDER") == "" {
		godotenv.Load()
	}

	storage.InitializeDB()
	storage.InitializeRedis()

	app := iris.New()
	app.Validator = validator.New()

	// CORS configuration
	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	app.Use(iris.Compression)

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	// Websocket clients cannot set headers, so the feed routes also accept
	// the access token as a query param
	accessTokenVerifier.Extractors = append(accessTokenVerifier.Extractors, func(ctx iris.Context) string {
		return ctx.URLParam("token")
	})
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("REFRESH_TOKEN_SECRET")))
	refreshTokenVerifier.WithDefaultBlocklist()
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})

	refreshTokenVerifier.Extractors = append(refreshTokenVerifier.Extractors, func(ctx iris.Context) string {
		var tokenInput utils.RefreshTokenInput
		err := ctx.ReadJSON(&tokenInput)
		if err != nil {
			return ""
		}
		return tokenInput.RefreshToken
	})

	// Health check endpoint - CRITICAL for Render
	app.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"status": "ok"})
	})

	user := app.Party("/api/user")
	{
		user.Post("/register", routes.Register)
		user.Post("/login", routes.Login)
		user.Post("/logout", routes.Logout)
		user.Get("/search", accessTokenVerifierMiddleware, routes.SearchUsers)
		user.Get("/{id}", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetUser)
		user.Patch("/{id}/profile", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.UpdateProfile)
		user.Patch("/{id}/avatar", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.UploadAvatar)
		user.Patch("/{id}/location", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.UpdateLocation)
		user.Patch("/{id}/settings/location-sharing", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.SetLocationSharing)
	}

	activity := app.Party("/api/activity")
	{
		activity.Get("/", routes.ListActivities)
		activity.Get("/skills", accessTokenVerifierMiddleware, routes.ListMySkills)
		activity.Post("/skills", accessTokenVerifierMiddleware, routes.SetSkill)
		activity.Delete("/skills/{activityID:uint}", accessTokenVerifierMiddleware, routes.RemoveSkill)
		activity.Get("/{activityID:uint}/people", accessTokenVerifierMiddleware, routes.ListPeopleForActivity)
	}

	forum := app.Party("/api/forum")
	{
		forum.Get("/{activityID:uint}/messages", accessTokenVerifierMiddleware, routes.ListForumMessages)
		forum.Post("/messages", accessTokenVerifierMiddleware, routes.CreateForumMessage)
	}

	chat := app.Party("/api/chat")
	{
		chat.Post("/ensure", accessTokenVerifierMiddleware, routes.EnsureChat)
		chat.Get("/", accessTokenVerifierMiddleware, routes.ListChats)
		chat.Get("/{chatID:uint}/messages", accessTokenVerifierMiddleware, routes.ListChatMessages)
		chat.Post("/{chatID:uint}/messages", accessTokenVerifierMiddleware, routes.SendChatMessage)
		chat.Post("/{chatID:uint}/read", accessTokenVerifierMiddleware, routes.MarkChatRead)
		chat.Get("/{chatID:uint}/invites", accessTokenVerifierMiddleware, routes.ListChatInvites)
		chat.Post("/remove-duplicates", accessTokenVerifierMiddleware, routes.RemoveDuplicateChats)
	}

	meetup := app.Party("/api/meetup")
	{
		meetup.Post("/invites", accessTokenVerifierMiddleware, routes.CreateInvite)
		meetup.Post("/invites/{inviteID:uint}/respond", accessTokenVerifierMiddleware, routes.RespondToInvite)
		meetup.Get("/upcoming", accessTokenVerifierMiddleware, routes.ListUpcomingMeetups)
		meetup.Post("/events", accessTokenVerifierMiddleware, routes.CreateScheduledEvent)
		meetup.Get("/events", accessTokenVerifierMiddleware, routes.ListMyScheduledEvents)
		meetup.Post("/events/{eventID:uint}/respond", accessTokenVerifierMiddleware, routes.RespondToEvent)
	}

	realtime := app.Party("/api/realtime")
	{
		realtime.Get("/forum/{activityID:uint}", accessTokenVerifierMiddleware, routes.ForumChangeFeed)
		realtime.Get("/chat/{chatID:uint}", accessTokenVerifierMiddleware, routes.ChatChangeFeed)
	}

	app.Post("/api/refresh", refreshTokenVerifierMiddleware, utils.RefreshToken)

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	addr := "0.0.0.0:" + port

	fmt.Printf("🚀 Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("❌ Server failed: %v", err)
	}
}
