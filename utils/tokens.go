package utils

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/bluefodor88/activeportland-11.16.25/storage"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

var bgContext = context.Background()

type AccessToken struct {
	ID uint `json:"ID"`
}

type RefreshTokenInput struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func CreateTokenPair(id uint) (*jwt.TokenPair, error) {
	accessTokenSigner := jwt.NewSigner(jwt.HS256, os.Getenv("ACCESS_TOKEN_SECRET"), 24*time.Hour)
	refreshTokenSigner := jwt.NewSigner(jwt.HS256, os.Getenv("REFRESH_TOKEN_SECRET"), 365*24*time.Hour)

	userID := strconv.FormatUint(uint64(id), 10)

	accessToken, err := accessTokenSigner.Sign(AccessToken{ID: id})
	if err != nil {
		return nil, err
	}

	refreshToken, err := refreshTokenSigner.Sign(jwt.Claims{Subject: userID})
	if err != nil {
		return nil, err
	}

	var tokenPair jwt.TokenPair
	tokenPair.AccessToken = accessToken
	tokenPair.RefreshToken = refreshToken

	// Refresh tokens are allowlisted in redis; logout revokes them
	storage.Redis.Set(bgContext, string(refreshToken), "true", 365*24*time.Hour+5*time.Minute)

	return &tokenPair, nil
}

func RefreshToken(ctx iris.Context) {
	token := jwt.GetVerifiedToken(ctx)
	tokenStr := string(token.Token)

	if _, err := storage.Redis.Get(bgContext, tokenStr).Result(); err != nil {
		CreateNotFound(ctx)
		return
	}

	claims := jwt.Get(ctx).(*jwt.Claims)
	id, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil {
		CreateInternalServerError(ctx)
		return
	}

	// Rotate: old refresh token is revoked before the new pair is issued
	storage.Redis.Del(bgContext, tokenStr)

	tokenPair, err := CreateTokenPair(uint(id))
	if err != nil {
		CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(tokenPair)
}

func RevokeRefreshToken(refreshToken string) {
	storage.Redis.Del(bgContext, refreshToken)
}
