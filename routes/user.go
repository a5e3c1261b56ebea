package routes

import (
	"errors"
	"strings"
	"time"

	"github.com/bluefodor88/activeportland-11.16.25/models"
	"github.com/bluefodor88/activeportland-11.16.25/storage"
	"github.com/bluefodor88/activeportland-11.16.25/utils"

	"github.com/kataras/iris/v12"
	jsonWT "github.com/kataras/iris/v12/middleware/jwt"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func Register(ctx iris.Context) {
	var userInput RegisterUserInput
	err := ctx.ReadJSON(&userInput)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var newUser models.User
	userExists, userExistsErr := getAndHandleUserExists(&newUser, userInput.Email)
	if userExistsErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if userExists {
		utils.CreateEmailAlreadyRegistered(ctx)
		return
	}

	hashedPassword, hashErr := hashAndSaltPassword(userInput.Password)
	if hashErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	newUser = models.User{
		Name:     strings.TrimSpace(userInput.Name),
		Email:    strings.ToLower(strings.TrimSpace(userInput.Email)),
		Password: hashedPassword,
	}

	storage.DB.Create(&newUser)

	returnUser(newUser, ctx)
}

func Login(ctx iris.Context) {
	var userInput LoginUserInput
	err := ctx.ReadJSON(&userInput)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var existingUser models.User
	errorMsg := "Invalid email or password."
	userExists, userExistsErr := getAndHandleUserExists(&existingUser, userInput.Email)
	if userExistsErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if !userExists {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", errorMsg, ctx)
		return
	}

	passwordErr := bcrypt.CompareHashAndPassword([]byte(existingUser.Password), []byte(userInput.Password))
	if passwordErr != nil {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", errorMsg, ctx)
		return
	}

	returnUser(existingUser, ctx)
}

func Logout(ctx iris.Context) {
	var input utils.RefreshTokenInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	utils.RevokeRefreshToken(input.RefreshToken)
	ctx.JSON(iris.Map{"success": true})
}

func GetUser(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	ctx.JSON(user)
}

type UpdateProfileInput struct {
	Name string `json:"name" validate:"required,max=128"`
}

func UpdateProfile(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var input UpdateProfileInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if err := storage.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("name", strings.TrimSpace(input.Name)).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true})
}

type UploadAvatarInput struct {
	Image string `json:"image" validate:"required"`
}

func UploadAvatar(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var input UploadAvatarInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	url, err := storage.UploadBase64Image(input.Image, "avatars")
	if err != nil {
		utils.CreateError(iris.StatusBadGateway, "Upload Error", "Avatar upload failed. Please try again.", ctx)
		return
	}

	if err := storage.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("avatar_url", url).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true, "avatarURL": url})
}

type UpdateLocationInput struct {
	Latitude  float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"required,min=-180,max=180"`
}

func UpdateLocation(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var input UpdateLocationInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	now := time.Now()
	if err := storage.DB.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"latitude":            input.Latitude,
		"longitude":           input.Longitude,
		"location_updated_at": now,
	}).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true})
}

type LocationSharingInput struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func SetLocationSharing(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var input LocationSharingInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if err := storage.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("location_sharing_enabled", *input.Enabled).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true})
}

// SearchUsers allows searching users by name or email (auth required)
func SearchUsers(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	q := ctx.URLParamDefault("q", "")
	limit := ctx.URLParamIntDefault("limit", 20)
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	if len(strings.TrimSpace(q)) < 1 {
		ctx.JSON(iris.Map{"success": true, "users": []interface{}{}})
		return
	}

	var users []models.User
	search := "%" + strings.TrimSpace(q) + "%"
	storage.DB.Limit(limit).
		Where("id <> ?", claims.ID).
		Where("lower(name) LIKE lower(?) OR lower(email) LIKE lower(?)", search, search).
		Select("id, name, email, avatar_url").
		Find(&users)
	ctx.JSON(iris.Map{"success": true, "users": users})
}

type RegisterUserInput struct {
	Name     string `json:"name" validate:"required,max=128"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=256"`
}

type LoginUserInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func getAndHandleUserExists(user *models.User, email string) (exists bool, err error) {
	userExistsQuery := storage.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).Limit(1).Find(&user)

	if userExistsQuery.Error != nil && !errors.Is(userExistsQuery.Error, gorm.ErrRecordNotFound) {
		return false, userExistsQuery.Error
	}

	return userExistsQuery.RowsAffected > 0, nil
}

func hashAndSaltPassword(password string) (hashedPassword string, err error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func returnUser(user models.User, ctx iris.Context) {
	tokenPair, tokenErr := utils.CreateTokenPair(user.ID)
	if tokenErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{
		"ID":           user.ID,
		"name":         user.Name,
		"email":        user.Email,
		"avatarURL":    user.AvatarURL,
		"accessToken":  string(tokenPair.AccessToken),
		"refreshToken": string(tokenPair.RefreshToken),
	})
}
