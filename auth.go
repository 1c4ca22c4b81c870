package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const sessionCookie = "ems_session"

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func sessionSecret() []byte {
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "defaultsecret"
	}
	return []byte(secret)
}

func GenerateToken(userID uint) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(sessionSecret())
}

func setSessionCookie(c *gin.Context, token string) {
	c.SetCookie(sessionCookie, token, int((24 * time.Hour).Seconds()), "/", "", false, true)
}

func clearSessionCookie(c *gin.Context) {
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
}

// ========================
// SIGNUP
// ========================

func (app *App) SignupPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"page": "signup"})
}

func (app *App) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBind(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "username, email and password are required")
		return
	}

	ctx := c.Request.Context()

	// Inline uniqueness validation, the same checks the signup form showed.
	// The unique indexes still catch whatever races past these.
	if taken, err := app.store.UsernameTaken(ctx, req.Username); err != nil {
		jsonError(c, http.StatusInternalServerError, "could not create account")
		return
	} else if taken {
		jsonError(c, http.StatusBadRequest, "Username is already taken.")
		return
	}
	if taken, err := app.store.EmailTaken(ctx, req.Email); err != nil {
		jsonError(c, http.StatusInternalServerError, "could not create account")
		return
	} else if taken {
		jsonError(c, http.StatusBadRequest, "Email is already registered.")
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "could not create account")
		return
	}

	user := User{Username: req.Username, Email: req.Email, PasswordHash: hash}
	if err := app.store.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			jsonError(c, http.StatusBadRequest, "Username or email is already registered.")
			return
		}
		jsonError(c, http.StatusInternalServerError, "could not create account")
		return
	}

	token, err := GenerateToken(user.UserID)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "could not create session")
		return
	}
	setSessionCookie(c, token)

	c.JSON(http.StatusCreated, gin.H{
		"message": "Signup successful! You are now logged in.",
		"user":    user,
	})
}

// ========================
// LOGIN / LOGOUT
// ========================

func (app *App) LoginPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"page": "login"})
}

func (app *App) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := app.store.UserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("login lookup failed: %v", err)
		}
		jsonError(c, http.StatusUnauthorized, "Login unsuccessful. Please check email and password.")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		jsonError(c, http.StatusUnauthorized, "Login unsuccessful. Please check email and password.")
		return
	}

	token, err := GenerateToken(user.UserID)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "could not create session")
		return
	}
	setSessionCookie(c, token)

	c.JSON(http.StatusOK, gin.H{"message": "Login successful!", "user": user})
}

func (app *App) Logout(c *gin.Context) {
	clearSessionCookie(c)
	c.Redirect(http.StatusFound, "/")
}
