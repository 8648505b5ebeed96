package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/parley-chat/parley/internal/domain"
)

const minPasswordLen = 8

// Accounts is the slice of the directory the account endpoints need.
type Accounts interface {
	CreateUser(ctx context.Context, u domain.User, passwordHash string) error
	CredentialsByEmail(ctx context.Context, email string) (domain.User, string, error)
}

// TokenIssuer mints an access token for an authenticated identity.
type TokenIssuer interface {
	IssueAccessToken(identity string) (string, error)
}

type UsersController struct {
	accounts Accounts
	tokens   TokenIssuer
}

func NewUsersController(accounts Accounts, tokens TokenIssuer) *UsersController {
	return &UsersController{accounts: accounts, tokens: tokens}
}

// Register creates an account and returns a first access token, so a fresh
// client can connect without a separate login round trip.
func (ctl *UsersController) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email, username and password required"})
		return
	}
	if len(req.Password) < minPasswordLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password too short"})
		return
	}
	user, err := domain.NewUser(req.Email, req.Username)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if err := ctl.accounts.CreateUser(c.Request.Context(), *user, string(hash)); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("create user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	token, err := ctl.tokens.IssueAccessToken(user.Email)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("issue token failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": user.ID, "token": token})
}

// Login exchanges email and password for an access token.
func (ctl *UsersController) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}
	user, hash, err := ctl.accounts.CredentialsByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("credential lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, err := ctl.tokens.IssueAccessToken(user.Email)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("issue token failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": user.ID, "token": token})
}
