package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/parley-chat/parley/internal/domain"
	"github.com/parley-chat/parley/internal/rooms"
)

// RoomsController exposes the room-management operations over REST. Every
// authorization decision lives in the rooms service; this layer only maps
// inputs and errors.
type RoomsController struct {
	Service *rooms.Service
}

func NewRoomsController(service *rooms.Service) *RoomsController {
	return &RoomsController{Service: service}
}

func (ctl *RoomsController) Create(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}
	room, err := ctl.Service.Create(c.Request.Context(), domain.RoomName(req.Name), CallerID(c))
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (ctl *RoomsController) Info(c *gin.Context) {
	info, err := ctl.Service.Info(c.Request.Context(), domain.RoomID(c.Param("id")), CallerID(c))
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (ctl *RoomsController) Rename(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}
	err := ctl.Service.Rename(c.Request.Context(), domain.RoomID(c.Param("id")), CallerID(c), domain.RoomName(req.Name))
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (ctl *RoomsController) Delete(c *gin.Context) {
	err := ctl.Service.Delete(c.Request.Context(), domain.RoomID(c.Param("id")), CallerID(c))
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (ctl *RoomsController) AddMember(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email required"})
		return
	}
	userID, err := ctl.Service.AddMemberByEmail(c.Request.Context(), domain.RoomID(c.Param("id")), CallerID(c), req.Email)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID})
}

func (ctl *RoomsController) RemoveMember(c *gin.Context) {
	err := ctl.Service.RemoveMember(
		c.Request.Context(),
		domain.RoomID(c.Param("id")),
		CallerID(c),
		domain.UserID(c.Param("userId")),
	)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (ctl *RoomsController) ChangeRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role required"})
		return
	}
	role := domain.Role(req.Role)
	if role != domain.RoleAdmin && role != domain.RoleRegular {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	err := ctl.Service.ChangeRole(
		c.Request.Context(),
		domain.RoomID(c.Param("id")),
		CallerID(c),
		domain.UserID(c.Param("userId")),
		role,
	)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (ctl *RoomsController) Invite(c *gin.Context) {
	token, err := ctl.Service.Invite(c.Request.Context(), domain.RoomID(c.Param("id")), CallerID(c))
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (ctl *RoomsController) Join(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
		return
	}
	roomID, err := ctl.Service.Redeem(c.Request.Context(), req.Token, CallerID(c))
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID})
}

func abortWithDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrLastAdmin):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrNotMember):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrAlreadyMember),
		errors.Is(err, domain.ErrRoomNameEmpty),
		errors.Is(err, domain.ErrRoomNameTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Msg("room operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
