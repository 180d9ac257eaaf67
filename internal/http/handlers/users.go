package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

const defaultListLimit = 100

type UsersService interface {
	CreateUser(ctx context.Context, req user.CreateUserRequest) (user.Public, error)
	GetUsers(ctx context.Context, skip, limit int) ([]user.Public, error)
	GetUserCount(ctx context.Context) (int64, error)
	GetUserByID(ctx context.Context, id string) (user.Public, error)
	UpdateUser(ctx context.Context, id string, req user.UpdateUserRequest) (user.Public, error)
	DeleteUser(ctx context.Context, id string) (bool, error)
}

type UsersHandler struct {
	users UsersService
	log   *slog.Logger
}

func NewUsersHandler(users UsersService, log *slog.Logger) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}

	return &UsersHandler{users: users, log: log}
}

// ListUsersQuery bounds are checked by the binder so bad values never reach
// the service.
type ListUsersQuery struct {
	Skip  int `form:"skip,default=0" binding:"gte=0"`
	Limit int `form:"limit,default=100" binding:"gte=1,lte=100"`
}

func (h *UsersHandler) CreateUser(ctx *gin.Context) {
	var req user.CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	created, err := h.users.CreateUser(ctx.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			RespondBadRequest(ctx, "email_taken", "The email is already registered")
		case errors.Is(err, user.ErrPasswordTooLong):
			RespondBadRequest(ctx, "password_too_long", "Password must be at most 72 bytes")
		default:
			h.internal(ctx, "Could not create user", err)
		}
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

func (h *UsersHandler) ListUsers(ctx *gin.Context) {
	q := ListUsersQuery{Limit: defaultListLimit}

	if !BindQuery(ctx, &q) {
		return
	}

	users, err := h.users.GetUsers(ctx.Request.Context(), q.Skip, q.Limit)
	if err != nil {
		h.internal(ctx, "Could not list users", err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, users)
}

func (h *UsersHandler) CountUsers(ctx *gin.Context) {
	n, err := h.users.GetUserCount(ctx.Request.Context())
	if err != nil {
		h.internal(ctx, "Could not count users", err)
		return
	}

	ctx.JSON(http.StatusOK, n)
}

func (h *UsersHandler) GetUserByID(ctx *gin.Context) {
	id := ctx.Param("id")

	u, err := h.users.GetUserByID(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		h.internal(ctx, "Could not fetch user", err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, u)
}

func (h *UsersHandler) UpdateUser(ctx *gin.Context) {
	id := ctx.Param("id")

	var req user.UpdateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.users.UpdateUser(ctx.Request.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "User not found")
		case errors.Is(err, user.ErrEmailTaken):
			RespondBadRequest(ctx, "email_taken", "The email is already registered")
		default:
			h.internal(ctx, "Could not update user", err)
		}
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) DeleteUser(ctx *gin.Context) {
	id := ctx.Param("id")

	deleted, err := h.users.DeleteUser(ctx.Request.Context(), id)
	if err != nil {
		h.internal(ctx, "Could not delete user", err)
		return
	}

	if !deleted {
		RespondNotFound(ctx, "User not found")
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *UsersHandler) internal(ctx *gin.Context, message string, err error) {
	h.log.ErrorContext(ctx.Request.Context(), message,
		"err", err,
		"request_id", requestIDFrom(ctx),
	)
	RespondInternal(ctx, message)
}
