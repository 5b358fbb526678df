package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/facegate/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
	"github.com/saturnino-fabrica-de-software/facegate/internal/service"
)

// AccountService interface for the service
type AccountService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.UserSummary, error)
	Login(ctx context.Context, username, password string) (*service.Login, error)
	ListUsers(ctx context.Context) ([]service.UserSummary, error)
}

// AccountHandler handles registration and password login
type AccountHandler struct {
	service AccountService
	logger  *slog.Logger
}

func NewAccountHandler(service AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRequest keeps the field names of the original sign-up form.
type RegisterRequest struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UsersResponse struct {
	Users []service.UserSummary `json:"users"`
	Total int                   `json:"total"`
}

type MeResponse struct {
	Username string `json:"username"`
	Method   string `json:"method"`
}

// Register POST /v1/users - create an account without a face
func (h *AccountHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	user, err := h.service.Register(c.Context(), service.RegisterInput{
		Username: req.Username,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

// List GET /v1/users
func (h *AccountHandler) List(c *fiber.Ctx) error {
	users, err := h.service.ListUsers(c.Context())
	if err != nil {
		return err
	}

	return c.JSON(UsersResponse{Users: users, Total: len(users)})
}

// Login POST /v1/login - password login
func (h *AccountHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}
	if req.Username == "" || req.Password == "" {
		return domain.ErrValidationFailed.WithError(errors.New("username and password are required"))
	}

	login, err := h.service.Login(c.Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(login)
}

// Me GET /v1/me - the user behind the session token
func (h *AccountHandler) Me(c *fiber.Ctx) error {
	username, err := middleware.GetUsername(c)
	if err != nil {
		return err
	}

	return c.JSON(MeResponse{
		Username: username,
		Method:   string(middleware.GetLoginMethod(c)),
	})
}
