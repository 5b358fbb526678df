package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facegate/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
	"github.com/saturnino-fabrica-de-software/facegate/internal/service"
)

const (
	// MaxFrameSize bounds one uploaded frame.
	MaxFrameSize = 10 * 1024 * 1024 // 10MB
)

// SessionManager is the session API the handlers drive.
type SessionManager interface {
	StartVerification(deviceID string) (domain.SessionSnapshot, error)
	StartEnrollment(username, deviceID string) (domain.SessionSnapshot, error)
	Get(id uuid.UUID) (domain.SessionSnapshot, error)
	PushFrame(id uuid.UUID, frame []byte) error
	Retry(id uuid.UUID) (domain.SessionSnapshot, error)
	ConfirmEnrollment(ctx context.Context, id uuid.UUID, accept bool) (domain.SessionSnapshot, error)
	Cancel(id uuid.UUID) (domain.SessionSnapshot, error)
}

// FaceLogin confirms a matched verification and issues a token.
type FaceLogin interface {
	ConfirmFaceLogin(ctx context.Context, sessionID uuid.UUID) (*service.Login, error)
}

// SessionHandler handles enrollment and verification sessions
type SessionHandler struct {
	sessions SessionManager
	logins   FaceLogin
	logger   *slog.Logger
}

func NewSessionHandler(sessions SessionManager, logins FaceLogin, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logins:   logins,
		logger:   logger,
	}
}

type StartVerificationRequest struct {
	DeviceID string `json:"device_id"`
}

// StartEnrollmentRequest starts an enrollment for the logged in user.
// Username may be omitted; when set it must name that user.
type StartEnrollmentRequest struct {
	Username string `json:"username"`
	DeviceID string `json:"device_id"`
}

// ConfirmEnrollmentRequest answers "register this face?".
type ConfirmEnrollmentRequest struct {
	Accept *bool `json:"accept"`
}

// StartVerification POST /v1/sessions/verification
func (h *SessionHandler) StartVerification(c *fiber.Ctx) error {
	var req StartVerificationRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		return domain.ErrValidationFailed.WithError(errors.New("device_id is required"))
	}

	snap, err := h.sessions.StartVerification(deviceID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(snap)
}

// StartEnrollment POST /v1/sessions/enrollment (requires a session token)
func (h *SessionHandler) StartEnrollment(c *fiber.Ctx) error {
	owner, err := middleware.GetUsername(c)
	if err != nil {
		return err
	}

	var req StartEnrollmentRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	username := domain.NormalizeUsername(req.Username)
	if username == "" {
		username = owner
	}
	if username != owner {
		h.logger.Warn("enrollment for another user refused", "username", owner, "target", username)
		return domain.ErrForbidden.WithError(fmt.Errorf("%s cannot enroll a face for %s", owner, username))
	}

	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		return domain.ErrValidationFailed.WithError(errors.New("device_id is required"))
	}

	snap, err := h.sessions.StartEnrollment(username, deviceID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(snap)
}

// Get GET /v1/sessions/:id
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	snap, err := h.sessions.Get(id)
	if err != nil {
		return err
	}

	return c.JSON(snap)
}

// PushFrame POST /v1/sessions/:id/frames - the raw body is one frame
func (h *SessionHandler) PushFrame(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	body := c.Body()
	if len(body) == 0 {
		return domain.ErrValidationFailed.WithError(errors.New("frame is empty"))
	}
	if len(body) > MaxFrameSize {
		return domain.ErrValidationFailed.WithError(errors.New("frame exceeds 10MB"))
	}

	// fasthttp reuses the body buffer after the handler returns
	frame := append([]byte(nil), body...)

	if err := h.sessions.PushFrame(id, frame); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusAccepted)
}

// Retry POST /v1/sessions/:id/retry
func (h *SessionHandler) Retry(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	snap, err := h.sessions.Retry(id)
	if err != nil {
		return err
	}

	return c.JSON(snap)
}

// Confirm POST /v1/sessions/:id/confirm. A verification is turned into a
// login; an enrollment needs {"accept": bool}.
func (h *SessionHandler) Confirm(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	snap, err := h.sessions.Get(id)
	if err != nil {
		return err
	}

	if snap.Mode == domain.ModeVerify {
		login, err := h.logins.ConfirmFaceLogin(c.Context(), id)
		if err != nil {
			return err
		}
		return c.JSON(login)
	}

	var req ConfirmEnrollmentRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}
	if req.Accept == nil {
		return domain.ErrValidationFailed.WithError(errors.New("accept is required"))
	}

	snap, err = h.sessions.ConfirmEnrollment(c.Context(), id, *req.Accept)
	if err != nil {
		return err
	}

	return c.JSON(snap)
}

// Cancel DELETE /v1/sessions/:id
func (h *SessionHandler) Cancel(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	snap, err := h.sessions.Cancel(id)
	if err != nil {
		return err
	}

	return c.JSON(snap)
}

func sessionID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, domain.ErrBadRequest.WithError(errors.New("session id must be a uuid"))
	}
	return id, nil
}
