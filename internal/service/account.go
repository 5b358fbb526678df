package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facegate/internal/auth"
	"github.com/saturnino-fabrica-de-software/facegate/internal/directory"
	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
)

type TokenIssuer interface {
	Issue(username string, method auth.Method, confidence *float64) (string, time.Time, error)
}

// LoginConfirmer turns a matched verification session into a login.
type LoginConfirmer interface {
	ConfirmLogin(id uuid.UUID) (domain.MatchResult, error)
}

// RegisterInput is a new account. The face is enrolled later through an
// enrollment session.
type RegisterInput struct {
	Username string
	FullName string
	Password string
}

// Login is the result of a successful password or face login.
type Login struct {
	Username   string      `json:"username"`
	FullName   string      `json:"full_name"`
	Method     auth.Method `json:"method"`
	Confidence *float64    `json:"confidence,omitempty"`
	Token      string      `json:"token"`
	ExpiresAt  time.Time   `json:"expires_at"`
}

// UserSummary is the public view of a directory entry.
type UserSummary struct {
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	HasFace    bool   `json:"has_face"`
	FaceMethod string `json:"face_method,omitempty"`
}

// AccountService handles registration and both login paths on top of the
// user directory.
type AccountService struct {
	dir      directory.Directory
	tokens   TokenIssuer
	sessions LoginConfirmer
	logger   *slog.Logger

	// registerMu serializes this process's read-modify-write of the
	// directory during registration.
	registerMu sync.Mutex
}

func NewAccountService(dir directory.Directory, tokens TokenIssuer, sessions LoginConfirmer, logger *slog.Logger) *AccountService {
	return &AccountService{
		dir:      dir,
		tokens:   tokens,
		sessions: sessions,
		logger:   logger.With("component", "account"),
	}
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*UserSummary, error) {
	username := domain.NormalizeUsername(in.Username)
	if username == "" || in.FullName == "" || in.Password == "" {
		return nil, domain.ErrValidationFailed.WithError(errors.New("username, full name and password are required"))
	}

	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	users, err := s.dir.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", username, err)
	}

	if domain.FindUser(users, username) >= 0 {
		return nil, domain.ErrUserExists
	}

	users = append(users, domain.EnrolledUser{
		Username:   username,
		FullName:   in.FullName,
		Credential: in.Password,
	})

	if err := s.dir.SaveAll(ctx, users); err != nil {
		return nil, fmt.Errorf("register %s: %w", username, err)
	}

	s.logger.Info("user registered", "username", username)
	return &UserSummary{Username: username, FullName: in.FullName}, nil
}

// Login checks a username and password. Unknown users and wrong passwords
// produce the same error.
func (s *AccountService) Login(ctx context.Context, username, password string) (*Login, error) {
	username = domain.NormalizeUsername(username)
	if username == "" || password == "" {
		return nil, domain.ErrValidationFailed.WithError(errors.New("username and password are required"))
	}

	users, err := s.dir.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("login %s: %w", username, err)
	}

	i := domain.FindUser(users, username)
	if i < 0 || subtle.ConstantTimeCompare([]byte(users[i].Credential), []byte(password)) != 1 {
		s.logger.Warn("password login rejected", "username", username)
		return nil, domain.ErrInvalidCredentials
	}

	return s.issue(users[i], auth.MethodPassword, nil)
}

// ConfirmFaceLogin confirms a matched verification session and logs the
// matched user in.
func (s *AccountService) ConfirmFaceLogin(ctx context.Context, sessionID uuid.UUID) (*Login, error) {
	result, err := s.sessions.ConfirmLogin(sessionID)
	if err != nil {
		return nil, err
	}
	if result.CandidateUsername == nil {
		return nil, domain.ErrInternal.WithError(fmt.Errorf("session %s confirmed without a candidate", sessionID))
	}

	username := *result.CandidateUsername
	user := domain.EnrolledUser{Username: username}

	// The full name is cosmetic; a directory failure here does not undo the login.
	if users, err := s.dir.LoadAll(ctx); err == nil {
		if i := domain.FindUser(users, username); i >= 0 {
			user = users[i]
		}
	} else {
		s.logger.Warn("could not load full name for face login", "username", username, "error", err)
	}

	confidence := result.Confidence
	return s.issue(user, auth.MethodFace, &confidence)
}

func (s *AccountService) issue(user domain.EnrolledUser, method auth.Method, confidence *float64) (*Login, error) {
	token, expiresAt, err := s.tokens.Issue(user.Username, method, confidence)
	if err != nil {
		return nil, domain.ErrInternal.WithError(fmt.Errorf("issue token: %w", err))
	}

	s.logger.Info("user logged in", "username", user.Username, "method", string(method))

	return &Login{
		Username:   user.Username,
		FullName:   user.FullName,
		Method:     method,
		Confidence: confidence,
		Token:      token,
		ExpiresAt:  expiresAt,
	}, nil
}

// ListUsers returns every directory entry without credentials or vectors,
// in directory order.
func (s *AccountService) ListUsers(ctx context.Context) ([]UserSummary, error) {
	users, err := s.dir.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]UserSummary, 0, len(users))
	for i := range users {
		out = append(out, UserSummary{
			Username:   users[i].Username,
			FullName:   users[i].FullName,
			HasFace:    users[i].HasFace(),
			FaceMethod: users[i].FaceMethod,
		})
	}
	return out, nil
}
