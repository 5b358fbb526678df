package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facegate/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/facegate/internal/auth"
	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
	"github.com/saturnino-fabrica-de-software/facegate/internal/service"
)

// MockSessionManager is a mock implementation of SessionManager
type MockSessionManager struct {
	mock.Mock
}

func (m *MockSessionManager) StartVerification(deviceID string) (domain.SessionSnapshot, error) {
	args := m.Called(deviceID)
	return args.Get(0).(domain.SessionSnapshot), args.Error(1)
}

func (m *MockSessionManager) StartEnrollment(username, deviceID string) (domain.SessionSnapshot, error) {
	args := m.Called(username, deviceID)
	return args.Get(0).(domain.SessionSnapshot), args.Error(1)
}

func (m *MockSessionManager) Get(id uuid.UUID) (domain.SessionSnapshot, error) {
	args := m.Called(id)
	return args.Get(0).(domain.SessionSnapshot), args.Error(1)
}

func (m *MockSessionManager) PushFrame(id uuid.UUID, frame []byte) error {
	args := m.Called(id, frame)
	return args.Error(0)
}

func (m *MockSessionManager) Retry(id uuid.UUID) (domain.SessionSnapshot, error) {
	args := m.Called(id)
	return args.Get(0).(domain.SessionSnapshot), args.Error(1)
}

func (m *MockSessionManager) ConfirmEnrollment(ctx context.Context, id uuid.UUID, accept bool) (domain.SessionSnapshot, error) {
	args := m.Called(ctx, id, accept)
	return args.Get(0).(domain.SessionSnapshot), args.Error(1)
}

func (m *MockSessionManager) Cancel(id uuid.UUID) (domain.SessionSnapshot, error) {
	args := m.Called(id)
	return args.Get(0).(domain.SessionSnapshot), args.Error(1)
}

// MockFaceLogin is a mock implementation of FaceLogin
type MockFaceLogin struct {
	mock.Mock
}

func (m *MockFaceLogin) ConfirmFaceLogin(ctx context.Context, sessionID uuid.UUID) (*service.Login, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Login), args.Error(1)
}

var sessionTokens = auth.NewTokenService("secret", "facegate-test", time.Hour)

// enrollRequest builds a start-enrollment request logged in as owner.
// An empty owner sends no token.
func enrollRequest(t *testing.T, owner string, body StartEnrollmentRequest) *http.Request {
	t.Helper()

	req := jsonRequest(t, "POST", "/v1/sessions/enrollment", body)
	if owner != "" {
		token, _, err := sessionTokens.Issue(owner, auth.MethodPassword, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func sessionApp(sessions SessionManager, logins FaceLogin) *fiber.App {
	h := NewSessionHandler(sessions, logins, testLogger())

	app := newTestApp()
	app.Post("/v1/sessions/verification", h.StartVerification)
	app.Post("/v1/sessions/enrollment", middleware.Auth(sessionTokens, testLogger()), h.StartEnrollment)
	app.Get("/v1/sessions/:id", h.Get)
	app.Post("/v1/sessions/:id/frames", h.PushFrame)
	app.Post("/v1/sessions/:id/retry", h.Retry)
	app.Post("/v1/sessions/:id/confirm", h.Confirm)
	app.Delete("/v1/sessions/:id", h.Cancel)
	return app
}

func TestSessionHandler_StartVerification(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name       string
		body       interface{}
		setupMock  func(*MockSessionManager)
		wantStatus int
		wantCode   string
	}{
		{
			name: "started",
			body: StartVerificationRequest{DeviceID: "kiosk"},
			setupMock: func(m *MockSessionManager) {
				m.On("StartVerification", "kiosk").Return(domain.SessionSnapshot{
					ID: id, Mode: domain.ModeVerify, Status: domain.StatusPolling, DeviceID: "kiosk",
				}, nil)
			},
			wantStatus: 201,
		},
		{
			name: "device busy",
			body: StartVerificationRequest{DeviceID: "kiosk"},
			setupMock: func(m *MockSessionManager) {
				m.On("StartVerification", "kiosk").Return(domain.SessionSnapshot{}, domain.ErrDeviceBusy)
			},
			wantStatus: 409,
			wantCode:   "DEVICE_BUSY",
		},
		{
			name:       "missing device",
			body:       StartVerificationRequest{},
			setupMock:  func(m *MockSessionManager) {},
			wantStatus: 422,
			wantCode:   "VALIDATION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &MockSessionManager{}
			tt.setupMock(sessions)

			resp, err := sessionApp(sessions, &MockFaceLogin{}).Test(jsonRequest(t, "POST", "/v1/sessions/verification", tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, resp))
			} else {
				var snap domain.SessionSnapshot
				decode(t, resp, &snap)
				assert.Equal(t, id, snap.ID)
				assert.Equal(t, domain.StatusPolling, snap.Status)
			}

			sessions.AssertExpectations(t)
		})
	}
}

func TestSessionHandler_StartEnrollment(t *testing.T) {
	t.Run("unknown user", func(t *testing.T) {
		sessions := &MockSessionManager{}
		sessions.On("StartEnrollment", "mallory", "kiosk").Return(domain.SessionSnapshot{}, domain.ErrUnknownUser)

		resp, err := sessionApp(sessions, &MockFaceLogin{}).Test(enrollRequest(t, "mallory",
			StartEnrollmentRequest{Username: " mallory ", DeviceID: "kiosk"}))
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)
		assert.Equal(t, "UNKNOWN_USER", errorCode(t, resp))
	})

	t.Run("started", func(t *testing.T) {
		sessions := &MockSessionManager{}
		sessions.On("StartEnrollment", "carol", "kiosk").Return(domain.SessionSnapshot{
			ID: uuid.New(), Mode: domain.ModeEnroll, Status: domain.StatusCapturing, Username: "carol",
		}, nil)

		resp, err := sessionApp(sessions, &MockFaceLogin{}).Test(enrollRequest(t, "carol",
			StartEnrollmentRequest{Username: "carol", DeviceID: "kiosk"}))
		require.NoError(t, err)
		assert.Equal(t, 201, resp.StatusCode)
		sessions.AssertExpectations(t)
	})

	t.Run("username taken from token", func(t *testing.T) {
		sessions := &MockSessionManager{}
		sessions.On("StartEnrollment", "carol", "kiosk").Return(domain.SessionSnapshot{
			ID: uuid.New(), Mode: domain.ModeEnroll, Status: domain.StatusCapturing, Username: "carol",
		}, nil)

		resp, err := sessionApp(sessions, &MockFaceLogin{}).Test(enrollRequest(t, "carol",
			StartEnrollmentRequest{DeviceID: "kiosk"}))
		require.NoError(t, err)
		assert.Equal(t, 201, resp.StatusCode)
		sessions.AssertExpectations(t)
	})

	t.Run("another user", func(t *testing.T) {
		sessions := &MockSessionManager{}

		resp, err := sessionApp(sessions, &MockFaceLogin{}).Test(enrollRequest(t, "mallory",
			StartEnrollmentRequest{Username: "alice", DeviceID: "kiosk"}))
		require.NoError(t, err)
		assert.Equal(t, 403, resp.StatusCode)
		assert.Equal(t, "FORBIDDEN", errorCode(t, resp))
		sessions.AssertNotCalled(t, "StartEnrollment", mock.Anything, mock.Anything)
	})

	t.Run("no token", func(t *testing.T) {
		sessions := &MockSessionManager{}

		resp, err := sessionApp(sessions, &MockFaceLogin{}).Test(enrollRequest(t, "",
			StartEnrollmentRequest{Username: "alice", DeviceID: "kiosk"}))
		require.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode)
		assert.Equal(t, "UNAUTHORIZED", errorCode(t, resp))
		sessions.AssertNotCalled(t, "StartEnrollment", mock.Anything, mock.Anything)
	})

	t.Run("missing device", func(t *testing.T) {
		resp, err := sessionApp(&MockSessionManager{}, &MockFaceLogin{}).Test(enrollRequest(t, "carol",
			StartEnrollmentRequest{Username: "carol"}))
		require.NoError(t, err)
		assert.Equal(t, 422, resp.StatusCode)
	})
}

func TestSessionHandler_Get(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		id := uuid.New()
		sessions := &MockSessionManager{}
		sessions.On("Get", id).Return(domain.SessionSnapshot{}, domain.ErrSessionNotFound)

		resp, err := sessionApp(sessions, &MockFaceLogin{}).Test(httptest.NewRequest("GET", "/v1/sessions/"+id.String(), nil))
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)
		assert.Equal(t, "SESSION_NOT_FOUND", errorCode(t, resp))
	})

	t.Run("malformed id", func(t *testing.T) {
		resp, err := sessionApp(&MockSessionManager{}, &MockFaceLogin{}).Test(httptest.NewRequest("GET", "/v1/sessions/nope", nil))
		require.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
	})
}

func TestSessionHandler_PushFrame(t *testing.T) {
	id := uuid.New()
	frame := []byte(`{"faces":[[0.1,0.2]]}`)

	t.Run("accepted", func(t *testing.T) {
		sessions := &MockSessionManager{}
		sessions.On("PushFrame", id, frame).Return(nil)

		req := httptest.NewRequest("POST", "/v1/sessions/"+id.String()+"/frames", bytes.NewReader(frame))
		resp, err := sessionApp(sessions, &MockFaceLogin{}).Test(req)
		require.NoError(t, err)
		assert.Equal(t, 202, resp.StatusCode)
		sessions.AssertExpectations(t)
	})

	t.Run("empty body", func(t *testing.T) {
		sessions := &MockSessionManager{}

		req := httptest.NewRequest("POST", "/v1/sessions/"+id.String()+"/frames", nil)
		resp, err := sessionApp(sessions, &MockFaceLogin{}).Test(req)
		require.NoError(t, err)
		assert.Equal(t, 422, resp.StatusCode)
		sessions.AssertNotCalled(t, "PushFrame", mock.Anything, mock.Anything)
	})

	t.Run("session stopped", func(t *testing.T) {
		sessions := &MockSessionManager{}
		sessions.On("PushFrame", id, frame).Return(domain.ErrInvalidSessionState)

		req := httptest.NewRequest("POST", "/v1/sessions/"+id.String()+"/frames", bytes.NewReader(frame))
		resp, err := sessionApp(sessions, &MockFaceLogin{}).Test(req)
		require.NoError(t, err)
		assert.Equal(t, 409, resp.StatusCode)
	})
}

func TestSessionHandler_Retry(t *testing.T) {
	id := uuid.New()
	sessions := &MockSessionManager{}
	sessions.On("Retry", id).Return(domain.SessionSnapshot{ID: id, Status: domain.StatusPolling}, nil)

	resp, err := sessionApp(sessions, &MockFaceLogin{}).Test(httptest.NewRequest("POST", "/v1/sessions/"+id.String()+"/retry", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var snap domain.SessionSnapshot
	decode(t, resp, &snap)
	assert.Equal(t, domain.StatusPolling, snap.Status)
}

func TestSessionHandler_ConfirmVerification(t *testing.T) {
	id := uuid.New()
	confidence := 70.0

	t.Run("issues a face login token", func(t *testing.T) {
		sessions := &MockSessionManager{}
		logins := &MockFaceLogin{}
		sessions.On("Get", id).Return(domain.SessionSnapshot{ID: id, Mode: domain.ModeVerify, Status: domain.StatusMatched}, nil)
		logins.On("ConfirmFaceLogin", mock.Anything, id).Return(&service.Login{
			Username:   "alice",
			Method:     auth.MethodFace,
			Confidence: &confidence,
			Token:      "jwt",
		}, nil)

		resp, err := sessionApp(sessions, logins).Test(httptest.NewRequest("POST", "/v1/sessions/"+id.String()+"/confirm", nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		var login service.Login
		decode(t, resp, &login)
		assert.Equal(t, "alice", login.Username)
		assert.Equal(t, auth.MethodFace, login.Method)
		require.NotNil(t, login.Confidence)
		assert.Equal(t, 70.0, *login.Confidence)
	})

	t.Run("confidence too low", func(t *testing.T) {
		sessions := &MockSessionManager{}
		logins := &MockFaceLogin{}
		sessions.On("Get", id).Return(domain.SessionSnapshot{ID: id, Mode: domain.ModeVerify, Status: domain.StatusMatched}, nil)
		logins.On("ConfirmFaceLogin", mock.Anything, id).Return(nil, domain.ErrLowConfidence)

		resp, err := sessionApp(sessions, logins).Test(httptest.NewRequest("POST", "/v1/sessions/"+id.String()+"/confirm", nil))
		require.NoError(t, err)
		assert.Equal(t, 403, resp.StatusCode)
		assert.Equal(t, "LOW_CONFIDENCE", errorCode(t, resp))
	})
}

func TestSessionHandler_ConfirmEnrollment(t *testing.T) {
	id := uuid.New()

	t.Run("accept", func(t *testing.T) {
		sessions := &MockSessionManager{}
		sessions.On("Get", id).Return(domain.SessionSnapshot{ID: id, Mode: domain.ModeEnroll, Status: domain.StatusAwaitingConfirmation}, nil)
		sessions.On("ConfirmEnrollment", mock.Anything, id, true).Return(domain.SessionSnapshot{ID: id, Mode: domain.ModeEnroll, Status: domain.StatusDone}, nil)

		accept := true
		resp, err := sessionApp(sessions, &MockFaceLogin{}).Test(jsonRequest(t, "POST", "/v1/sessions/"+id.String()+"/confirm", ConfirmEnrollmentRequest{Accept: &accept}))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		var snap domain.SessionSnapshot
		decode(t, resp, &snap)
		assert.Equal(t, domain.StatusDone, snap.Status)
	})

	t.Run("accept is required", func(t *testing.T) {
		sessions := &MockSessionManager{}
		sessions.On("Get", id).Return(domain.SessionSnapshot{ID: id, Mode: domain.ModeEnroll, Status: domain.StatusAwaitingConfirmation}, nil)

		resp, err := sessionApp(sessions, &MockFaceLogin{}).Test(jsonRequest(t, "POST", "/v1/sessions/"+id.String()+"/confirm", map[string]string{}))
		require.NoError(t, err)
		assert.Equal(t, 422, resp.StatusCode)
		sessions.AssertNotCalled(t, "ConfirmEnrollment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("commit failed", func(t *testing.T) {
		sessions := &MockSessionManager{}
		sessions.On("Get", id).Return(domain.SessionSnapshot{ID: id, Mode: domain.ModeEnroll, Status: domain.StatusAwaitingConfirmation}, nil)
		sessions.On("ConfirmEnrollment", mock.Anything, id, true).Return(domain.SessionSnapshot{}, domain.ErrDirectoryIO)

		accept := true
		resp, err := sessionApp(sessions, &MockFaceLogin{}).Test(jsonRequest(t, "POST", "/v1/sessions/"+id.String()+"/confirm", ConfirmEnrollmentRequest{Accept: &accept}))
		require.NoError(t, err)
		assert.Equal(t, 503, resp.StatusCode)
		assert.Equal(t, "DIRECTORY_IO_ERROR", errorCode(t, resp))
	})
}

func TestSessionHandler_Cancel(t *testing.T) {
	id := uuid.New()

	t.Run("cancelled", func(t *testing.T) {
		sessions := &MockSessionManager{}
		sessions.On("Cancel", id).Return(domain.SessionSnapshot{ID: id, Status: domain.StatusCancelled}, nil)

		resp, err := sessionApp(sessions, &MockFaceLogin{}).Test(httptest.NewRequest("DELETE", "/v1/sessions/"+id.String(), nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("already finished", func(t *testing.T) {
		sessions := &MockSessionManager{}
		sessions.On("Cancel", id).Return(domain.SessionSnapshot{}, domain.ErrInvalidSessionState)

		resp, err := sessionApp(sessions, &MockFaceLogin{}).Test(httptest.NewRequest("DELETE", "/v1/sessions/"+id.String(), nil))
		require.NoError(t, err)
		assert.Equal(t, 409, resp.StatusCode)
		assert.Equal(t, "INVALID_SESSION_STATE", errorCode(t, resp))
	})
}
