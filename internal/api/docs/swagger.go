package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// UserResponse represents a directory entry without its feature vector
type UserResponse struct {
	Username   string `json:"username" example:"alice"`
	FullName   string `json:"full_name" example:"Alice Liddell"`
	HasFace    bool   `json:"has_face" example:"true"`
	FaceMethod string `json:"face_method,omitempty" example:"embedding"`
}

// UsersResponse represents the list of registered users
type UsersResponse struct {
	Users []UserResponse `json:"users"`
	Total int            `json:"total" example:"1"`
}

// LoginResponse represents an issued session token
type LoginResponse struct {
	Username   string  `json:"username" example:"alice"`
	FullName   string  `json:"full_name" example:"Alice Liddell"`
	Method     string  `json:"method" example:"face"`
	Confidence float64 `json:"confidence,omitempty" example:"87.5"`
	Token      string  `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	ExpiresAt  string  `json:"expires_at" example:"2024-01-02T00:00:00Z"`
}

// MeResponse represents the caller of an authenticated request
type MeResponse struct {
	Username string `json:"username" example:"alice"`
	Method   string `json:"method" example:"password"`
}

// SessionResponse represents the observable state of a session
type SessionResponse struct {
	ID         string  `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Mode       string  `json:"mode" example:"verify"`
	Status     string  `json:"status" example:"polling"`
	Username   string  `json:"username,omitempty" example:"alice"`
	DeviceID   string  `json:"device_id" example:"kiosk-1"`
	StartedAt  string  `json:"started_at" example:"2024-01-01T00:00:00Z"`
	Deadline   string  `json:"deadline" example:"2024-01-01T00:00:05Z"`
	Confidence float64 `json:"confidence,omitempty" example:"87.5"`
	Attempts   int     `json:"attempts" example:"12"`
	ErrorCode  string  `json:"error_code,omitempty" example:"DEVICE_BUSY"`
	UpdatedAt  string  `json:"updated_at" example:"2024-01-01T00:00:01Z"`
}

// HealthResponse represents the liveness and readiness probes
type HealthResponse struct {
	Status  string            `json:"status" example:"ready"`
	Version string            `json:"version,omitempty" example:"v1.0.0"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

// EmptyResponse represents no content response (202)
type EmptyResponse struct{}

var (
	errValidation   = response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity")
	errBadRequest   = response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Bad Request")
	errNotFound     = response.New(ErrorResponse{Code: "SESSION_NOT_FOUND", Message: "Session not found or already reaped"}, "404", "Not Found")
	errState        = response.New(ErrorResponse{Code: "INVALID_SESSION_STATE", Message: "Operation not allowed in the current session state"}, "409", "Conflict")
	errDirectory    = response.New(ErrorResponse{Code: "DIRECTORY_IO_ERROR", Message: "User directory could not be read or written"}, "503", "Service Unavailable")
	errRateLimit    = response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded, please try again later"}, "429", "Too Many Requests")
	errInternal     = response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error")
	sessionIDParam  = parameter.StrParam("id", parameter.Path, parameter.WithDescription("Session UUID"))
	jsonConsumption = []mime.MIME{mime.JSON}
	jsonProduction  = []mime.MIME{mime.JSON}
)

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Facegate API",
		Version:     "v1.0.0",
		Description: "Face enrollment and face login against a local user directory",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	endpoints := []*endpoint.EndPoint{
		// Accounts endpoints

		// POST /v1/users - Register
		endpoint.New(
			endpoint.POST,
			"/users",
			endpoint.WithTags("Accounts"),
			endpoint.WithSummary("Register a user"),
			endpoint.WithDescription("Creates a user without a face. Body: {\"username\", \"fullName\", \"password\"}. Usernames are trimmed and compared case-sensitively."),
			endpoint.WithConsume(jsonConsumption),
			endpoint.WithProduce(jsonProduction),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(UserResponse{}, "201", "User registered"),
			}),
			endpoint.WithErrors([]response.Response{
				errBadRequest,
				response.New(ErrorResponse{Code: "USER_EXISTS", Message: "Username already exists"}, "409", "Conflict"),
				errValidation,
				errRateLimit,
				errDirectory,
			}),
		),

		// GET /v1/users - List users
		endpoint.New(
			endpoint.GET,
			"/users",
			endpoint.WithTags("Accounts"),
			endpoint.WithSummary("List registered users"),
			endpoint.WithDescription("Lists every user in the directory and whether a face is enrolled"),
			endpoint.WithProduce(jsonProduction),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(UsersResponse{}, "200", "Users listed"),
			}),
			endpoint.WithErrors([]response.Response{errDirectory}),
		),

		// POST /v1/login - Password login
		endpoint.New(
			endpoint.POST,
			"/login",
			endpoint.WithTags("Accounts"),
			endpoint.WithSummary("Log in with a password"),
			endpoint.WithDescription("Body: {\"username\", \"password\"}. Returns a bearer token."),
			endpoint.WithConsume(jsonConsumption),
			endpoint.WithProduce(jsonProduction),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(LoginResponse{}, "200", "Logged in"),
			}),
			endpoint.WithErrors([]response.Response{
				errBadRequest,
				response.New(ErrorResponse{Code: "INVALID_CREDENTIALS", Message: "Invalid username or password"}, "401", "Unauthorized"),
				errRateLimit,
				errDirectory,
			}),
		),

		// GET /v1/me - Current user
		endpoint.New(
			endpoint.GET,
			"/me",
			endpoint.WithTags("Accounts"),
			endpoint.WithSummary("Describe the logged-in user"),
			endpoint.WithDescription("Returns the username and login method carried by the bearer token"),
			endpoint.WithProduce(jsonProduction),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(MeResponse{}, "200", "Token is valid"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "UNAUTHORIZED", Message: "Invalid or missing session token"}, "401", "Unauthorized"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}}),
		),

		// Sessions endpoints

		// POST /v1/sessions/verification - Start face login
		endpoint.New(
			endpoint.POST,
			"/sessions/verification",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Start a verification session"),
			endpoint.WithDescription("Body: {\"device_id\"}. Polls frames pushed for the session until a user matches or the deadline passes."),
			endpoint.WithConsume(jsonConsumption),
			endpoint.WithProduce(jsonProduction),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SessionResponse{}, "201", "Session started"),
			}),
			endpoint.WithErrors([]response.Response{
				errBadRequest,
				response.New(ErrorResponse{Code: "DEVICE_BUSY", Message: "Capture device is held by another session"}, "409", "Conflict"),
				errValidation,
				errInternal,
			}),
		),

		// POST /v1/sessions/enrollment - Start face enrollment
		endpoint.New(
			endpoint.POST,
			"/sessions/enrollment",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Start an enrollment session"),
			endpoint.WithDescription("Body: {\"device_id\", \"username\"}. Captures one face for the logged in user; username may be omitted and must otherwise match the token."),
			endpoint.WithConsume(jsonConsumption),
			endpoint.WithProduce(jsonProduction),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SessionResponse{}, "201", "Session started"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}}),
			endpoint.WithErrors([]response.Response{
				errBadRequest,
				response.New(ErrorResponse{Code: "UNAUTHORIZED", Message: "Invalid or missing session token"}, "401", "Unauthorized"),
				response.New(ErrorResponse{Code: "FORBIDDEN", Message: "Not allowed for the logged in user"}, "403", "Forbidden"),
				response.New(ErrorResponse{Code: "UNKNOWN_USER", Message: "User not found in directory"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "DEVICE_BUSY", Message: "Capture device is held by another session"}, "409", "Conflict"),
				errValidation,
				errDirectory,
			}),
		),

		// GET /v1/sessions/:id - Session state
		endpoint.New(
			endpoint.GET,
			"/sessions/{id}",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Get a session"),
			endpoint.WithProduce(jsonProduction),
			endpoint.WithParams(sessionIDParam),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SessionResponse{}, "200", "Session state"),
			}),
			endpoint.WithErrors([]response.Response{errBadRequest, errNotFound}),
		),

		// POST /v1/sessions/:id/frames - Push a frame
		endpoint.New(
			endpoint.POST,
			"/sessions/{id}/frames",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Push a camera frame"),
			endpoint.WithDescription("The raw body is one frame (max 10MB). Frames are also accepted over /ws/sessions/{id}."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("application/octet-stream")}),
			endpoint.WithParams(sessionIDParam),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EmptyResponse{}, "202", "Frame queued"),
			}),
			endpoint.WithErrors([]response.Response{errBadRequest, errNotFound, errState, errValidation}),
		),

		// POST /v1/sessions/:id/retry - Retry a timed out verification
		endpoint.New(
			endpoint.POST,
			"/sessions/{id}/retry",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Retry a timed out verification"),
			endpoint.WithProduce(jsonProduction),
			endpoint.WithParams(sessionIDParam),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SessionResponse{}, "200", "Polling again"),
			}),
			endpoint.WithErrors([]response.Response{errBadRequest, errNotFound, errState}),
		),

		// POST /v1/sessions/:id/confirm - Confirm
		endpoint.New(
			endpoint.POST,
			"/sessions/{id}/confirm",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Confirm a session"),
			endpoint.WithDescription("A matched verification is turned into a face login token. An enrollment awaiting confirmation takes {\"accept\": bool}: true stores the face, false resumes capture."),
			endpoint.WithConsume(jsonConsumption),
			endpoint.WithProduce(jsonProduction),
			endpoint.WithParams(sessionIDParam),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(LoginResponse{}, "200", "Face login issued"),
				response.New(SessionResponse{}, "200", "Enrollment decided"),
			}),
			endpoint.WithErrors([]response.Response{
				errBadRequest,
				response.New(ErrorResponse{Code: "LOW_CONFIDENCE", Message: "Match confidence too low to log in"}, "403", "Forbidden"),
				errNotFound,
				errState,
				errValidation,
				errDirectory,
			}),
		),

		// DELETE /v1/sessions/:id - Cancel
		endpoint.New(
			endpoint.DELETE,
			"/sessions/{id}",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Cancel a session"),
			endpoint.WithDescription("Stops the session and releases its capture device"),
			endpoint.WithProduce(jsonProduction),
			endpoint.WithParams(sessionIDParam),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SessionResponse{}, "200", "Session cancelled"),
			}),
			endpoint.WithErrors([]response.Response{errBadRequest, errNotFound, errState}),
		),

		// Health endpoints

		endpoint.New(
			endpoint.GET,
			"/health",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Liveness probe (served at the root, not under /v1)"),
			endpoint.WithProduce(jsonProduction),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "Process is up"),
			}),
		),

		endpoint.New(
			endpoint.GET,
			"/ready",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Readiness probe (served at the root, not under /v1)"),
			endpoint.WithProduce(jsonProduction),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "Dependencies reachable"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(HealthResponse{Status: "unavailable"}, "503", "A dependency is unreachable"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
