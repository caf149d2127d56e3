package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/zfogg/sidechain/profiles/internal/logger"
	"github.com/zfogg/sidechain/profiles/internal/telemetry"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const userAgent = "Sidechain-Profiles-CLI/0.1.0"

// New creates a resty client for the profile API. token may be empty.
func New(baseURL string, timeout time.Duration, token string) *resty.Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := resty.New().
		SetTransport(telemetry.NewInstrumentedTransport(nil)).
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	if token != "" {
		c.SetAuthToken(token)
	}

	c.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		logger.Log.Debug("HTTP request", zap.String("method", req.Method), zap.String("url", req.URL))
		return nil
	})
	c.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.Log.Debug("HTTP response",
			zap.Int("status", resp.StatusCode()),
			zap.Duration("latency", resp.Time()),
		)
		return nil
	})

	return c
}

// ErrorResponse is the error body the profile API returns
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// APIError is a non-2xx response from the profile API
type APIError struct {
	Code       string
	Message    string
	Field      string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%d] %s: %s (field: %s)", e.StatusCode, e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%d] %s: %s", e.StatusCode, e.Code, e.Message)
}

// ParseError builds an APIError from a failed response
func ParseError(resp *resty.Response) error {
	statusCode := resp.StatusCode()

	var errResp ErrorResponse
	if err := json.Unmarshal(resp.Body(), &errResp); err == nil && errResp.Code != "" {
		return &APIError{
			Code:       errResp.Code,
			Message:    errResp.Message,
			Field:      errResp.Field,
			StatusCode: statusCode,
		}
	}

	return &APIError{
		Code:       "unknown_error",
		Message:    string(resp.Body()),
		StatusCode: statusCode,
	}
}

// CheckResponse turns transport errors and non-2xx responses into errors
func CheckResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return ParseError(resp)
	}
	return nil
}

// IsUnauthorized checks if err is due to missing or invalid authentication
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// IsNotFound checks if err is a 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// Profile is the authenticated user's profile as the API returns it
type Profile struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Username          string    `json:"username"`
	DisplayName       string    `json:"display_name"`
	ProfilePictureURL string    `json:"profile_picture_url"`
	AvatarURL         string    `json:"avatar_url"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type profileResponse struct {
	User Profile `json:"user"`
}

// ProfileAPI calls the /api/v1/users/me endpoints
type ProfileAPI struct {
	http *resty.Client
}

func NewProfileAPI(c *resty.Client) *ProfileAPI {
	return &ProfileAPI{http: c}
}

// GetMe fetches the authenticated user's profile
func (a *ProfileAPI) GetMe(ctx context.Context) (*Profile, error) {
	var out profileResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/v1/users/me")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// PatchMe sends a partial profile update. Omitted fields are left unchanged.
func (a *ProfileAPI) PatchMe(ctx context.Context, body map[string]string) (*Profile, error) {
	var out profileResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Patch("/api/v1/users/me")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &out.User, nil
}
