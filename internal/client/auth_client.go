package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LeventeLantos/account-provisioner/internal/model"
	"github.com/LeventeLantos/account-provisioner/internal/phone"
)

const (
	registerPath          = "/auth/register"
	verifyRegisterOTPPath = "/auth/verify-register-otp"
	loginPath             = "/auth/login"

	DeviceIDHeader = "X-Device-Id"
)

type AuthClient struct {
	baseURL string
	client  *http.Client
}

func NewAuthClient(baseURL string, timeout time.Duration) *AuthClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AuthClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type RegisterPayload struct {
	FirstName         string          `json:"firstName"`
	LastName          string          `json:"lastName"`
	Phone             string          `json:"phone"`
	DateOfBirth       string          `json:"dateOfBirth"`
	Password          string          `json:"password"`
	ConfirmedPassword string          `json:"confirmedPassword"`
	Gender            model.Gender    `json:"gender"`
	Location          *model.Location `json:"location,omitempty"`
}

// NewRegisterPayload builds the register body for a feed row with defaults applied.
func NewRegisterPayload(c model.CsvCandidate) RegisterPayload {
	c = c.WithDefaults()
	return RegisterPayload{
		FirstName:         c.FirstName,
		LastName:          c.LastName,
		Phone:             phone.Normalize(c.Phone),
		DateOfBirth:       c.DateOfBirth,
		Password:          c.Password,
		ConfirmedPassword: c.Password,
		Gender:            c.Gender,
		Location:          c.Location,
	}
}

type otpRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type envelope struct {
	IsSucceed *bool           `json:"isSucceed"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
}

func (e *envelope) succeeded() bool { return e.IsSucceed != nil && *e.IsSucceed }

type loginData struct {
	NeedOTP bool    `json:"needOtp"`
	Tokens  *Tokens `json:"tokens"`
}

func (c *AuthClient) Register(ctx context.Context, payload RegisterPayload, deviceID string) (RegisterResult, error) {
	payload.Phone = phone.Normalize(payload.Phone)

	env, err := c.post(ctx, registerPath, deviceID, payload)
	if err != nil {
		return nil, err
	}
	if !env.succeeded() {
		return RegisterFailed{Message: env.Message}, nil
	}
	return RegisterOK{Message: env.Message}, nil
}

func (c *AuthClient) VerifyRegisterOTP(ctx context.Context, rawPhone, otp, deviceID string) (VerifyResult, error) {
	env, err := c.post(ctx, verifyRegisterOTPPath, deviceID, otpRequest{
		Phone: phone.Normalize(rawPhone),
		OTP:   strings.TrimSpace(otp),
	})
	if err != nil {
		return nil, err
	}
	if !env.succeeded() {
		return VerifyFailed{Message: env.Message}, nil
	}
	return VerifyOK{Message: env.Message}, nil
}

func (c *AuthClient) Login(ctx context.Context, rawPhone, password, deviceID string) (LoginResult, error) {
	env, err := c.post(ctx, loginPath, deviceID, loginRequest{
		Phone:    phone.Normalize(rawPhone),
		Password: strings.TrimSpace(password),
	})
	if err != nil {
		return nil, err
	}
	if !env.succeeded() {
		return LoginFailed{Message: env.Message}, nil
	}

	// Only an object can carry needOtp; any other data shape is a plain success.
	var data loginData
	if len(env.Data) > 0 && env.Data[0] == '{' {
		_ = json.Unmarshal(env.Data, &data)
	}
	return LoginOK{Message: env.Message, NeedOTP: data.NeedOTP, Tokens: data.Tokens}, nil
}

// post sends body as JSON and decodes the response envelope. A non-2xx reply
// that still carries {"isSucceed": false} is a business failure, not an error.
func (c *AuthClient) post(ctx context.Context, path, deviceID string, body any) (*envelope, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(DeviceIDHeader, deviceID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && env.IsSucceed != nil && !*env.IsSucceed {
			return &env, nil
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
		if decodeErr == nil {
			apiErr.Message = env.Message
		}
		return nil, apiErr
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode json: %w body=%q", decodeErr, string(raw))
	}
	if env.IsSucceed == nil {
		return nil, fmt.Errorf("missing isSucceed in response body=%q", string(raw))
	}
	return &env, nil
}

// ErrorMessage extracts the most useful human-readable text from err,
// preferring a message supplied by the API over transport wording.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
