package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/LeventeLantos/account-provisioner/internal/model"
)

type capturedRequest struct {
	Method   string
	Path     string
	DeviceID string
	Body     []byte
}

func newTestServer(t *testing.T, status int, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			captured.Method = r.Method
			captured.Path = r.URL.Path
			captured.DeviceID = r.Header.Get(DeviceIDHeader)
			b, _ := ioReadAll(r)
			captured.Body = b
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthClient_Register_Success(t *testing.T) {
	t.Parallel()

	var captured capturedRequest
	srv := newTestServer(t, http.StatusOK, `{"isSucceed":true,"message":"OTP sent"}`, &captured)

	c := NewAuthClient(srv.URL+"/", time.Second)
	payload := NewRegisterPayload(model.CsvCandidate{Phone: "84912345678", Password: "p@ss", FirstName: "An"})

	res, err := c.Register(context.Background(), payload, "dev-1")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if _, ok := res.(RegisterOK); !ok {
		t.Fatalf("expected RegisterOK, got %#v", res)
	}

	if captured.Method != http.MethodPost {
		t.Fatalf("expected POST, got %q", captured.Method)
	}
	if captured.Path != "/auth/register" {
		t.Fatalf("expected path /auth/register, got %q", captured.Path)
	}
	if captured.DeviceID != "dev-1" {
		t.Fatalf("expected device id header dev-1, got %q", captured.DeviceID)
	}

	var got RegisterPayload
	if err := json.Unmarshal(captured.Body, &got); err != nil {
		t.Fatalf("failed to decode request json: %v body=%q", err, string(captured.Body))
	}
	if got.Phone != "0912345678" {
		t.Fatalf("expected normalized phone, got %q", got.Phone)
	}
	if got.ConfirmedPassword != "p@ss" || got.Password != "p@ss" {
		t.Fatalf("expected password and confirmation, got %+v", got)
	}
	if got.FirstName != "An" || got.LastName != model.DefaultLastName {
		t.Fatalf("expected names with defaults, got %q %q", got.FirstName, got.LastName)
	}
	if got.Gender != model.GenderMale || got.DateOfBirth != model.DefaultDateOfBirth {
		t.Fatalf("expected default gender and dob, got %q %q", got.Gender, got.DateOfBirth)
	}
	if got.Location == nil || got.Location.Source != model.LocationSourceCSV {
		t.Fatalf("expected default location, got %+v", got.Location)
	}
}

func TestAuthClient_Register_FailureEnvelope(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
	}{
		{"200 with isSucceed false", http.StatusOK},
		{"409 with isSucceed false", http.StatusConflict},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := newTestServer(t, tc.status, `{"isSucceed":false,"message":"Số điện thoại đã tồn tại"}`, nil)
			c := NewAuthClient(srv.URL, time.Second)

			res, err := c.Register(context.Background(), RegisterPayload{Phone: "0912345678"}, "dev")
			if err != nil {
				t.Fatalf("Register() error: %v", err)
			}
			failed, ok := res.(RegisterFailed)
			if !ok {
				t.Fatalf("expected RegisterFailed, got %#v", res)
			}
			if !strings.Contains(failed.Message, "tồn tại") {
				t.Fatalf("expected message to be kept, got %q", failed.Message)
			}
		})
	}
}

func TestAuthClient_Non2xxWithoutEnvelope_ReturnsAPIError(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, http.StatusBadGateway, `{"message":"upstream down"}`, nil)
	c := NewAuthClient(srv.URL, time.Second)

	_, err := c.Login(context.Background(), "0912345678", "pw", "dev")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", apiErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "unexpected status code: 502") {
		t.Fatalf("expected error to mention status code, got: %v", err)
	}
	if got := ErrorMessage(err); got != "upstream down" {
		t.Fatalf("expected API message to be preferred, got %q", got)
	}
}

func TestAuthClient_InvalidJSON_ReturnsErrorWithBody(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, http.StatusOK, "THIS IS NOT JSON", nil)
	c := NewAuthClient(srv.URL, time.Second)

	_, err := c.VerifyRegisterOTP(context.Background(), "0912345678", "123456", "dev")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	msg := err.Error()
	if !strings.Contains(msg, "failed to decode json") {
		t.Fatalf("expected decode error, got: %v", err)
	}
	if !strings.Contains(msg, `body="THIS IS NOT JSON"`) {
		t.Fatalf("expected error to include body, got: %v", err)
	}
	if got := ErrorMessage(err); got != msg {
		t.Fatalf("expected generic message fallback, got %q", got)
	}
}

func TestAuthClient_MissingIsSucceed_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, http.StatusOK, `{"message":"ok"}`, nil)
	c := NewAuthClient(srv.URL, time.Second)

	_, err := c.Register(context.Background(), RegisterPayload{Phone: "0912345678"}, "dev")
	if err == nil || !strings.Contains(err.Error(), "missing isSucceed") {
		t.Fatalf("expected missing isSucceed error, got: %v", err)
	}
}

func TestAuthClient_VerifyRegisterOTP(t *testing.T) {
	t.Parallel()

	var captured capturedRequest
	srv := newTestServer(t, http.StatusOK, `{"isSucceed":true}`, &captured)
	c := NewAuthClient(srv.URL, time.Second)

	res, err := c.VerifyRegisterOTP(context.Background(), "+84912345678", " 123456 ", "dev-9")
	if err != nil {
		t.Fatalf("VerifyRegisterOTP() error: %v", err)
	}
	if _, ok := res.(VerifyOK); !ok {
		t.Fatalf("expected VerifyOK, got %#v", res)
	}
	if captured.Path != "/auth/verify-register-otp" {
		t.Fatalf("unexpected path %q", captured.Path)
	}

	var got otpRequest
	if err := json.Unmarshal(captured.Body, &got); err != nil {
		t.Fatalf("failed to decode request json: %v", err)
	}
	if got.Phone != "0912345678" || got.OTP != "123456" {
		t.Fatalf("unexpected verify body %+v", got)
	}
}

func TestAuthClient_Login_Variants(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		body        string
		wantOK      bool
		wantNeedOTP bool
		wantTokens  bool
	}{
		{"needs otp", `{"isSucceed":true,"message":"WAIT","data":{"needOtp":true,"otpSample":"1234"}}`, true, true, false},
		{"tokens", `{"isSucceed":true,"data":{"needOtp":false,"tokens":{"accessToken":"a","refreshToken":"r"}}}`, true, false, true},
		{"no data", `{"isSucceed":true,"data":null}`, true, false, false},
		{"string data", `{"isSucceed":true,"data":"tok"}`, true, false, false},
		{"array data", `{"isSucceed":true,"data":[1,2]}`, true, false, false},
		{"mistyped needOtp", `{"isSucceed":true,"data":{"needOtp":"yes"}}`, true, false, false},
		{"failed", `{"isSucceed":false,"message":"wrong password"}`, false, false, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := newTestServer(t, http.StatusOK, tc.body, nil)
			c := NewAuthClient(srv.URL, time.Second)

			res, err := c.Login(context.Background(), "0912345678", "pw", "dev")
			if err != nil {
				t.Fatalf("Login() error: %v", err)
			}

			switch r := res.(type) {
			case LoginOK:
				if !tc.wantOK {
					t.Fatalf("expected LoginFailed, got %#v", r)
				}
				if r.NeedOTP != tc.wantNeedOTP {
					t.Fatalf("expected NeedOTP=%v, got %v", tc.wantNeedOTP, r.NeedOTP)
				}
				if (r.Tokens != nil) != tc.wantTokens {
					t.Fatalf("expected tokens=%v, got %+v", tc.wantTokens, r.Tokens)
				}
			case LoginFailed:
				if tc.wantOK {
					t.Fatalf("expected LoginOK, got %#v", r)
				}
				if r.Message != "wrong password" {
					t.Fatalf("unexpected message %q", r.Message)
				}
			default:
				t.Fatalf("unexpected result type %T", res)
			}
		})
	}
}

func TestAuthClient_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"isSucceed":true}`))
	}))
	defer srv.Close()

	c := NewAuthClient(srv.URL, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Login(ctx, "0912345678", "pw", "dev")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "context") &&
		!strings.Contains(strings.ToLower(err.Error()), "deadline") {
		t.Fatalf("expected context/deadline error, got: %v", err)
	}
}

func ioReadAll(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
