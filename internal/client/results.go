package client

import "fmt"

// Each endpoint decodes into a closed set of results so callers switch on
// the concrete type instead of probing optional response fields.

type RegisterResult interface{ isRegisterResult() }

type RegisterOK struct{ Message string }

type RegisterFailed struct{ Message string }

func (RegisterOK) isRegisterResult()     {}
func (RegisterFailed) isRegisterResult() {}

type VerifyResult interface{ isVerifyResult() }

type VerifyOK struct{ Message string }

type VerifyFailed struct{ Message string }

func (VerifyOK) isVerifyResult()     {}
func (VerifyFailed) isVerifyResult() {}

type LoginResult interface{ isLoginResult() }

type LoginOK struct {
	Message string
	NeedOTP bool
	Tokens  *Tokens
}

type LoginFailed struct{ Message string }

func (LoginOK) isLoginResult()     {}
func (LoginFailed) isLoginResult() {}

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	AccessExp    int64  `json:"accessExp"`
	RefreshExp   int64  `json:"refreshExp"`
	Trust        bool   `json:"trust"`
}

// APIError is returned for non-2xx responses that do not carry a regular
// failure envelope. Message holds whatever message the body offered.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status code: %d body=%q", e.StatusCode, e.Body)
}
