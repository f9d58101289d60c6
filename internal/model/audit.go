package model

import "go.uber.org/zap/zapcore"

type AuthAction string

const (
	AuthRegister AuthAction = "REGISTER"
	AuthLogin    AuthAction = "LOGIN"
)

const (
	StatusFail    = 0
	StatusSuccess = 1
)

const (
	ActionRegister        = "REGISTER"
	ActionLoginFail       = "LOGIN_FAIL"
	ActionLoginPendingOTP = "LOGIN_PENDING_OTP"
	ActionLoginSuccess    = "LOGIN_SUCCESS"
	ActionLoginException  = "LOGIN_EXCEPTION"

	DetailPendingOTP = "PENDING_OTP"
)

// StatusEvent is the terminal disposition of one phone and action in one run.
type StatusEvent struct {
	Action   AuthAction `db:"action"`
	Phone    string     `db:"phone"`
	DeviceID string     `db:"device_id"`
	UserID   *int64     `db:"user_id"`
	Status   int        `db:"status"`
	Detail   string     `db:"detail"`
	LogID    int64      `db:"log_id"`
}

// ActionEvent is a narrative step, written regardless of terminal status.
type ActionEvent struct {
	UserID     *int64 `db:"user_id"`
	ActionName string `db:"action_name"`
	Detail     string `db:"detail"`
	LogID      int64  `db:"log_id"`
}

type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeSuccess
	OutcomePending
	OutcomeFail
)

// RunSummary counts terminal outcomes of one pipeline in one run.
type RunSummary struct {
	Success int `json:"success"`
	Pending int `json:"pending"`
	Fail    int `json:"fail"`
}

func (s *RunSummary) Add(o Outcome) {
	switch o {
	case OutcomeSuccess:
		s.Success++
	case OutcomePending:
		s.Pending++
	case OutcomeFail:
		s.Fail++
	}
}

func (s RunSummary) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("success", s.Success)
	enc.AddInt("pending", s.Pending)
	enc.AddInt("fail", s.Fail)
	return nil
}
