package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/LeventeLantos/account-provisioner/internal/client"
	"github.com/LeventeLantos/account-provisioner/internal/model"
	"github.com/LeventeLantos/account-provisioner/internal/phone"
	"github.com/LeventeLantos/account-provisioner/internal/repo"
)

const (
	defaultLoginFailMessage    = "LOGIN_FAIL"
	defaultLoginPendingMessage = "WAIT_OTP"
	loginSuccessDetail         = "OK"
)

type LoginRetrierConfig struct {
	CooldownMinutes int
	Limit           int
}

// LoginRetrier re-attempts login for registered users outside the cooldown window.
type LoginRetrier struct {
	api   AuthAPI
	users repo.UserRepository
	audit *Auditor
	cfg   LoginRetrierConfig
}

func NewLoginRetrier(api AuthAPI, users repo.UserRepository, audit *Auditor, cfg LoginRetrierConfig) *LoginRetrier {
	return &LoginRetrier{api: api, users: users, audit: audit, cfg: cfg}
}

// Run returns an error only when candidates could not be selected.
func (l *LoginRetrier) Run(ctx context.Context, run Run) (model.RunSummary, error) {
	var sum model.RunSummary

	candidates, err := l.users.LoginCandidates(ctx, l.cfg.CooldownMinutes, l.cfg.Limit)
	if err != nil {
		return sum, fmt.Errorf("select login candidates: %w", err)
	}
	if len(candidates) == 0 {
		run.logger().Info("no users to login by cooldown filter")
		return sum, nil
	}

	for _, c := range candidates {
		sum.Add(l.process(ctx, run, c))
	}
	return sum, nil
}

func (l *LoginRetrier) process(ctx context.Context, run Run, c model.LoginCandidate) model.Outcome {
	p := phone.Normalize(c.Phone)
	password := strings.TrimSpace(c.Password)
	deviceID := strings.TrimSpace(c.DeviceID)
	lg := run.logger().With(zap.Int64("userId", c.ID), zap.String("phone", p), zap.String("deviceId", deviceID))

	if p == "" || password == "" || deviceID == "" {
		lg.Warn("skip user missing phone/password/deviceId")
		return model.OutcomeSkipped
	}

	userID := c.ID
	res, err := l.api.Login(ctx, p, password, deviceID)
	if err != nil {
		msg := client.ErrorMessage(err)
		l.audit.Action(ctx, run, model.ActionEvent{UserID: &userID, ActionName: model.ActionLoginException, Detail: msg})
		l.status(ctx, run, p, deviceID, userID, model.StatusFail, msg)
		lg.Error("login exception", zap.String("err", msg))
		return model.OutcomeFail
	}

	switch v := res.(type) {
	case client.LoginFailed:
		msg := v.Message
		if msg == "" {
			msg = defaultLoginFailMessage
		}
		l.audit.Action(ctx, run, model.ActionEvent{UserID: &userID, ActionName: model.ActionLoginFail, Detail: msg})
		l.status(ctx, run, p, deviceID, userID, model.StatusFail, msg)
		lg.Warn("login failed", zap.String("err", msg))
		return model.OutcomeFail

	case client.LoginOK:
		if v.NeedOTP {
			msg := v.Message
			if msg == "" {
				msg = defaultLoginPendingMessage
			}
			l.audit.Action(ctx, run, model.ActionEvent{UserID: &userID, ActionName: model.ActionLoginPendingOTP, Detail: msg})
			lg.Info("login pending otp")
			return model.OutcomePending
		}
		l.audit.Action(ctx, run, model.ActionEvent{UserID: &userID, ActionName: model.ActionLoginSuccess, Detail: loginSuccessDetail})
		l.status(ctx, run, p, deviceID, userID, model.StatusSuccess, loginSuccessDetail)
		lg.Info("login success")
		return model.OutcomeSuccess

	default:
		msg := fmt.Sprintf("unexpected login result %T", res)
		l.audit.Action(ctx, run, model.ActionEvent{UserID: &userID, ActionName: model.ActionLoginException, Detail: msg})
		l.status(ctx, run, p, deviceID, userID, model.StatusFail, msg)
		lg.Error("login exception", zap.String("err", msg))
		return model.OutcomeFail
	}
}

func (l *LoginRetrier) status(ctx context.Context, run Run, p, deviceID string, userID int64, status int, detail string) {
	l.audit.Status(ctx, run, model.StatusEvent{
		Action:   model.AuthLogin,
		Phone:    p,
		DeviceID: deviceID,
		UserID:   &userID,
		Status:   status,
		Detail:   detail,
	})
}
