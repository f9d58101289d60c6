package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/LeventeLantos/account-provisioner/internal/client"
)

type AuthAPI interface {
	Register(ctx context.Context, payload client.RegisterPayload, deviceID string) (client.RegisterResult, error)
	VerifyRegisterOTP(ctx context.Context, phone, otp, deviceID string) (client.VerifyResult, error)
	Login(ctx context.Context, phone, password, deviceID string) (client.LoginResult, error)
}

// Run carries what every pipeline needs to correlate its output with the
// current scheduler run.
type Run struct {
	LogID  int64
	Logger *zap.Logger
}

func (r Run) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
