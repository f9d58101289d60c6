package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LeventeLantos/account-provisioner/internal/client"
	"github.com/LeventeLantos/account-provisioner/internal/mailbox"
	"github.com/LeventeLantos/account-provisioner/internal/model"
	"github.com/LeventeLantos/account-provisioner/internal/phone"
)

const (
	defaultRegisterFailMessage = "Unknown error"
	defaultVerifyFailMessage   = "Verify failed"
)

// alreadyExistsMarkers are matched case-insensitively against register
// failure messages.
var alreadyExistsMarkers = []string{
	"exist",
	"tồn tại",
}

// IsAlreadyExists reports whether a register failure means the phone is
// already registered. Such rows are skipped without any audit write.
func IsAlreadyExists(msg string) bool {
	m := strings.ToLower(msg)
	for _, marker := range alreadyExistsMarkers {
		if strings.Contains(m, marker) {
			return true
		}
	}
	return false
}

type RegistrarConfig struct {
	OTPTimeout time.Duration
	OTPPoll    time.Duration
}

// Registrar drives feed rows through register, OTP pickup and verify.
type Registrar struct {
	api         AuthAPI
	mailbox     mailbox.OTPMailbox
	audit       *Auditor
	cfg         RegistrarConfig
	newDeviceID func() string
}

func NewRegistrar(api AuthAPI, mb mailbox.OTPMailbox, audit *Auditor, cfg RegistrarConfig) *Registrar {
	if cfg.OTPTimeout <= 0 {
		cfg.OTPTimeout = 60 * time.Second
	}
	if cfg.OTPPoll <= 0 {
		cfg.OTPPoll = 2 * time.Second
	}
	return &Registrar{
		api:         api,
		mailbox:     mb,
		audit:       audit,
		cfg:         cfg,
		newDeviceID: model.NewDeviceID,
	}
}

// Run processes rows one after another. A failing row never stops the batch.
func (r *Registrar) Run(ctx context.Context, run Run, rows []model.CsvCandidate) model.RunSummary {
	var sum model.RunSummary
	for _, row := range rows {
		sum.Add(r.process(ctx, run, row))
	}
	return sum
}

func (r *Registrar) process(ctx context.Context, run Run, row model.CsvCandidate) model.Outcome {
	lg := run.logger()

	row.Phone = phone.Normalize(row.Phone)
	row.Password = strings.TrimSpace(row.Password)
	if err := row.Validate(); err != nil {
		lg.Debug("skip invalid feed row", zap.String("phone", row.Phone), zap.Error(err))
		return model.OutcomeSkipped
	}

	p := row.Phone
	deviceID := r.newDeviceID()
	lg = lg.With(zap.String("phone", p), zap.String("deviceId", deviceID))

	outcome, err := r.register(ctx, run, lg, row, deviceID)
	if err != nil {
		msg := client.ErrorMessage(err)
		r.fail(ctx, run, p, deviceID, msg)
		lg.Error("REGISTER_EXCEPTION", zap.String("err", msg))
		return model.OutcomeFail
	}
	return outcome
}

func (r *Registrar) register(ctx context.Context, run Run, lg *zap.Logger, row model.CsvCandidate, deviceID string) (model.Outcome, error) {
	p := row.Phone

	// Whatever the mailbox holds before the register call is stale.
	stale := r.staleOTP(ctx, lg, p)

	res, err := r.api.Register(ctx, client.NewRegisterPayload(row), deviceID)
	if err != nil {
		return model.OutcomeFail, err
	}

	switch v := res.(type) {
	case client.RegisterFailed:
		msg := v.Message
		if msg == "" {
			msg = defaultRegisterFailMessage
		}
		if IsAlreadyExists(msg) {
			lg.Debug("REGISTER_SKIP_EXISTS", zap.String("msg", msg))
			return model.OutcomeSkipped, nil
		}
		r.fail(ctx, run, p, deviceID, msg)
		lg.Error("REGISTER_FAIL", zap.String("err", msg))
		return model.OutcomeFail, nil
	case client.RegisterOK:
	default:
		return model.OutcomeFail, fmt.Errorf("unexpected register result %T", res)
	}

	rec, err := r.mailbox.WaitFor(ctx, p, stale, r.cfg.OTPTimeout, r.cfg.OTPPoll)
	if err != nil {
		return model.OutcomeFail, err
	}
	if rec == nil || rec.OTP == "" {
		r.audit.Action(ctx, run, model.ActionEvent{
			UserID:     r.audit.LookupUserID(ctx, run, p),
			ActionName: model.ActionRegister,
			Detail:     model.DetailPendingOTP,
		})
		lg.Info("REGISTER_PENDING_OTP")
		return model.OutcomePending, nil
	}

	otp := rec.OTP
	vres, err := r.api.VerifyRegisterOTP(ctx, p, otp, deviceID)
	if err != nil {
		return model.OutcomeFail, err
	}

	switch v := vres.(type) {
	case client.VerifyFailed:
		msg := v.Message
		if msg == "" {
			msg = defaultVerifyFailMessage
		}
		r.fail(ctx, run, p, deviceID, msg)
		lg.Error("REGISTER_VERIFY_FAIL", zap.String("otp", otp), zap.String("err", msg))
		return model.OutcomeFail, nil
	case client.VerifyOK:
	default:
		return model.OutcomeFail, fmt.Errorf("unexpected verify result %T", vres)
	}

	userID := r.audit.LookupUserID(ctx, run, p)
	r.audit.Status(ctx, run, model.StatusEvent{
		Action:   model.AuthRegister,
		Phone:    p,
		DeviceID: deviceID,
		UserID:   userID,
		Status:   model.StatusSuccess,
		Detail:   "OTP=" + otp,
	})
	r.audit.Action(ctx, run, model.ActionEvent{
		UserID:     userID,
		ActionName: model.ActionRegister,
		Detail:     "SUCCESS OTP=" + otp,
	})
	lg.Info("REGISTER_OK", zap.String("otp", otp))
	return model.OutcomeSuccess, nil
}

// fail writes the full failure audit: a status row and an action row.
func (r *Registrar) fail(ctx context.Context, run Run, p, deviceID, msg string) {
	userID := r.audit.LookupUserID(ctx, run, p)
	r.audit.Status(ctx, run, model.StatusEvent{
		Action:   model.AuthRegister,
		Phone:    p,
		DeviceID: deviceID,
		UserID:   userID,
		Status:   model.StatusFail,
		Detail:   msg,
	})
	r.audit.Action(ctx, run, model.ActionEvent{
		UserID:     userID,
		ActionName: model.ActionRegister,
		Detail:     msg,
	})
}

func (r *Registrar) staleOTP(ctx context.Context, lg *zap.Logger, p string) string {
	rec, err := r.mailbox.FetchOnce(ctx, p)
	if err != nil {
		lg.Warn("otp baseline read failed", zap.Error(err))
		return ""
	}
	if rec == nil {
		return ""
	}
	return rec.OTP
}
