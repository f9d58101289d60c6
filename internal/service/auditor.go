package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/LeventeLantos/account-provisioner/internal/model"
	"github.com/LeventeLantos/account-provisioner/internal/repo"
)

// Auditor writes audit events on behalf of the pipelines. Writes are
// independent inserts; a failed write is logged and never interrupts the
// candidate's processing, so a status row may exist without its action row.
type Auditor struct {
	store repo.AuditRepository
	users repo.UserRepository
}

func NewAuditor(store repo.AuditRepository, users repo.UserRepository) *Auditor {
	return &Auditor{store: store, users: users}
}

func (a *Auditor) Status(ctx context.Context, run Run, e model.StatusEvent) {
	e.LogID = run.LogID
	if err := a.store.InsertStatus(ctx, e); err != nil {
		run.logger().Error("audit status write failed",
			zap.String("phone", e.Phone),
			zap.String("deviceId", e.DeviceID),
			zap.String("action", string(e.Action)),
			zap.Error(err),
		)
	}
}

func (a *Auditor) Action(ctx context.Context, run Run, e model.ActionEvent) {
	e.LogID = run.LogID
	if err := a.store.InsertAction(ctx, e); err != nil {
		run.logger().Error("audit action write failed",
			zap.String("actionName", e.ActionName),
			zap.Error(err),
		)
	}
}

// LookupUserID resolves the user id for an audit row. Lookup errors of any
// kind are folded into nil.
func (a *Auditor) LookupUserID(ctx context.Context, run Run, phone string) *int64 {
	if a.users == nil {
		return nil
	}
	id, err := a.users.FindIDByPhone(ctx, phone)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			run.logger().Warn("user id lookup failed", zap.String("phone", phone), zap.Error(err))
		}
		return nil
	}
	return &id
}
