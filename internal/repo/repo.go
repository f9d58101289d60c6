package repo

import (
	"context"
	"errors"

	"github.com/LeventeLantos/account-provisioner/internal/model"
)

var ErrNotFound = errors.New("not found")

// AuditRepository appends audit events. Rows are never updated or deleted.
type AuditRepository interface {
	InsertStatus(ctx context.Context, e model.StatusEvent) error
	InsertAction(ctx context.Context, e model.ActionEvent) error
}

type UserRepository interface {
	FindIDByPhone(ctx context.Context, phone string) (int64, error)
	LoginCandidates(ctx context.Context, cooldownMinutes, limit int) ([]model.LoginCandidate, error)
}

type LogRepository interface {
	Ensure(ctx context.Context, fileName, filePath string) (int64, error)
}
