package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LeventeLantos/account-provisioner/internal/client"
	"github.com/LeventeLantos/account-provisioner/internal/model"
	"github.com/LeventeLantos/account-provisioner/internal/repo"
)

type fakeAPI struct {
	mu sync.Mutex

	registerRes client.RegisterResult
	registerErr error
	registerFn  func(phone string) (client.RegisterResult, error)
	verifyRes   client.VerifyResult
	verifyErr   error
	loginFn     func(phone string) (client.LoginResult, error)

	registerCalls []string
	verifyCalls   []string
	loginCalls    []string
	deviceIDs     []string
}

func (f *fakeAPI) Register(ctx context.Context, payload client.RegisterPayload, deviceID string) (client.RegisterResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls = append(f.registerCalls, payload.Phone)
	f.deviceIDs = append(f.deviceIDs, deviceID)
	if f.registerFn != nil {
		return f.registerFn(payload.Phone)
	}
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	if f.registerRes == nil {
		return client.RegisterOK{}, nil
	}
	return f.registerRes, nil
}

func (f *fakeAPI) VerifyRegisterOTP(ctx context.Context, phone, otp, deviceID string) (client.VerifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls = append(f.verifyCalls, phone+"/"+otp+"/"+deviceID)
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	if f.verifyRes == nil {
		return client.VerifyOK{}, nil
	}
	return f.verifyRes, nil
}

func (f *fakeAPI) Login(ctx context.Context, phone, password, deviceID string) (client.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls = append(f.loginCalls, phone)
	if f.loginFn == nil {
		return client.LoginOK{}, nil
	}
	return f.loginFn(phone)
}

// fakeMailbox returns a scripted sequence of records for FetchOnce and
// answers WaitFor with waitRec unless waitErr is set.
type fakeMailbox struct {
	mu sync.Mutex

	fetchRec *model.OtpRecord
	waitRec  *model.OtpRecord
	waitErr  error

	waitCalls []string
	lastSeen  []string
}

func (f *fakeMailbox) FetchOnce(ctx context.Context, phone string) (*model.OtpRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchRec, nil
}

func (f *fakeMailbox) WaitFor(ctx context.Context, phone, lastSeen string, timeout, poll time.Duration) (*model.OtpRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitCalls = append(f.waitCalls, phone)
	f.lastSeen = append(f.lastSeen, lastSeen)
	return f.waitRec, f.waitErr
}

type fakeAuditStore struct {
	mu sync.Mutex

	statusErr error
	actionErr error

	statuses []model.StatusEvent
	actions  []model.ActionEvent
}

var _ repo.AuditRepository = (*fakeAuditStore)(nil)

func (f *fakeAuditStore) InsertStatus(ctx context.Context, e model.StatusEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statuses = append(f.statuses, e)
	return nil
}

func (f *fakeAuditStore) InsertAction(ctx context.Context, e model.ActionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actionErr != nil {
		return f.actionErr
	}
	f.actions = append(f.actions, e)
	return nil
}

type fakeUsers struct {
	ids        map[string]int64
	lookupErr  error
	candidates []model.LoginCandidate
	selectErr  error

	gotCooldown int
	gotLimit    int
}

var _ repo.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) FindIDByPhone(ctx context.Context, phone string) (int64, error) {
	if f.lookupErr != nil {
		return 0, f.lookupErr
	}
	id, ok := f.ids[phone]
	if !ok {
		return 0, repo.ErrNotFound
	}
	return id, nil
}

func (f *fakeUsers) LoginCandidates(ctx context.Context, cooldownMinutes, limit int) ([]model.LoginCandidate, error) {
	f.gotCooldown = cooldownMinutes
	f.gotLimit = limit
	return f.candidates, f.selectErr
}

var errBoom = errors.New("connection reset by peer")
