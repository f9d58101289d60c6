package mailbox

import (
	"context"
	"time"

	"github.com/LeventeLantos/account-provisioner/internal/model"
)

const DefaultKeyPrefix = "otp:_"

// OTPMailbox reads OTPs the SMS gateway deposits per phone.
type OTPMailbox interface {
	FetchOnce(ctx context.Context, phone string) (*model.OtpRecord, error)
	WaitFor(ctx context.Context, phone, lastSeen string, timeout, poll time.Duration) (*model.OtpRecord, error)
}
