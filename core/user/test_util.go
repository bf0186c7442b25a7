package user

import (
	"context"

	"github.com/teachhub/backend/core"
)

type serviceMock struct {
	*service
}

// NewServiceMock returns a Service that sends password reset mails synchronously.
func NewServiceMock(conf *core.Config, repo Repository, mailSvc core.EmailService, logger core.Logger) Service {
	return &serviceMock{service: newService(conf, repo, mailSvc, logger)}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}

// MakeResetToken returns a valid password reset token for usr.
func (svc *serviceMock) MakeResetToken(usr User) string {
	return svc.tokenGen.makeToken(usr)
}
