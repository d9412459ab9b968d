package mailer

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Mailer delivers transactional mail. Real providers are external
// collaborators; the service only depends on this seam.
type Mailer interface {
	SendOTP(ctx context.Context, email, code string) error
}

// LogMailer writes outbound mail to the log instead of sending it.
type LogMailer struct{}

func (LogMailer) SendOTP(_ context.Context, email, code string) error {
	log.WithFields(log.Fields{"email": email, "code": code}).Info("otp mail (log only)")
	return nil
}

// Dispatch sends fire-and-forget: delivery failures are logged and never
// block or fail the HTTP response.
func Dispatch(m Mailer, email, code string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("mailer panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := m.SendOTP(ctx, email, code); err != nil {
			log.WithError(err).WithField("email", email).Warn("failed to send otp mail")
		}
	}()
}
