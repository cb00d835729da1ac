// Package notify delivers the side effects of a local user creation: an
// event on the message queue and a welcome mail. Callers treat failures
// as best effort.
package notify

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/userhub/internal/server/models"
)

// UserCreatedPattern is the message pattern of user-created events.
const UserCreatedPattern = "user_created"

type Publisher interface {
	Publish(ctx context.Context, pattern string, data any) error
}

type Mailer interface {
	SendWelcome(ctx context.Context, user *models.User) error
}

// Sink fans a user creation out to the configured publisher and mailer.
// Either may be nil.
type Sink struct {
	publisher Publisher
	mailer    Mailer
}

func NewSink(publisher Publisher, mailer Mailer) *Sink {
	return &Sink{publisher: publisher, mailer: mailer}
}

// UserCreated publishes the event, then sends the mail. The mail is sent
// even when publishing fails; all failures are returned joined.
func (s *Sink) UserCreated(ctx context.Context, user *models.User) error {
	var errs []error
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, UserCreatedPattern, user); err != nil {
			errs = append(errs, err)
		}
	}
	if s.mailer != nil && user.Email != "" {
		if err := s.mailer.SendWelcome(ctx, user); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
