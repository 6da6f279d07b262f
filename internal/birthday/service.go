// Package birthday sends automated birthday greetings: a daily job finds
// today's birthdays and emails each employee, plus a read-only query for
// upcoming birthdays.
package birthday

import (
	"context"

	"go.uber.org/zap"

	"HRPortal/internal/auth"
	"HRPortal/internal/config"
)

// UserSource provides the birthday queries; *auth.UserRepository implements it.
type UserSource interface {
	TodaysBirthdays(ctx context.Context) ([]auth.User, error)
	UpcomingBirthdays(ctx context.Context, days int) ([]auth.UpcomingBirthday, error)
}

type Service struct {
	users  UserSource
	mailer config.Mailer
	logger *zap.Logger
}

func NewService(users UserSource, mailer config.Mailer, logger *zap.Logger) *Service {
	return &Service{users: users, mailer: mailer, logger: logger}
}

// SendGreetings emails every employee whose birthday is today. Individual
// send failures are logged and counted, never aborting the run.
func (s *Service) SendGreetings(ctx context.Context) (sent, failed int, err error) {
	users, err := s.users.TodaysBirthdays(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(users) == 0 {
		s.logger.Info("no birthdays today")
		return 0, 0, nil
	}

	for _, u := range users {
		subject, body, err := config.BirthdayEmail(u.FirstName, u.LastName, u.Position, u.Department)
		if err != nil {
			s.logger.Error("failed to render birthday email",
				zap.String("user_id", u.ID.Hex()), zap.Error(err))
			failed++
			continue
		}
		if err := s.mailer.Send(u.Email, subject, body); err != nil {
			s.logger.Error("failed to send birthday email",
				zap.String("to", u.Email), zap.Error(err))
			failed++
			continue
		}
		sent++
	}

	s.logger.Info("birthday greetings dispatched",
		zap.Int("sent", sent), zap.Int("failed", failed))
	return sent, failed, nil
}

// Upcoming returns birthdays within the next days, soonest first.
func (s *Service) Upcoming(ctx context.Context, days int) ([]auth.UpcomingBirthday, error) {
	return s.users.UpcomingBirthdays(ctx, days)
}
