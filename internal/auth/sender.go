package auth

import (
	"context"
	"fmt"

	"github.com/stockroomhq/stockroom-backend/pkg/logger"
)

// CodeSender delivers a login code to the account's email address.
type CodeSender interface {
	SendLoginCode(ctx context.Context, email, code string) error
}

// LogSender writes login codes to the structured log instead of sending
// email. It backs local development and test environments.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) (*LogSender, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &LogSender{logg: logg}, nil
}

func (s *LogSender) SendLoginCode(ctx context.Context, email, code string) error {
	lctx := s.logg.WithFields(ctx, map[string]any{
		"email": email,
		"code":  code,
	})
	s.logg.Info(lctx, "login code issued")
	return nil
}
