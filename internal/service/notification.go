package service

import (
	"context"

	"github.com/microfinlabs/microfin-server/internal/models"
	"go.uber.org/zap"
)

// Notifier is the sink for the two events the core emits. Delivery is
// fire-and-forget; the surrounding system may forward them to email or
// SMS providers.
type Notifier interface {
	LoanApplicationReceived(ctx context.Context, recipientEmail, loanID string)
	LoanStatusChanged(ctx context.Context, loanID string, status models.LoanStatus)
}

// LogNotifier logs notifications instead of delivering them.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) LoanApplicationReceived(ctx context.Context, recipientEmail, loanID string) {
	n.logger.Info("loan application received",
		zap.String("recipient", recipientEmail),
		zap.String("loanId", loanID))
}

func (n *LogNotifier) LoanStatusChanged(ctx context.Context, loanID string, status models.LoanStatus) {
	n.logger.Info("loan status changed",
		zap.String("loanId", loanID),
		zap.String("status", string(status)))
}
