// Package notify renders notification templates and hands the result to an
// SMS/push sender. The sender is fire-and-forget from the workflow's point
// of view; the dispatcher's retry policy is the only reliability layer.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opencivic/sdcrs/pkg/domain"
)

// Sender delivers a rendered message for a case. Implementations wrap the
// municipality's SMS gateway or push service.
type Sender interface {
	Send(ctx context.Context, caseID, message string) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, caseID, message string) error

// Send calls the function.
func (f SenderFunc) Send(ctx context.Context, caseID, message string) error {
	return f(ctx, caseID, message)
}

// Notifier implements ports.Notifier over a template catalogue and a Sender.
type Notifier struct {
	sender Sender
}

// NewNotifier creates a Notifier over the given sender.
func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// Notify renders the template and sends it.
func (n *Notifier) Notify(ctx context.Context, caseID, templateID string, params map[string]string) error {
	message, err := Render(templateID, params)
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, caseID, message)
}

// Handler adapts the Notifier to the dispatcher's action handler shape for
// ActionNotify requests.
func (n *Notifier) Handler(ctx context.Context, req domain.ActionRequest) error {
	payload, ok := req.Payload.(domain.NotifyPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", req.Payload, req.Type)
	}
	return n.Notify(ctx, req.CaseID, payload.TemplateID, payload.Params)
}

// NewLogSender returns a Sender that only logs, for development and tests.
func NewLogSender(logger *slog.Logger) Sender {
	return SenderFunc(func(ctx context.Context, caseID, message string) error {
		logger.Info("notification", "case_id", caseID, "message", message)
		return nil
	})
}
