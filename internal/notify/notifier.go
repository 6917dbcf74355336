// internal/notify/notifier.go
package notify

import (
	"context"
	"fmt"

	"entitlement-workers/internal/common/logger"
	"entitlement-workers/internal/entitlement"
)

// EmailSender is satisfied by the SES wrapper.
type EmailSender interface {
	SendTextEmail(ctx context.Context, from, to, subject, body string) error
}

// SMSSender is satisfied by the SNS wrapper.
type SMSSender interface {
	PublishSMS(ctx context.Context, phoneNumber, message, senderID string) error
}

// Notifier sends exchange result notifications. Entirely best effort: a
// delivery failure is logged and forgotten, it never affects the exchange
// outcome reported to the process.
type Notifier struct {
	email     EmailSender
	sms       SMSSender
	fromEmail string
	senderID  string
	log       logger.Logger
}

func New(email EmailSender, sms SMSSender, fromEmail, senderID string, log logger.Logger) *Notifier {
	return &Notifier{
		email:     email,
		sms:       sms,
		fromEmail: fromEmail,
		senderID:  senderID,
		log:       log,
	}
}

// ExchangeCompleted notifies the user about a finished exchange through
// whichever channels an address is known for.
func (n *Notifier) ExchangeCompleted(ctx context.Context, emailAddr, phone string, out *entitlement.ExchangeOutcome, entitlementID string) {
	subject := "Your entitlement is active"
	body := fmt.Sprintf("Your %s entitlement has been activated.", entitlementID)
	if out.Status == entitlement.ResultPartialSuccess {
		body += " We hit a hiccup settling the coin payment; your entitlement is unaffected and our team will sort out the rest."
	}

	if emailAddr != "" && n.email != nil {
		if err := n.email.SendTextEmail(ctx, n.fromEmail, emailAddr, subject, body); err != nil {
			n.log.Warn("exchange email notification failed", map[string]interface{}{
				"email": emailAddr,
				"error": err.Error(),
			})
		}
	}

	if phone != "" && n.sms != nil {
		if err := n.sms.PublishSMS(ctx, phone, body, n.senderID); err != nil {
			n.log.Warn("exchange sms notification failed", map[string]interface{}{
				"phone": phone,
				"error": err.Error(),
			})
		}
	}
}
