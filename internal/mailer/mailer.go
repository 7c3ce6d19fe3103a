// Package mailer enqueues outbound account mail for delivery by the
// external mailer worker. The API process never sends mail itself; it
// only publishes messages to the broker.
package mailer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/staffdesk/apiserver/types"
)

const defaultResetQueue = "password-reset-mail"

// Publisher is the broker operation the mailer needs. *mq.MQ satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// ResetTokenMessage is the payload the mailer worker turns into a
// password-reset email. It carries the raw token; the queue is the only
// channel the token travels through.
type ResetTokenMessage struct {
	Login     string     `json:"login"`
	Role      types.Role `json:"role"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Mailer publishes account mail to a queue.
type Mailer struct {
	publisher Publisher
	queue     string
}

// New constructs a Mailer publishing to the default reset queue.
func New(publisher Publisher) *Mailer {
	return &Mailer{publisher: publisher, queue: defaultResetQueue}
}

// EnqueueResetToken publishes a reset-token message for the principal.
func (m *Mailer) EnqueueResetToken(ctx context.Context, msg ResetTokenMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = m.publisher.Publish(ctx, m.queue, data, map[string]string{
		"type": "password-reset",
	})
	return err
}
