package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	TemplateActivation    = "activation-mail"
	TemplateResetCode     = "reset-password-mail"
	TemplateQuestionReply = "question-reply"
	TemplateOrderConfirm  = "order-confirmation"
)

// Message is rendered and sent by the mail worker that consumes the topic.
type Message struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

func (m Message) validate() error {
	if m.To == "" {
		return errors.New("mail: empty recipient")
	}
	if m.Template == "" {
		return errors.New("mail: empty template")
	}
	return nil
}

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type KafkaDispatcher struct {
	Publisher Publisher
	Topic     string
}

type mailEvent struct {
	Type        string    `json:"type"`
	RequestedAt time.Time `json:"requestedAt"`
	Message
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, m Message) error {
	if err := m.validate(); err != nil {
		return err
	}
	ev := mailEvent{Type: "send_mail", RequestedAt: time.Now().UTC(), Message: m}
	if err := d.Publisher.PublishEvent(ctx, d.Topic, m.To, ev); err != nil {
		return fmt.Errorf("mail dispatch %s: %w", m.Template, err)
	}
	return nil
}

// LogDispatcher stands in for the mail worker when no broker is configured.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (d *LogDispatcher) Dispatch(ctx context.Context, m Message) error {
	if err := m.validate(); err != nil {
		return err
	}
	d.Logger.InfoContext(ctx, "mail_dispatched", "template", m.Template, "to", m.To, "subject", m.Subject)
	d.Logger.DebugContext(ctx, "mail_payload", "template", m.Template, "data", m.Data)
	return nil
}
