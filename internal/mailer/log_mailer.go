package mailer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/stroybirzha/backend/internal/logger"
)

// LogMailer пишет исходящие письма в лог вместо реальной отправки.
// Используется, пока не настроен внешний SMTP провайдер: контракт
// доставки тот же, что у боевого мейлера.
type LogMailer struct{}

// NewLogMailer создаёт мейлер.
func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

// Send записывает письмо в лог.
func (m *LogMailer) Send(ctx context.Context, templateKind, recipientAddress string, payload map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if logger.Log != nil {
		logger.Log.WithFields(logrus.Fields{
			"template":  templateKind,
			"recipient": recipientAddress,
			"payload":   payload,
		}).Info("mailer: письмо поставлено в очередь")
	}
	return nil
}
