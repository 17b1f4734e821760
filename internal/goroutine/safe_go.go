// Package goroutine запускает фоновые горутины с перехватом panic.
// Через него уходят side-каналы движка: рассылка писем и push после
// фиксации транзакций, фоновая очистка сессий. Упавший side-канал не
// должен ронять процесс и не влияет на уже зафиксированный результат.
package goroutine

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/stroybirzha/backend/internal/logger"
)

// Logger принимает сообщения о перехваченных паниках.
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler оборачивает запуск горутин перехватом panic.
type RecoveryHandler struct {
	logger Logger
}

// NewRecoveryHandler создаёт обработчик с заданным логгером.
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo запускает fn в горутине, логируя перехваченную панику.
func (rh *RecoveryHandler) SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				rh.logger.Errorf("goroutine: перехвачена паника: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

// SafeGoWithContext запускает fn с контекстом в горутине, логируя
// перехваченную панику.
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				rh.logger.Errorf("goroutine: перехвачена паника: %v\n%s", r, debug.Stack())
			}
		}()
		fn(ctx)
	}()
}

// processLogger пишет в общий логгер процесса; до его инициализации
// падает обратно на stdout, чтобы паника не потерялась молча.
type processLogger struct{}

func (processLogger) Errorf(format string, args ...interface{}) {
	if logger.Log != nil {
		logger.Log.Errorf(format, args...)
		return
	}
	fmt.Printf("[ERROR] "+format+"\n", args...)
}

// DefaultRecoveryHandler — обработчик по умолчанию для пакетных функций.
var DefaultRecoveryHandler = NewRecoveryHandler(processLogger{})

// SafeGo запускает горутину через обработчик по умолчанию.
func SafeGo(fn func()) {
	DefaultRecoveryHandler.SafeGo(fn)
}

// SafeGoWithContext запускает горутину с контекстом через обработчик
// по умолчанию.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, fn)
}
