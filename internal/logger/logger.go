// Package logger содержит общий структурированный логгер процесса.
package logger

import (
	"github.com/sirupsen/logrus"
)

// Log — логгер процесса. Инициализируется один раз при старте;
// до вызова Init равен nil, вызывающие стороны проверяют это сами.
var Log *logrus.Logger

// Init создаёт логгер с заданным уровнем. Неизвестный уровень
// откатывается на info. Формат по умолчанию — JSON, под агрегацию
// логов в production.
func Init(level string) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	Log.SetFormatter(&logrus.JSONFormatter{})
}

// SetTextFormatter переключает на человекочитаемый текстовый формат,
// используется в development-окружении.
func SetTextFormatter() {
	if Log != nil {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}
