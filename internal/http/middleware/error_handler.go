package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stroybirzha/backend/internal/logger"
	"github.com/stroybirzha/backend/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки централизованно: AppError отдаётся
// клиенту со своим статусом и сообщением, всё остальное маскируется как
// внутренняя ошибка и пишется в лог.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			if appErr.HTTPStatus >= http.StatusInternalServerError {
				logRequestError(c, err)
				c.JSON(appErr.HTTPStatus, gin.H{"error": "внутренняя ошибка сервера"})
				return
			}
			c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": appErr.Code})
			return
		}

		logRequestError(c, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка сервера"})
	}
}

func logRequestError(c *gin.Context, err error) {
	if logger.Log == nil {
		return
	}
	logger.Log.WithFields(logrus.Fields{
		"error":  err.Error(),
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	}).Error("Request error")
}
