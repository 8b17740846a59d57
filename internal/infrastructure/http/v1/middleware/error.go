package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"lms/internal/core/apperror"
	"lms/internal/infrastructure/storage/postgres"
	"lms/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		status := http.StatusInternalServerError
		body := gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": map[string]any{"request_id": c.GetString("request_id")},
		}

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error", "code", appErr.Code, "cause", appErr.Err)
			}
			status = appErr.HTTPStatus
			if status >= 500 {
				body["details"] = map[string]any{"request_id": c.GetString("request_id")}
				body["code"] = appErr.Code
				body["message"] = appErr.Message
			} else {
				body = gin.H{"code": appErr.Code, "message": appErr.Message, "details": appErr.Details}
			}
		} else {
			logger.Error(c.Request.Context(), "unhandled error", "error", err)
		}

		failIdempotency(c, status, body)
		c.JSON(status, body)
	}
}

// failIdempotency stores the error response for replay (best-effort).
func failIdempotency(c *gin.Context, status int, body gin.H) {
	key := c.GetString(ctxIdempotencyKey)
	if key == "" {
		return
	}
	store, ok := c.Get(ctxIdempotencyStore)
	if !ok {
		return
	}
	s, ok := store.(*postgres.IdempotencyStore)
	if !ok || s == nil {
		return
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return
	}
	_ = s.FailKey(c.Request.Context(), key, status, "application/json", raw)
}
