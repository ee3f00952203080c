package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const adminSubjectKey = "admin_subject"

// TokenVerifier проверяет токен и возвращает его subject
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// AdminAuth пропускает только запросы с валидным Bearer токеном администратора
func AdminAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			abortUnauthorized(c, "Missing bearer token")
			return
		}

		subject, err := verifier.Verify(token)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(adminSubjectKey, subject)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="admin"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": message,
	})
}

// AdminSubject извлекает subject администратора из контекста
func AdminSubject(c *gin.Context) string {
	return c.GetString(adminSubjectKey)
}
