package middleware

import (
	"net/http"

	"github.com/civitest/civitest-backend/internal/response"
	"github.com/civitest/civitest-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// CheckSingleDeviceSession validates the JWT's JTI against the active device
// session in Redis. If the JTI doesn't match, the request is rejected (a
// newer login or an admin reset invalidated this token).
func CheckSingleDeviceSession(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		// Only enforce for exam-taker tokens.
		if claims.TokenType != service.TokenTypeUser {
			c.Next()
			return
		}

		if err := tokens.ValidateDeviceSession(c.Request.Context(), claims.UserID, claims.ID); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Next()
	}
}
