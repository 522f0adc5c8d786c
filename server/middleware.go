package server

import (
	"net/http"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	errs "github.com/techagentng/rentchat/errors"
	"github.com/techagentng/rentchat/server/response"
	"github.com/techagentng/rentchat/services/jwt"
)

// Authorize validates the bearer token and puts the caller's id in the
// context as "userID". Browsers cannot set headers on a websocket upgrade,
// so the token may also come as the access_token query parameter.
func (s *Server) Authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := getTokenFromHeader(c)
		if accessToken == "" {
			accessToken = c.Query("access_token")
		}
		if accessToken == "" {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.New("Unauthorized", http.StatusUnauthorized))
			return
		}

		accessClaims, err := jwt.ValidateAndGetClaims(accessToken, s.Config.JWTSecret)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.New("Unauthorized", http.StatusUnauthorized))
			return
		}

		userID, err := jwt.UserID(accessClaims)
		if err != nil {
			respondAndAbort(c, "", http.StatusBadRequest, nil, errs.New("Invalid userID format", http.StatusBadRequest))
			return
		}

		c.Set("userID", userID)
		c.Set("access_token", accessToken)
		c.Next()
	}
}

func limitRatePerUser(store ratelimit.Store) gin.HandlerFunc {
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: errs.ErrorHandler,
		KeyFunc:      userKey,
	})
}

func userKey(c *gin.Context) string {
	if id, ok := c.Get("userID"); ok {
		if u, ok := id.(uuid.UUID); ok {
			return u.String()
		}
	}
	return c.ClientIP()
}

// userIDFromContext reads the id Authorize stored.
func userIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get("userID")
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// respondAndAbort calls response.JSON and aborts the Context
func respondAndAbort(c *gin.Context, message string, status int, data interface{}, e *errs.Error) {
	response.JSON(c, message, status, data, e)
	c.Abort()
}

// getTokenFromHeader returns the token string in the authorization header
func getTokenFromHeader(c *gin.Context) string {
	authHeader := c.Request.Header.Get("Authorization")
	if len(authHeader) > 8 {
		return authHeader[7:]
	}
	return ""
}
