package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	errs "github.com/techagentng/rentchat/errors"
	"github.com/techagentng/rentchat/server/response"
)

// handleWebsocket upgrades to the realtime gateway. Subscriptions are
// authorized per topic by the gateway.
func (s *Server) handleWebsocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		if s.Gateway == nil {
			response.JSON(c, "", http.StatusServiceUnavailable, nil, errs.New("realtime gateway is not running", http.StatusServiceUnavailable))
			return
		}
		s.Gateway.Serve(c.Writer, c.Request, userID)
	}
}
