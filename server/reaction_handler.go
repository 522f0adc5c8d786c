package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/techagentng/rentchat/models"
	"github.com/techagentng/rentchat/server/response"
)

// handleToggleReaction adds the caller's emoji to a message, or removes it
// when already present.
func (s *Server) handleToggleReaction() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		messageID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var req models.ToggleReactionRequest
		if errs := decode(c, &req); errs != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs)
			return
		}
		res, err := s.ReactionService.Toggle(c.Request.Context(), messageID, userID, req.Emoji)
		if err != nil {
			s.respondError(c, err)
			return
		}
		msg := "reaction removed"
		if res.Added {
			msg = "reaction added"
		}
		response.JSON(c, msg, http.StatusOK, res, nil)
	}
}

func (s *Server) handleListReactions() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		messageID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		list, err := s.ReactionService.List(c.Request.Context(), messageID, userID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		response.JSON(c, "reactions retrieved", http.StatusOK, list, nil)
	}
}
