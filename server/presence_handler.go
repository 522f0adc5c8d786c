package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/techagentng/rentchat/models"
	"github.com/techagentng/rentchat/server/response"
)

func (s *Server) handleSetPresence() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req models.PresenceRequest
		if errs := decode(c, &req); errs != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs)
			return
		}

		ctx := c.Request.Context()
		var (
			rec *models.PresenceRecord
			err error
		)
		switch req.Status {
		case models.PresenceOnline:
			rec, err = s.PresenceService.SetOnline(ctx, userID)
		case models.PresenceOffline:
			rec, err = s.PresenceService.SetOffline(ctx, userID)
		default:
			rec, err = s.PresenceService.Heartbeat(ctx, userID)
		}
		if err != nil {
			s.respondError(c, err)
			return
		}
		response.JSON(c, "presence updated", http.StatusOK, rec, nil)
	}
}

func (s *Server) handleGetPresence() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := currentUser(c); !ok {
			return
		}
		target, ok := uuidParam(c, "userID")
		if !ok {
			return
		}
		rec, err := s.PresenceService.Get(c.Request.Context(), target)
		if err != nil {
			s.respondError(c, err)
			return
		}
		response.JSON(c, "presence retrieved", http.StatusOK, rec, nil)
	}
}

func (s *Server) handleSetTyping() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		convID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var req models.TypingRequest
		if errs := decode(c, &req); errs != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs)
			return
		}
		st, err := s.TypingService.SetTyping(c.Request.Context(), convID, userID, *req.IsTyping)
		if err != nil {
			s.respondError(c, err)
			return
		}
		response.JSON(c, "typing updated", http.StatusOK, st, nil)
	}
}

func (s *Server) handleListTyping() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		convID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		states, err := s.TypingService.List(c.Request.Context(), convID, userID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		response.JSON(c, "typing retrieved", http.StatusOK, states, nil)
	}
}
