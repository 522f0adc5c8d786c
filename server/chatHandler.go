package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/techagentng/rentchat/models"
	"github.com/techagentng/rentchat/server/response"
)

func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.JSON(c, "ok", http.StatusOK, gin.H{"websocket_connections": s.connectionCount()}, nil)
	}
}

func (s *Server) connectionCount() int {
	if s.Gateway == nil {
		return 0
	}
	return s.Gateway.ConnectionCount()
}

func (s *Server) handleStartConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req models.CreateConversationRequest
		if errs := decode(c, &req); errs != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs)
			return
		}
		conv, err := s.ConversationService.Start(c.Request.Context(), userID, &req)
		if err != nil {
			s.respondError(c, err)
			return
		}
		response.JSON(c, "conversation ready", http.StatusOK, conv, nil)
	}
}

func (s *Server) handleInbox() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		inbox, err := s.ConversationService.Inbox(c.Request.Context(), userID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		response.JSON(c, "conversations retrieved", http.StatusOK, inbox, nil)
	}
}

func (s *Server) handleListMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		convID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
		msgs, err := s.MessageService.List(c.Request.Context(), convID, userID, limit)
		if err != nil {
			s.respondError(c, err)
			return
		}
		response.JSON(c, "messages retrieved", http.StatusOK, msgs, nil)
	}
}

// handleSendMessage stores a message. Resending the same client_key answers
// with the stored row instead of creating another.
func (s *Server) handleSendMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		convID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var req models.SendMessageRequest
		if errs := decode(c, &req); errs != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs)
			return
		}
		msg, err := s.MessageService.Send(c.Request.Context(), convID, userID, &req)
		if err != nil {
			s.respondError(c, err)
			return
		}
		response.JSON(c, "message sent", http.StatusCreated, msg, nil)
	}
}

func (s *Server) handleMarkRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		convID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		stamped, err := s.MessageService.MarkRead(c.Request.Context(), convID, userID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		response.JSON(c, "messages marked read", http.StatusOK, gin.H{"count": len(stamped), "messages": stamped}, nil)
	}
}
