package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/techagentng/rentchat/models"
	"github.com/techagentng/rentchat/server/response"
)

func (s *Server) handleListTemplates() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		list, err := s.TemplateService.List(c.Request.Context(), userID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		response.JSON(c, "templates retrieved", http.StatusOK, list, nil)
	}
}

func (s *Server) handleCreateTemplate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req models.TemplateRequest
		if errs := decode(c, &req); errs != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs)
			return
		}
		t, err := s.TemplateService.Create(c.Request.Context(), userID, &req)
		if err != nil {
			s.respondError(c, err)
			return
		}
		response.JSON(c, "template created", http.StatusCreated, t, nil)
	}
}

func (s *Server) handleUpdateTemplate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var req models.TemplateRequest
		if errs := decode(c, &req); errs != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs)
			return
		}
		t, err := s.TemplateService.Update(c.Request.Context(), userID, id, &req)
		if err != nil {
			s.respondError(c, err)
			return
		}
		response.JSON(c, "template updated", http.StatusOK, t, nil)
	}
}

func (s *Server) handleDeleteTemplate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		if err := s.TemplateService.Delete(c.Request.Context(), userID, id); err != nil {
			s.respondError(c, err)
			return
		}
		response.JSON(c, "template deleted", http.StatusOK, nil, nil)
	}
}

// handleUseTemplate counts one use of a template and returns it.
func (s *Server) handleUseTemplate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		t, err := s.TemplateService.Use(c.Request.Context(), userID, id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		response.JSON(c, "template used", http.StatusOK, t, nil)
	}
}
