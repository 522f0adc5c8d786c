package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	errs "github.com/techagentng/rentchat/errors"
	"github.com/techagentng/rentchat/models"
	"github.com/techagentng/rentchat/server/response"
	"github.com/techagentng/rentchat/services"
)

func (s *Server) handleRegisterDevice() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req models.RegisterDeviceRequest
		if errs := decode(c, &req); errs != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs)
			return
		}
		if err := s.DeviceService.Register(c.Request.Context(), userID, &req); err != nil {
			s.respondError(c, err)
			return
		}
		response.JSON(c, "device registered", http.StatusOK, nil, nil)
	}
}

// handleUploadMedia accepts a multipart "file" for an image or voice message
// and answers with its public URL.
func (s *Server) handleUploadMedia() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxMediaSize+1<<20)

		file, fileHeader, err := c.Request.FormFile("file")
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New("Missing or invalid file", http.StatusBadRequest))
			return
		}
		defer file.Close()

		if fileHeader.Size > services.MaxMediaSize {
			response.JSON(c, "", http.StatusRequestEntityTooLarge, nil,
				errs.New(fmt.Sprintf("file exceeds %d bytes", services.MaxMediaSize), http.StatusRequestEntityTooLarge))
			return
		}

		res, err := s.MediaService.Upload(c.Request.Context(), userID, services.MediaUpload{
			Filename:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Size:        fileHeader.Size,
			Body:        file,
		})
		if err != nil {
			s.respondError(c, err)
			return
		}
		response.JSON(c, "file uploaded", http.StatusCreated, res, nil)
	}
}
