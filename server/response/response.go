package response

import (
	"time"

	"github.com/gin-gonic/gin"
	errs "github.com/techagentng/rentchat/errors"
)

// JSON writes the standard envelope. err may be a single error or a slice of
// errors from request validation.
func JSON(c *gin.Context, message string, status int, data interface{}, err interface{}) {
	errMessage := ""
	var fieldErrs []string
	switch e := err.(type) {
	case nil:
	case *errs.Error:
		if e != nil {
			errMessage = e.Message
		}
	case []error:
		for _, fe := range e {
			fieldErrs = append(fieldErrs, fe.Error())
		}
		if len(fieldErrs) > 0 {
			errMessage = fieldErrs[0]
		}
	case error:
		errMessage = e.Error()
	}

	responsedata := gin.H{
		"message":   message,
		"data":      data,
		"errors":    errMessage,
		"status":    status,
		"timestamp": time.Now().Format("2006-01-02 15:04:05"),
	}
	if len(fieldErrs) > 1 {
		responsedata["field_errors"] = fieldErrs
	}

	c.JSON(status, responsedata)
}
