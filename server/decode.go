package server

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
	errs "github.com/techagentng/rentchat/errors"
	"github.com/techagentng/rentchat/server/response"
)

var (
	transOnce sync.Once
	trans     ut.Translator
)

// translator registers English messages on gin's validator the first time
// it is needed.
func translator() ut.Translator {
	transOnce.Do(func() {
		english := en.New()
		uni := ut.New(english, english)
		trans, _ = uni.GetTranslator("en")
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = enTranslations.RegisterDefaultTranslations(v, trans)
		}
	})
	return trans
}

// decode binds the JSON body into v and returns the validation failures
// translated to English.
func decode(c *gin.Context, v interface{}) []error {
	tr := translator()
	if err := c.ShouldBindJSON(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return translateError(verrs, tr)
		}
		return []error{errs.New("invalid request body", http.StatusBadRequest)}
	}
	return nil
}

func translateError(verrs validator.ValidationErrors, tr ut.Translator) []error {
	out := make([]error, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, errors.New(e.Translate(tr)))
	}
	return out
}

// uuidParam parses a path parameter, answering 400 when it is not a uuid.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.JSON(c, "", http.StatusBadRequest, nil, errs.New("invalid "+name, http.StatusBadRequest))
		return uuid.Nil, false
	}
	return id, true
}

// currentUser returns the authorized caller or answers 401.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	id, ok := userIDFromContext(c)
	if !ok {
		response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
		return uuid.Nil, false
	}
	return id, true
}

// respondError renders a service error with its status. Anything that is not
// an *errs.Error is logged and reported as a 500.
func (s *Server) respondError(c *gin.Context, err error) {
	e := errs.From(err)
	if e.Status >= http.StatusInternalServerError {
		s.Log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	response.JSON(c, "", e.Status, nil, e)
}
