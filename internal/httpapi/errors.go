package httpapi

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"crm-backend/internal/auth"
	"crm-backend/internal/leads"
	"crm-backend/internal/users"
	"crm-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const kindUnauthenticated = "unauthenticated"

var leadKindStatus = map[leads.Kind]int{
	leads.KindNotFound:   http.StatusNotFound,
	leads.KindConflict:   http.StatusConflict,
	leads.KindForbidden:  http.StatusForbidden,
	leads.KindValidation: http.StatusBadRequest,
	leads.KindParse:      http.StatusBadRequest,
	leads.KindStorage:    http.StatusInternalServerError,
}

// classify maps a service error to an HTTP status and a stable kind.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, kindUnauthenticated
	case errors.Is(err, users.ErrNotFound):
		return http.StatusNotFound, string(leads.KindNotFound)
	case errors.Is(err, users.ErrEmailTaken):
		return http.StatusConflict, string(leads.KindConflict)
	case errors.Is(err, users.ErrInvalidArgument):
		return http.StatusBadRequest, string(leads.KindValidation)
	}
	kind := leads.KindOf(err)
	return leadKindStatus[kind], string(kind)
}

// writeError aborts with {"error", "kind"}. Storage details are logged, not returned.
func writeError(c *gin.Context, err error) {
	status, kind := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "kind", kind, "err", err)
		msg = "internal storage error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "kind": kind})
}

// writeBindError renders validator failures as a field -> tag map.
func writeBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":  "invalid request",
			"kind":   string(leads.KindValidation),
			"fields": fields,
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json", "kind": string(leads.KindValidation)})
}

var registerValidatorOnce sync.Once

// useJSONFieldNames makes validator report json names ("company_name") instead of Go names.
func useJSONFieldNames() {
	registerValidatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
}
