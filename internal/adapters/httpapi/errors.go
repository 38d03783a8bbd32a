package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"humans/pkg/domain"
)

const (
	codeValidation = "VALIDATION_ERROR"
	codeConflict   = "CONFLICT"
	codeInternal   = "INTERNAL_ERROR"
)

var notFoundCodes = map[domain.EntityType]string{
	domain.EntityHuman:                   "HUMAN_NOT_FOUND",
	domain.EntityActivity:                "ACTIVITY_NOT_FOUND",
	domain.EntityRouteInterest:           "ROUTE_INTEREST_NOT_FOUND",
	domain.EntityRouteInterestExpression: "ROUTE_EXPRESSION_NOT_FOUND",
	domain.EntityGeoInterest:             "GEO_INTEREST_NOT_FOUND",
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type dataBody struct {
	Data any `json:"data"`
}

type successBody struct {
	Success bool `json:"success"`
}

// statusFor maps a service error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	var nf domain.ErrNotFound
	switch {
	case errors.As(err, &nf):
		if code, ok := notFoundCodes[nf.Entity]; ok {
			return http.StatusNotFound, code
		}
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, codeConflict
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, errorBody{Error: message, Code: code})
}

func writeBindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: codeValidation})
}

func writeData(c *gin.Context, status int, data any) {
	c.JSON(status, dataBody{Data: data})
}

func writeSuccess(c *gin.Context) {
	c.JSON(http.StatusOK, successBody{Success: true})
}

// writeList renders an empty collection as [] rather than null.
func writeList[T any](c *gin.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	writeData(c, http.StatusOK, items)
}
