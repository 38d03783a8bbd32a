package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"humans/internal/core"
	"humans/pkg/domain"
)

// expressionRequest accepts either routeInterestId or the four route fields.
type expressionRequest struct {
	HumanID            string           `json:"humanId" binding:"required"`
	RouteInterestID    string           `json:"routeInterestId"`
	OriginCity         string           `json:"originCity"`
	OriginCountry      string           `json:"originCountry"`
	DestinationCity    string           `json:"destinationCity"`
	DestinationCountry string           `json:"destinationCountry"`
	ActivityID         *string          `json:"activityId"`
	Frequency          domain.Frequency `json:"frequency"`
	TravelYear         *int             `json:"travelYear"`
	TravelMonth        *int             `json:"travelMonth"`
	TravelDay          *int             `json:"travelDay"`
	Notes              *string          `json:"notes"`
}

func (r expressionRequest) input() core.ExpressionInput {
	return core.ExpressionInput{
		HumanID:         r.HumanID,
		RouteInterestID: r.RouteInterestID,
		Route: domain.RouteKey{
			OriginCity:         r.OriginCity,
			OriginCountry:      r.OriginCountry,
			DestinationCity:    r.DestinationCity,
			DestinationCountry: r.DestinationCountry,
		},
		ActivityID:  r.ActivityID,
		Frequency:   r.Frequency,
		TravelYear:  r.TravelYear,
		TravelMonth: r.TravelMonth,
		TravelDay:   r.TravelDay,
		Notes:       r.Notes,
	}
}

func (h *Handler) listExpressions(c *gin.Context) {
	var filter domain.ExpressionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		writeBindError(c, err)
		return
	}
	items, err := h.svc.ListExpressions(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeList(c, items)
}

func (h *Handler) createExpression(c *gin.Context) {
	var req expressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	created, err := h.svc.CreateExpression(c.Request.Context(), req.input())
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeData(c, http.StatusCreated, created)
}

func (h *Handler) getExpression(c *gin.Context) {
	detail, err := h.svc.GetExpression(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, detail)
}

// updateExpression decodes into ExpressionPatch so an explicit null differs from an omitted key.
func (h *Handler) updateExpression(c *gin.Context) {
	var patch domain.ExpressionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeBindError(c, err)
		return
	}
	updated, err := h.svc.UpdateExpression(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, updated)
}

func (h *Handler) deleteExpression(c *gin.Context) {
	if err := h.svc.DeleteExpression(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	writeSuccess(c)
}
