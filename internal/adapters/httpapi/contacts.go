package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"humans/pkg/domain"
)

type humanRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}

type activityRequest struct {
	Subject string  `json:"subject" binding:"required"`
	HumanID *string `json:"humanId"`
}

type geoInterestRequest struct {
	City    string `json:"city" binding:"required"`
	Country string `json:"country" binding:"required"`
}

func (h *Handler) listHumans(c *gin.Context) {
	humans, err := h.svc.ListHumans(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeList(c, humans)
}

func (h *Handler) createHuman(c *gin.Context) {
	var req humanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	human, err := h.svc.CreateHuman(c.Request.Context(), domain.Human{FirstName: req.FirstName, LastName: req.LastName})
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeData(c, http.StatusCreated, human)
}

func (h *Handler) getHuman(c *gin.Context) {
	human, err := h.svc.GetHuman(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, human)
}

func (h *Handler) deleteHuman(c *gin.Context) {
	if err := h.svc.DeleteHuman(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	writeSuccess(c)
}

func (h *Handler) listActivities(c *gin.Context) {
	activities, err := h.svc.ListActivities(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeList(c, activities)
}

func (h *Handler) createActivity(c *gin.Context) {
	var req activityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	activity, err := h.svc.CreateActivity(c.Request.Context(), domain.Activity{Subject: req.Subject, HumanID: req.HumanID})
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeData(c, http.StatusCreated, activity)
}

func (h *Handler) getActivity(c *gin.Context) {
	activity, err := h.svc.GetActivity(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, activity)
}

func (h *Handler) deleteActivity(c *gin.Context) {
	if err := h.svc.DeleteActivity(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	writeSuccess(c)
}

func (h *Handler) listGeoInterests(c *gin.Context) {
	geos, err := h.svc.ListGeoInterests(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeList(c, geos)
}

func (h *Handler) createGeoInterest(c *gin.Context) {
	var req geoInterestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	geo, err := h.svc.CreateGeoInterest(c.Request.Context(), domain.GeoInterest{City: req.City, Country: req.Country})
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeData(c, http.StatusCreated, geo)
}

func (h *Handler) deleteGeoInterest(c *gin.Context) {
	if err := h.svc.DeleteGeoInterest(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	writeSuccess(c)
}
