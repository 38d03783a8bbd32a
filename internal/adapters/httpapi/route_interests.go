package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"humans/internal/adapters/export"
	"humans/pkg/domain"
)

type routeInterestRequest struct {
	OriginCity         string `json:"originCity" binding:"required"`
	OriginCountry      string `json:"originCountry" binding:"required"`
	DestinationCity    string `json:"destinationCity" binding:"required"`
	DestinationCountry string `json:"destinationCountry" binding:"required"`
}

func (h *Handler) listRouteInterests(c *gin.Context) {
	routes, err := h.svc.ListRouteInterests(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeList(c, routes)
}

// resolveRouteInterest answers 201 for a new route and 200 when the tuple already existed.
func (h *Handler) resolveRouteInterest(c *gin.Context) {
	var req routeInterestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	route, created, err := h.svc.ResolveRouteInterest(c.Request.Context(), domain.RouteKey(req))
	if err != nil {
		h.writeError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeData(c, status, route)
}

func (h *Handler) getRouteInterest(c *gin.Context) {
	detail, err := h.svc.GetRouteInterest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, detail)
}

func (h *Handler) deleteRouteInterest(c *gin.Context) {
	if err := h.svc.DeleteRouteInterest(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	writeSuccess(c)
}

func (h *Handler) searchCities(c *gin.Context) {
	cities, err := h.svc.SearchCities(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeList(c, cities)
}

func (h *Handler) createExport(c *gin.Context) {
	if h.exporter == nil {
		c.JSON(http.StatusNotFound, errorBody{Error: "exports not configured", Code: "NOT_FOUND"})
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	info, err := h.exporter.ExportRouteInterests(c.Request.Context(), format)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeData(c, http.StatusCreated, info)
}

func (h *Handler) listExports(c *gin.Context) {
	if h.exporter == nil {
		c.JSON(http.StatusNotFound, errorBody{Error: "exports not configured", Code: "NOT_FOUND"})
		return
	}
	infos, err := h.exporter.ListExports(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeList(c, infos)
}
