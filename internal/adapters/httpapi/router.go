// Package httpapi exposes the route-interest service over HTTP with gin.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"humans/internal/adapters/export"
	"humans/internal/blob"
	"humans/internal/core"
	"humans/internal/entitymodel"
	"humans/pkg/domain"
)

// Service is the core surface served by the router.
type Service interface {
	ResolveRouteInterest(ctx context.Context, key domain.RouteKey) (domain.RouteInterest, bool, error)
	ListRouteInterests(ctx context.Context) ([]domain.RouteInterestSummary, error)
	GetRouteInterest(ctx context.Context, id string) (domain.RouteInterestDetail, error)
	DeleteRouteInterest(ctx context.Context, id string) error

	CreateExpression(ctx context.Context, input core.ExpressionInput) (domain.RouteInterestExpression, error)
	GetExpression(ctx context.Context, id string) (domain.ExpressionDetail, error)
	ListExpressions(ctx context.Context, filter domain.ExpressionFilter) ([]domain.ExpressionListItem, error)
	UpdateExpression(ctx context.Context, id string, patch domain.ExpressionPatch) (domain.RouteInterestExpression, error)
	DeleteExpression(ctx context.Context, id string) error

	SearchCities(ctx context.Context, query string) ([]domain.CityCandidate, error)

	CreateHuman(ctx context.Context, human domain.Human) (domain.Human, error)
	GetHuman(ctx context.Context, id string) (domain.Human, error)
	ListHumans(ctx context.Context) ([]domain.Human, error)
	DeleteHuman(ctx context.Context, id string) error
	CreateActivity(ctx context.Context, activity domain.Activity) (domain.Activity, error)
	GetActivity(ctx context.Context, id string) (domain.Activity, error)
	ListActivities(ctx context.Context) ([]domain.Activity, error)
	DeleteActivity(ctx context.Context, id string) error
	CreateGeoInterest(ctx context.Context, geo domain.GeoInterest) (domain.GeoInterest, error)
	ListGeoInterests(ctx context.Context) ([]domain.GeoInterest, error)
	DeleteGeoInterest(ctx context.Context, id string) error
}

// Exporter produces stored route-interest reports.
type Exporter interface {
	ExportRouteInterests(ctx context.Context, format export.Format) (blob.Info, error)
	ListExports(ctx context.Context) ([]blob.Info, error)
}

// Options configures NewRouter. Zero values are usable.
type Options struct {
	Logger   *zap.Logger
	Registry *prometheus.Registry
	// Exporter enables the export endpoints when set.
	Exporter Exporter
}

// Handler binds the service to gin handlers.
type Handler struct {
	svc      Service
	exporter Exporter
	logger   *zap.Logger
}

// NewRouter builds the gin engine with every API route plus the health,
// metrics and OpenAPI endpoints.
func NewRouter(svc Service, opts Options) (*gin.Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	metrics, err := newHTTPMetrics(registry)
	if err != nil {
		return nil, err
	}

	h := &Handler{svc: svc, exporter: opts.Exporter, logger: logger}

	router := gin.New()
	router.Use(gin.CustomRecovery(h.recover), requestLogger(logger), metrics.middleware())
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Error: "route not found", Code: "NOT_FOUND"})
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/openapi.yaml", gin.WrapH(entitymodel.NewOpenAPIHandler()))

	api := router.Group("/api")
	{
		api.GET("/route-interests", h.listRouteInterests)
		api.POST("/route-interests", h.resolveRouteInterest)
		api.GET("/route-interests/exports", h.listExports)
		api.POST("/route-interests/exports", h.createExport)
		api.GET("/route-interests/:id", h.getRouteInterest)
		api.DELETE("/route-interests/:id", h.deleteRouteInterest)

		api.GET("/route-interest-expressions", h.listExpressions)
		api.POST("/route-interest-expressions", h.createExpression)
		api.GET("/route-interest-expressions/:id", h.getExpression)
		api.PATCH("/route-interest-expressions/:id", h.updateExpression)
		api.DELETE("/route-interest-expressions/:id", h.deleteExpression)

		api.GET("/cities/search", h.searchCities)

		api.GET("/humans", h.listHumans)
		api.POST("/humans", h.createHuman)
		api.GET("/humans/:id", h.getHuman)
		api.DELETE("/humans/:id", h.deleteHuman)

		api.GET("/activities", h.listActivities)
		api.POST("/activities", h.createActivity)
		api.GET("/activities/:id", h.getActivity)
		api.DELETE("/activities/:id", h.deleteActivity)

		api.GET("/geo-interests", h.listGeoInterests)
		api.POST("/geo-interests", h.createGeoInterest)
		api.DELETE("/geo-interests/:id", h.deleteGeoInterest)
	}
	return router, nil
}

func (h *Handler) recover(c *gin.Context, recovered any) {
	h.logger.Error("panic serving request", zap.String("route", c.FullPath()), zap.Any("panic", recovered))
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal error", Code: codeInternal})
}
