package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"humans/internal/adapters/export"
	"humans/internal/blob"
	"humans/internal/core"
	"humans/pkg/domain"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testServer struct {
	router   *gin.Engine
	svc      *core.Service
	registry *prometheus.Registry
	logs     *observer.ObservedLogs
}

func newTestServer(t *testing.T, withExporter bool) *testServer {
	t.Helper()
	svc := core.NewInMemoryService()
	obsCore, logs := observer.New(zapcore.DebugLevel)
	registry := prometheus.NewRegistry()
	opts := Options{Logger: zap.New(obsCore), Registry: registry}
	if withExporter {
		opts.Exporter = export.NewExporter(svc, blob.NewMemory())
	}
	router, err := NewRouter(svc, opts)
	require.NoError(t, err)
	return &testServer{router: router, svc: svc, registry: registry, logs: logs}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(v)
	default:
		payload, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type envelope[T any] struct {
	Data T `json:"data"`
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

var londonParis = map[string]string{
	"originCity":         "London",
	"originCountry":      "UK",
	"destinationCity":    "Paris",
	"destinationCountry": "France",
}

func TestResolveRouteInterestStatus(t *testing.T) {
	srv := newTestServer(t, false)

	first := srv.do(t, http.MethodPost, "/api/route-interests", londonParis)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	created := decodeData[domain.RouteInterest](t, first)
	assert.Equal(t, "ROI-000001", created.DisplayID)

	second := srv.do(t, http.MethodPost, "/api/route-interests", londonParis)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, created.ID, decodeData[domain.RouteInterest](t, second).ID)

	list := srv.do(t, http.MethodGet, "/api/route-interests", nil)
	require.Equal(t, http.StatusOK, list.Code)
	summaries := decodeData[[]domain.RouteInterestSummary](t, list)
	require.Len(t, summaries, 1)
	assert.Zero(t, summaries[0].HumanCount)

	missing := srv.do(t, http.MethodPost, "/api/route-interests", map[string]string{"originCity": "London"})
	require.Equal(t, http.StatusBadRequest, missing.Code)
	assert.Equal(t, codeValidation, decodeError(t, missing).Code)

	malformed := srv.do(t, http.MethodPost, "/api/route-interests", "{")
	assert.Equal(t, http.StatusBadRequest, malformed.Code)
}

func TestRouteInterestDetailAndCascade(t *testing.T) {
	srv := newTestServer(t, false)
	human := decodeData[domain.Human](t, srv.do(t, http.MethodPost, "/api/humans", map[string]string{"firstName": "Ada", "lastName": "Lovelace"}))

	exprBody := map[string]any{"humanId": human.ID, "originCity": "London", "originCountry": "UK", "destinationCity": "Paris", "destinationCountry": "France"}
	rec := srv.do(t, http.MethodPost, "/api/route-interest-expressions", exprBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	expr := decodeData[domain.RouteInterestExpression](t, rec)
	assert.Equal(t, domain.FrequencyOneTime, expr.Frequency)

	detailRec := srv.do(t, http.MethodGet, "/api/route-interests/"+expr.RouteInterestID, nil)
	require.Equal(t, http.StatusOK, detailRec.Code)
	detail := decodeData[domain.RouteInterestDetail](t, detailRec)
	require.Len(t, detail.Expressions, 1)
	assert.Equal(t, "Ada Lovelace", detail.Expressions[0].HumanName)
	assert.Nil(t, detail.Expressions[0].ActivitySubject)

	del := srv.do(t, http.MethodDelete, "/api/route-interests/"+expr.RouteInterestID, nil)
	require.Equal(t, http.StatusOK, del.Code)
	assert.JSONEq(t, `{"success":true}`, del.Body.String())

	gone := srv.do(t, http.MethodGet, "/api/route-interest-expressions/"+expr.ID, nil)
	require.Equal(t, http.StatusNotFound, gone.Code)
	assert.Equal(t, "ROUTE_EXPRESSION_NOT_FOUND", decodeError(t, gone).Code)

	route := srv.do(t, http.MethodGet, "/api/route-interests/"+expr.RouteInterestID, nil)
	require.Equal(t, http.StatusNotFound, route.Code)
	assert.Equal(t, "ROUTE_INTEREST_NOT_FOUND", decodeError(t, route).Code)
}

func TestExpressionPatchSemantics(t *testing.T) {
	srv := newTestServer(t, false)
	ctx := context.Background()
	human, err := srv.svc.CreateHuman(ctx, domain.Human{FirstName: "Grace", LastName: "Hopper"})
	require.NoError(t, err)
	route, _, err := srv.svc.ResolveRouteInterest(ctx, domain.RouteKey{OriginCity: "Oslo", OriginCountry: "Norway", DestinationCity: "Rome", DestinationCountry: "Italy"})
	require.NoError(t, err)
	expr, err := srv.svc.CreateExpression(ctx, core.ExpressionInput{
		HumanID: human.ID, RouteInterestID: route.ID, Frequency: "weekly", Notes: strPtr("window seat"),
	})
	require.NoError(t, err)
	path := "/api/route-interest-expressions/" + expr.ID

	rec := srv.do(t, http.MethodPatch, path, `{"notes":"aisle"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeData[domain.RouteInterestExpression](t, rec)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "aisle", *updated.Notes)
	assert.Equal(t, domain.Frequency("weekly"), updated.Frequency)

	rec = srv.do(t, http.MethodPatch, path, `{"notes":null}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeData[domain.RouteInterestExpression](t, rec).Notes)

	rec = srv.do(t, http.MethodPatch, path, `{"frequency":null}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeValidation, decodeError(t, rec).Code)

	rec = srv.do(t, http.MethodPatch, "/api/route-interest-expressions/nope", `{"notes":"x"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ROUTE_EXPRESSION_NOT_FOUND", decodeError(t, rec).Code)

	list := srv.do(t, http.MethodGet, "/api/route-interest-expressions?humanId="+human.ID, nil)
	require.Equal(t, http.StatusOK, list.Code)
	items := decodeData[[]domain.ExpressionListItem](t, list)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].OriginCity)
	assert.Equal(t, "Oslo", *items[0].OriginCity)

	empty := srv.do(t, http.MethodGet, "/api/route-interest-expressions?humanId=other", nil)
	assert.JSONEq(t, `{"data":[]}`, empty.Body.String())

	del := srv.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, del.Code)
}

func TestCreateExpressionValidation(t *testing.T) {
	srv := newTestServer(t, false)

	rec := srv.do(t, http.MethodPost, "/api/route-interest-expressions", map[string]string{"originCity": "London"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeValidation, decodeError(t, rec).Code)

	rec = srv.do(t, http.MethodPost, "/api/route-interest-expressions", map[string]string{"humanId": "h1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/route-interest-expressions", map[string]any{"humanId": "ghost", "routeInterestId": "r1"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "HUMAN_NOT_FOUND", decodeError(t, rec).Code)
}

func TestContactsEndpoints(t *testing.T) {
	srv := newTestServer(t, false)

	rec := srv.do(t, http.MethodPost, "/api/humans", map[string]string{"firstName": "Ada"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	human := decodeData[domain.Human](t, srv.do(t, http.MethodPost, "/api/humans", map[string]string{"firstName": "Ada", "lastName": "Lovelace"}))
	assert.Equal(t, "HUM-000001", human.DisplayID)
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/humans/"+human.ID, nil).Code)
	assert.Len(t, decodeData[[]domain.Human](t, srv.do(t, http.MethodGet, "/api/humans", nil)), 1)

	rec = srv.do(t, http.MethodPost, "/api/activities", map[string]any{"subject": "Call", "humanId": human.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	activity := decodeData[domain.Activity](t, rec)
	assert.Equal(t, "ACT-000001", activity.DisplayID)
	assert.Len(t, decodeData[[]domain.Activity](t, srv.do(t, http.MethodGet, "/api/activities", nil)), 1)

	rec = srv.do(t, http.MethodGet, "/api/activities/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ACTIVITY_NOT_FOUND", decodeError(t, rec).Code)

	exprBody := map[string]any{"humanId": human.ID, "activityId": activity.ID, "originCity": "A", "originCountry": "B", "destinationCity": "C", "destinationCountry": "D"}
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/route-interest-expressions", exprBody).Code)

	rec = srv.do(t, http.MethodDelete, "/api/humans/"+human.ID, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, codeConflict, decodeError(t, rec).Code)

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodDelete, "/api/activities/"+activity.ID, nil).Code)
	rec = srv.do(t, http.MethodGet, "/api/humans/missing", nil)
	assert.Equal(t, "HUMAN_NOT_FOUND", decodeError(t, rec).Code)
}

func TestGeoInterestsAndCitySearch(t *testing.T) {
	srv := newTestServer(t, false)
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/route-interests", londonParis).Code)

	rec := srv.do(t, http.MethodPost, "/api/geo-interests", map[string]string{"city": "Rome", "country": "Italy"})
	require.Equal(t, http.StatusCreated, rec.Code)
	geo := decodeData[domain.GeoInterest](t, rec)
	assert.Equal(t, "GEO-000001", geo.DisplayID)
	assert.Len(t, decodeData[[]domain.GeoInterest](t, srv.do(t, http.MethodGet, "/api/geo-interests", nil)), 1)

	cities := decodeData[[]domain.CityCandidate](t, srv.do(t, http.MethodGet, "/api/cities/search?q=o", nil))
	assert.Equal(t, []domain.CityCandidate{{City: "London", Country: "UK"}, {City: "Rome", Country: "Italy"}}, cities)
	assert.JSONEq(t, `{"data":[]}`, srv.do(t, http.MethodGet, "/api/cities/search?q=xyz", nil).Body.String())
	assert.JSONEq(t, `{"data":[]}`, srv.do(t, http.MethodGet, "/api/cities/search", nil).Body.String())

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodDelete, "/api/geo-interests/"+geo.ID, nil).Code)
	rec = srv.do(t, http.MethodDelete, "/api/geo-interests/"+geo.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "GEO_INTEREST_NOT_FOUND", decodeError(t, rec).Code)
}

func TestExportEndpoints(t *testing.T) {
	srv := newTestServer(t, true)
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/route-interests", londonParis).Code)

	rec := srv.do(t, http.MethodPost, "/api/route-interests/exports?format=json", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	info := decodeData[blob.Info](t, rec)
	assert.True(t, strings.HasPrefix(info.Key, export.Prefix))
	assert.True(t, strings.HasSuffix(info.Key, ".json"))

	listed := decodeData[[]blob.Info](t, srv.do(t, http.MethodGet, "/api/route-interests/exports", nil))
	require.Len(t, listed, 1)
	assert.Equal(t, info.Key, listed[0].Key)

	rec = srv.do(t, http.MethodPost, "/api/route-interests/exports?format=xml", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	disabled := newTestServer(t, false)
	assert.Equal(t, http.StatusNotFound, disabled.do(t, http.MethodGet, "/api/route-interests/exports", nil).Code)
}

type failingService struct {
	Service
}

func (failingService) ListHumans(context.Context) ([]domain.Human, error) {
	return nil, errors.New("database unavailable")
}

func (failingService) GetHuman(context.Context, string) (domain.Human, error) {
	panic("boom")
}

func TestInternalErrorsAreMasked(t *testing.T) {
	obsCore, logs := observer.New(zapcore.InfoLevel)
	router, err := NewRouter(failingService{Service: core.NewInMemoryService()}, Options{Logger: zap.New(obsCore)})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/humans", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error","code":"INTERNAL_ERROR"}`, rec.Body.String())
	require.Equal(t, 1, logs.FilterMessage("request failed").Len())
	assert.Equal(t, "database unavailable", logs.FilterMessage("request failed").All()[0].ContextMap()["error"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/humans/x", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("panic serving request").Len())
}

func TestHealthMetricsAndRequestLog(t *testing.T) {
	srv := newTestServer(t, false)

	health := srv.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, health.Code)
	assert.JSONEq(t, `{"status":"ok"}`, health.Body.String())

	srv.do(t, http.MethodGet, "/api/route-interests/a", nil)
	srv.do(t, http.MethodGet, "/api/route-interests/b", nil)
	srv.do(t, http.MethodGet, "/nowhere", nil)

	count, err := testutil.GatherAndCount(srv.registry, "humans_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "one series per route template and status")

	metrics := srv.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	body := metrics.Body.String()
	assert.Contains(t, body, `humans_http_requests_total{method="GET",route="/api/route-interests/:id",status="404"} 2`)
	assert.Contains(t, body, `route="unmatched"`)
	assert.Contains(t, body, "humans_http_request_duration_seconds_bucket")

	warnings := srv.logs.FilterMessage("http request").FilterField(zap.Int("status", http.StatusNotFound)).All()
	require.Len(t, warnings, 3)
	assert.Equal(t, zapcore.WarnLevel, warnings[0].Level)
	assert.Equal(t, "/api/route-interests/:id", warnings[0].ContextMap()["route"])
}

func TestOpenAPIDocumentServed(t *testing.T) {
	srv := newTestServer(t, false)

	rec := srv.do(t, http.MethodGet, "/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "/api/route-interest-expressions/{id}:")
}

func TestNewRouterRejectsDuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewRouter(core.NewInMemoryService(), Options{Registry: registry})
	require.NoError(t, err)
	_, err = NewRouter(core.NewInMemoryService(), Options{Registry: registry})
	assert.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.NotFound(domain.EntityHuman, "x"), http.StatusNotFound, "HUMAN_NOT_FOUND"},
		{domain.NotFound(domain.EntityActivity, "x"), http.StatusNotFound, "ACTIVITY_NOT_FOUND"},
		{domain.NotFound(domain.EntityRouteInterest, "x"), http.StatusNotFound, "ROUTE_INTEREST_NOT_FOUND"},
		{domain.NotFound(domain.EntityRouteInterestExpression, "x"), http.StatusNotFound, "ROUTE_EXPRESSION_NOT_FOUND"},
		{domain.NotFound(domain.EntityGeoInterest, "x"), http.StatusNotFound, "GEO_INTEREST_NOT_FOUND"},
		{domain.ErrValidation, http.StatusBadRequest, codeValidation},
		{errors.Join(errors.New("ctx"), domain.ErrConflict), http.StatusConflict, codeConflict},
		{errors.New("boom"), http.StatusInternalServerError, codeInternal},
	}
	for _, tc := range cases {
		status, code := statusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func strPtr(v string) *string { return &v }
