// Package export renders the route-interest report and stores it in blob storage.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"humans/internal/blob"
	"humans/pkg/domain"
)

// Prefix is the blob key prefix under which reports are stored.
const Prefix = "exports/route-interests/"

// Format is a report encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a requested format; empty selects CSV.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q: %w", raw, domain.ErrValidation)
	}
}

func (f Format) contentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// RouteInterestLister is the slice of the core service the exporter reads from.
type RouteInterestLister interface {
	ListRouteInterests(ctx context.Context) ([]domain.RouteInterestSummary, error)
}

// Exporter writes route-interest reports to a blob store.
type Exporter struct {
	source RouteInterestLister
	store  blob.Store
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
	expiry time.Duration
}

// Option customises an Exporter.
type Option func(*Exporter)

// WithLogger sets the exporter logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the clock used for report keys.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithURLExpiry sets the lifetime of presigned report URLs.
func WithURLExpiry(d time.Duration) Option {
	return func(e *Exporter) { e.expiry = d }
}

// NewExporter constructs an exporter reading from source and writing to store.
func NewExporter(source RouteInterestLister, store blob.Store, opts ...Option) *Exporter {
	e := &Exporter{
		source: source,
		store:  store,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		expiry: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExportRouteInterests renders the list-with-counts report and stores it under
// Prefix. The returned Info carries a presigned URL when the backend has one.
func (e *Exporter) ExportRouteInterests(ctx context.Context, format Format) (blob.Info, error) {
	if format != FormatCSV && format != FormatJSON {
		return blob.Info{}, fmt.Errorf("unsupported export format %q: %w", format, domain.ErrValidation)
	}
	summaries, err := e.source.ListRouteInterests(ctx)
	if err != nil {
		return blob.Info{}, fmt.Errorf("list route interests: %w", err)
	}
	var payload []byte
	switch format {
	case FormatJSON:
		payload, err = renderJSON(summaries)
	default:
		payload, err = renderCSV(summaries)
	}
	if err != nil {
		return blob.Info{}, fmt.Errorf("render %s report: %w", format, err)
	}

	key := fmt.Sprintf("%s%s-%s.%s", Prefix, e.now().UTC().Format("20060102T150405Z"), e.newID(), format)
	info, err := e.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: format.contentType(),
		Metadata: map[string]string{
			"format": string(format),
			"rows":   strconv.Itoa(len(summaries)),
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store report: %w", err)
	}
	url, err := e.store.PresignURL(ctx, key, blob.SignedURLOptions{Expiry: e.expiry})
	switch {
	case err == nil:
		info.URL = url
	case errors.Is(err, blob.ErrUnsupported):
	default:
		e.logger.Warn("presign report url failed", zap.String("key", key), zap.Error(err))
	}
	e.logger.Info("route interest report exported",
		zap.String("key", key),
		zap.String("format", string(format)),
		zap.Int("rows", len(summaries)),
		zap.Int64("bytes", info.Size),
	)
	return info, nil
}

// ListExports returns the stored reports ordered by key, oldest first.
func (e *Exporter) ListExports(ctx context.Context) ([]blob.Info, error) {
	infos, err := e.store.List(ctx, Prefix)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	if infos == nil {
		infos = []blob.Info{}
	}
	return infos, nil
}

var csvHeader = []string{
	"id", "displayId",
	"originCity", "originCountry", "destinationCity", "destinationCountry",
	"humanCount", "expressionCount", "createdAt",
}

func renderCSV(summaries []domain.RouteInterestSummary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, s := range summaries {
		record := []string{
			s.ID, s.DisplayID,
			s.OriginCity, s.OriginCountry, s.DestinationCity, s.DestinationCountry,
			strconv.Itoa(s.HumanCount), strconv.Itoa(s.ExpressionCount),
			s.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func renderJSON(summaries []domain.RouteInterestSummary) ([]byte, error) {
	if summaries == nil {
		summaries = []domain.RouteInterestSummary{}
	}
	return json.MarshalIndent(summaries, "", "  ")
}
