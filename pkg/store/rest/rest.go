// Package rest is a store.Store over a PostgREST table API such as the one
// Supabase exposes at /rest/v1.
package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/store"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultPageSize matches PostgREST's usual max-rows setting.
const DefaultPageSize = 1000

type Config struct {
	URL        string
	ServiceKey string
	PageSize   int
	HTTP       httpclient.Config
}

type Store struct {
	client   *httpclient.Client
	base     string
	pageSize int
	logger   ectologger.Logger
}

var _ store.Store = (*Store)(nil)

func New(cfg Config, logger ectologger.Logger) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("store url is required")
	}
	if cfg.ServiceKey == "" {
		return nil, fmt.Errorf("store service key is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid store url: %w", err)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP = httpclient.DefaultConfig()
	}

	cfg.HTTP.Headers = map[string]string{
		"apikey":        cfg.ServiceKey,
		"Authorization": "Bearer " + cfg.ServiceKey,
		"Accept":        "application/json",
	}

	return &Store{
		client:   httpclient.NewClient(cfg.HTTP, logger),
		base:     strings.TrimRight(cfg.URL, "/") + "/rest/v1/",
		pageSize: cfg.PageSize,
		logger:   logger,
	}, nil
}

func (s *Store) Insert(ctx context.Context, table string, rows []store.Row) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "RestStore.Insert", attribute.String("table", table), attribute.Int("rows", len(rows)))
	defer span.End()

	if len(rows) == 0 {
		return nil, nil
	}

	// PostgREST takes the columns of a bulk insert from the first object
	// unless told otherwise.
	q := url.Values{}
	q.Set("columns", strings.Join(store.Columns(rows), ","))

	headers := map[string]string{"Prefer": "return=representation,missing=default"}
	resp, err := s.send(ctx, "insert", table, http.MethodPost, s.endpoint(table, q), headers, rows)
	if err != nil {
		return nil, err
	}

	var created []store.Row
	if err := resp.Decode(&created); err != nil {
		return nil, store.NewError(store.Fatal, table, "insert", err)
	}

	ids := make([]string, len(created))
	for i, row := range created {
		if id, ok := row["id"]; ok && id != nil {
			ids[i] = fmt.Sprint(id)
		}
	}
	return ids, nil
}

func (s *Store) InsertOne(ctx context.Context, table string, row store.Row) (string, error) {
	ids, err := s.Insert(ctx, table, []store.Row{row})
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", store.NewError(store.Fatal, table, "insert", errors.New("no row returned"))
	}
	return ids[0], nil
}

// Select pages through the table so results are not cut at the server's
// row limit.
func (s *Store) Select(ctx context.Context, table string, filter store.Filter, columns ...string) ([]store.Row, error) {
	ctx, span := tracing.StartSpan(ctx, "RestStore.Select", attribute.String("table", table), attribute.String("filter", filter.String()))
	defer span.End()

	sel := "*"
	if len(columns) > 0 {
		sel = strings.Join(columns, ",")
	}

	var out []store.Row
	for offset := 0; ; offset += s.pageSize {
		q := query(filter)
		q.Set("select", sel)
		q.Set("order", "id")
		q.Set("limit", strconv.Itoa(s.pageSize))
		q.Set("offset", strconv.Itoa(offset))

		resp, err := s.send(ctx, "select", table, http.MethodGet, s.endpoint(table, q), nil, nil)
		if err != nil {
			return nil, err
		}

		var page []store.Row
		if err := resp.Decode(&page); err != nil {
			return nil, store.NewError(store.Fatal, table, "select", err)
		}
		out = append(out, page...)
		if len(page) < s.pageSize {
			return out, nil
		}
	}
}

func (s *Store) Count(ctx context.Context, table string, filter store.Filter) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "RestStore.Count", attribute.String("table", table), attribute.String("filter", filter.String()))
	defer span.End()

	q := query(filter)
	q.Set("select", "id")
	q.Set("limit", "1")

	headers := map[string]string{"Prefer": "count=exact"}
	resp, err := s.send(ctx, "count", table, http.MethodGet, s.endpoint(table, q), headers, nil)
	if err != nil {
		return 0, err
	}

	n, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return 0, store.NewError(store.Fatal, table, "count", err)
	}
	return n, nil
}

// Delete requires a filter: PostgREST refuses an unfiltered delete, so
// callers wanting every row pass store.Neq("id", store.NilUUID).
func (s *Store) Delete(ctx context.Context, table string, filter store.Filter) error {
	ctx, span := tracing.StartSpan(ctx, "RestStore.Delete", attribute.String("table", table), attribute.String("filter", filter.String()))
	defer span.End()

	if filter.IsZero() {
		return store.NewError(store.Fatal, table, "delete", errors.New("delete requires a filter"))
	}

	_, err := s.send(ctx, "delete", table, http.MethodDelete, s.endpoint(table, query(filter)), nil, nil)
	return err
}

func (s *Store) send(ctx context.Context, op, table, method, target string, headers map[string]string, body any) (*httpclient.Response, error) {
	start := time.Now()
	resp, err := s.client.Send(ctx, method, target, headers, body)
	metrics.StoreRequestDuration.WithLabelValues(op, table).Observe(time.Since(start).Seconds())

	if err := classify(op, table, resp, err); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"op":    op,
			"table": table,
			"kind":  store.KindOf(err).String(),
		}).Warn("Store request failed")
		return nil, err
	}
	return resp, nil
}

func (s *Store) endpoint(table string, q url.Values) string {
	target := s.base + url.PathEscape(table)
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	return target
}

// query renders a filter in PostgREST's column=op.value form.
func query(filter store.Filter) url.Values {
	q := url.Values{}
	if filter.IsZero() {
		return q
	}
	if filter.Value == nil {
		if filter.Op == store.OpNeq {
			q.Set(filter.Column, "not.is.null")
		} else {
			q.Set(filter.Column, "is.null")
		}
		return q
	}
	q.Set(filter.Column, fmt.Sprintf("%s.%v", filter.Op, filter.Value))
	return q
}

// parseContentRange reads the total from "0-24/3573" or "*/0".
func parseContentRange(header string) (int, error) {
	i := strings.LastIndex(header, "/")
	if i < 0 {
		return 0, fmt.Errorf("missing count in content range %q", header)
	}
	total := header[i+1:]
	if total == "*" {
		return 0, fmt.Errorf("server did not report an exact count")
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("invalid count in content range %q: %w", header, err)
	}
	return n, nil
}
