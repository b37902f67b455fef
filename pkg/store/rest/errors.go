package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/store"
)

// apiError is PostgREST's error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// classify maps a transport failure or a non-2xx response onto a store
// error kind. Response errors wrap an *httperror.HTTPError so callers can
// read the status back.
func classify(op, table string, resp *httpclient.Response, err error) error {
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) || errors.Is(err, context.DeadlineExceeded) {
			return store.NewError(store.ConnectivityLost, table, op, err)
		}
		return store.NewError(store.Fatal, table, op, err)
	}
	if resp.OK() {
		return nil
	}

	return store.NewError(kindOf(resp.StatusCode), table, op, httperror.NewHTTPError(resp.StatusCode, message(resp)))
}

func kindOf(status int) store.Kind {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return store.ConnectivityLost
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return store.Fatal
	}
	return store.ChunkRejected
}

func message(resp *httpclient.Response) string {
	var body apiError
	if err := json.Unmarshal(resp.Body, &body); err == nil && body.Message != "" {
		parts := []string{body.Message}
		if body.Code != "" {
			parts[0] = fmt.Sprintf("%s (%s)", body.Message, body.Code)
		}
		if body.Details != "" {
			parts = append(parts, body.Details)
		}
		return strings.Join(parts, ": ")
	}
	if text := strings.TrimSpace(string(resp.Body)); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
