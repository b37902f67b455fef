package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"

	"github.com/Ramsey-B/fern/pkg/store"
	"github.com/lib/pq"
)

// classify maps driver errors onto store error kinds by SQLSTATE class.
func classify(op, table string, err error) *store.Error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "22", "23":
			// data exception, integrity constraint violation
			return store.NewError(store.ChunkRejected, table, op, err)
		case "08", "53", "57":
			// connection exception, insufficient resources, operator intervention
			return store.NewError(store.ConnectivityLost, table, op, err)
		}
		return store.NewError(store.Fatal, table, op, err)
	}

	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.As(err, &netErr):
		return store.NewError(store.ConnectivityLost, table, op, err)
	}
	return store.NewError(store.Fatal, table, op, err)
}
