package store

import (
	"errors"
	"fmt"
)

// Kind tells the commit engine how to react to a failed store call.
type Kind int

const (
	// Fatal failures stop writes to the table.
	Fatal Kind = iota
	// ChunkRejected means the store refused the data itself, e.g. a
	// constraint violation. Retrying row by row isolates the bad rows.
	ChunkRejected
	// ConnectivityLost failures are transient and may be retried.
	ConnectivityLost
)

func (k Kind) String() string {
	switch k {
	case ChunkRejected:
		return "chunk_rejected"
	case ConnectivityLost:
		return "connectivity_lost"
	default:
		return "fatal"
	}
}

type Error struct {
	Kind  Kind
	Table string
	Op    string
	Err   error
}

func NewError(kind Kind, table, op string, err error) *Error {
	return &Error{Kind: kind, Table: table, Op: op, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Table, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err. Errors not produced by a store adapter
// are Fatal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return Fatal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
