package db

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound is returned by Get for an absent key.
	ErrKeyNotFound = errors.New("db: key not found")
	// ErrIndexNotFound is returned by index operations on an unknown FT index.
	ErrIndexNotFound = errors.New("db: index not found")
	// ErrIndexExists is returned by CreateIndex when the name is taken.
	ErrIndexExists = errors.New("db: index already exists")
)

// Op is the store command named in a failure.
type Op string

// Commands issued for title records, their FT indexes and the embedding cache.
const (
	OpCreateIndex Op = "FT.CREATE"
	OpDropIndex   Op = "FT.DROPINDEX"
	OpIndexInfo   Op = "FT.INFO"
	OpSearch      Op = "FT.SEARCH"
	OpDel         Op = "DEL"
	OpHGetAll     Op = "HGETALL"
	OpHSet        Op = "HSET"
	OpExists      Op = "EXISTS"
	OpGet         Op = "GET"
	OpSet         Op = "SET"
)

// Error records the failed command and the key or index it touched.
type Error struct {
	Op     Op
	Target string
	Err    error
}

// Wrap returns nil for a nil err and an *Error otherwise.
func Wrap(op Op, target string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Target: target, Err: err}
}

func (e *Error) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
