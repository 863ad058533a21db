package engine

import (
	"errors"

	"github.com/plagio/plagio"
)

var (
	// ErrClosed is returned by Search on an Engine that has been closed.
	ErrClosed = errors.New("engine: closed")
	// ErrMissingDocIDs is returned when a shard's docids file doesn't
	// exist or is malformed.
	ErrMissingDocIDs = errors.New("engine: missing or malformed docids file")
)

func wrapLoadErr(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := plagio.KindIO
	if k, ok := plagio.KindOf(err); ok {
		kind = k
	}
	return plagio.NewCoreError(kind, op, err)
}
