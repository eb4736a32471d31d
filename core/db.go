package core

import "context"

// DB is the store handle shared by the API health check and the process lifecycle.
type DB interface {
	PingContext(ctx context.Context) error
	Close() error
}
