package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/canvass/internal/adapters/postgres"
	"github.com/samirrijal/canvass/internal/adapters/valkey"
	"github.com/samirrijal/canvass/internal/core/domain"
	"github.com/samirrijal/canvass/internal/core/usecases"
)

// JobStarter launches an enumeration that runs outside the request.
type JobStarter interface {
	StartEnumeration(ctx context.Context, runID string, polygon domain.Polygon, step domain.StepSize) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Regions   *usecases.RegionService
	Addresses *usecases.AddressService
	Jobs      JobStarter
	NATS      *nats.Conn
	DB        *postgres.DB
	Cache     *valkey.Cache

	// ExportDir receives the addresses.txt file written by the legacy
	// enumeration endpoint and served by /download/:file.
	ExportDir string
}

// pinger is implemented by job starters that can report backend health.
type pinger interface {
	Ping(ctx context.Context) error
}
