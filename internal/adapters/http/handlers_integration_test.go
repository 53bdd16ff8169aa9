//go:build integration
// +build integration

package http_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handler "github.com/samirrijal/canvass/internal/adapters/http"
	"github.com/samirrijal/canvass/internal/adapters/postgres"
	"github.com/samirrijal/canvass/internal/core/domain"
	"github.com/samirrijal/canvass/internal/core/usecases"
	"github.com/samirrijal/canvass/internal/pkg/config"
)

// setupTestDB connects to a migrated test database (see cmd/migrate).
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("canvass-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

// setupTestDeps wires real repositories with a fake geocoder that names
// every point by its coordinates.
func setupTestDeps(t *testing.T, db *postgres.DB, tag string) *handler.Dependencies {
	provider := &mockProvider{
		reverseFn: func(ctx context.Context, c domain.Coordinate) (string, bool, error) {
			return fmt.Sprintf("%s %.4f %.4f", tag, c.Lat, c.Lng), true, nil
		},
	}
	addresses := postgres.NewAddressRepo(db)
	resolver := usecases.NewResolver(provider, &domain.CallCounters{})
	return &handler.Dependencies{
		Regions: usecases.NewRegionService(resolver, domain.NewStepSetting(domain.StepCoarse),
			addresses, postgres.NewRunRepo(db), nil),
		Addresses: usecases.NewAddressService(addresses),
		DB:        db,
		ExportDir: t.TempDir(),
	}
}

func TestEnumerateThenSearch_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	tag := "integ-" + time.Now().Format("20060102150405.000")
	app := setupApp(setupTestDeps(t, db, tag))

	resp := do(t, app, "POST", "/v1/regions/enumerate", tinySquareJSON)
	require.Equal(t, 200, resp.StatusCode)
	var result domain.EnumerationResult
	decode(t, resp, &result)
	require.Len(t, result.Addresses, 4)

	var page struct {
		Data       []domain.AddressRecord `json:"data"`
		Pagination handler.Pagination     `json:"pagination"`
	}
	decode(t, do(t, app, "GET", "/v1/addresses?q="+tag, ""), &page)
	require.Equal(t, 4, page.Pagination.Total)
	require.Len(t, page.Data, 4)

	id := page.Data[0].ID
	resp = do(t, app, "POST", fmt.Sprintf("/v1/addresses/%d/status", id), `{"flierSent":true}`)
	require.Equal(t, 200, resp.StatusCode)
	var rec domain.AddressRecord
	decode(t, resp, &rec)
	assert.True(t, rec.FlierSent)
	assert.NotNil(t, rec.LastMarked)

	var runs []domain.EnumerationRun
	decode(t, do(t, app, "GET", "/v1/regions/runs?limit=5", ""), &runs)
	require.NotEmpty(t, runs)
	assert.Equal(t, result.RunID, runs[0].ID)
	assert.Len(t, runs[0].Polygon, 4)
}

func TestReady_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	app := setupApp(setupTestDeps(t, db, "ready"))

	resp := do(t, app, "GET", "/v1/ready", "")
	assert.Equal(t, 200, resp.StatusCode)
}
