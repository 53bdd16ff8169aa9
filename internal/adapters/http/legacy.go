package http

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/canvass/internal/core/domain"
	"github.com/samirrijal/canvass/internal/export"
)

// LegacyExportFile is the file the legacy enumeration endpoint writes.
const LegacyExportFile = "addresses.txt"

// LegacySunset is when the /api routes of the original browser app go away.
var LegacySunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// LegacyRoutes lists the deprecated browser-app endpoints and their successors.
var LegacyRoutes = []DeprecatedRoute{
	{Path: "/api/set-step-size", SunsetDate: LegacySunset, Alternative: "/v1/step-size"},
	{Path: "/api/get-addresses", SunsetDate: LegacySunset, Alternative: "/v1/regions/enumerate"},
	{Path: "/api/center-map", SunsetDate: LegacySunset, Alternative: "/v1/geocode/locate"},
	{Path: "/api/search-addresses", SunsetDate: LegacySunset, Alternative: "/v1/addresses"},
	{Path: "/api/update-address-status", SunsetDate: LegacySunset, Alternative: "/v1/addresses/:id/status"},
	{Path: "/download/:file", SunsetDate: LegacySunset, Alternative: "/v1/addresses/export"},
}

// legacyError answers in the {"error": "..."} shape the browser app reads.
func legacyError(c *fiber.Ctx, err error) error {
	status, _ := statusFor(err)
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// legacyAddress is a stored address as the search page renders it.
type legacyAddress struct {
	ID         int64      `json:"id"`
	Address    string     `json:"address"`
	Lat        float64    `json:"lat"`
	Lng        float64    `json:"lng"`
	Timestamp  time.Time  `json:"timestamp"`
	FlierSent  bool       `json:"flier_sent"`
	LastMarked *time.Time `json:"last_marked"`
}

func toLegacyAddress(r domain.AddressRecord) legacyAddress {
	return legacyAddress{
		ID:         r.ID,
		Address:    r.Address,
		Lat:        r.Lat,
		Lng:        r.Lng,
		Timestamp:  r.ExportedAt,
		FlierSent:  r.FlierSent,
		LastMarked: r.LastMarked,
	}
}

// LegacySetStepSizeHandler accepts {"stepSize": "low"|"medium"|"high"}.
func LegacySetStepSizeHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		StepSize string `json:"stepSize"`
	}
	return func(c *fiber.Ctx) error {
		var req request
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid step size"})
		}
		if _, err := deps.Regions.SetStepSize(req.StepSize); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid step size"})
		}
		return c.JSON(fiber.Map{"message": "Step size set successfully"})
	}
}

// LegacyGetAddressesHandler enumerates {"coordinates": [...]} and writes the
// result to addresses.txt for download.
func LegacyGetAddressesHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		Coordinates []domain.Coordinate `json:"coordinates"`
	}
	return func(c *fiber.Ctx) error {
		var req request
		if err := c.BodyParser(&req); err != nil || len(req.Coordinates) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No coordinates provided"})
		}

		result, err := deps.Regions.EnumerateRegion(c.UserContext(), domain.Polygon(req.Coordinates))
		if err != nil {
			return legacyError(c, err)
		}
		if _, err := export.WriteTextFile(deps.ExportDir, LegacyExportFile, result.Addresses); err != nil {
			return legacyError(c, err)
		}

		return c.JSON(fiber.Map{
			"file":              LegacyExportFile,
			"addresses":         result.Addresses,
			"geocodingAPICount": result.ReverseCalls,
			"placesAPICount":    result.ForwardCalls,
		})
	}
}

// LegacyCenterMapHandler forward-geocodes {"address": "..."} to {lat, lng}.
func LegacyCenterMapHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		Address string `json:"address"`
	}
	return func(c *fiber.Ctx) error {
		var req request
		if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Address) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No address provided"})
		}
		coord, err := deps.Regions.LocateAddress(c.UserContext(), req.Address)
		if err != nil {
			return legacyError(c, err)
		}
		return c.JSON(coord)
	}
}

// LegacySearchAddressesHandler matches {"query": "..."} against stored addresses.
func LegacySearchAddressesHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		Query string `json:"query"`
	}
	return func(c *fiber.Ctx) error {
		if deps.Addresses == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "address store is not configured"})
		}
		var req request
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		records, _, err := deps.Addresses.Search(c.UserContext(), domain.AddressQuery{Text: req.Query, Limit: 100})
		if err != nil {
			return legacyError(c, err)
		}
		out := make([]legacyAddress, len(records))
		for i, r := range records {
			out[i] = toLegacyAddress(r)
		}
		return c.JSON(fiber.Map{"addresses": out})
	}
}

// LegacyUpdateStatusHandler applies {"id": n, "flierSent": bool}.
func LegacyUpdateStatusHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		ID        int64 `json:"id"`
		FlierSent bool  `json:"flierSent"`
	}
	return func(c *fiber.Ctx) error {
		if deps.Addresses == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "address store is not configured"})
		}
		var req request
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		rec, err := deps.Addresses.MarkFlierSent(c.UserContext(), req.ID, req.FlierSent)
		if err != nil {
			return legacyError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Address status updated", "address": toLegacyAddress(*rec)})
	}
}

// DownloadHandler serves a file written to the export directory. Only
// plain file names are accepted.
func DownloadHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("file")
		if !safeFileName(name) {
			return errBadRequest(c, "invalid file name")
		}
		path := filepath.Join(deps.ExportDir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return errNotFound(c, "file not found")
			}
			return errInternal(c, err.Error())
		}
		c.Set("Cache-Control", "no-store")
		return c.Download(path, name)
	}
}

func safeFileName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		name == filepath.Base(name) && !strings.ContainsAny(name, `/\`)
}
