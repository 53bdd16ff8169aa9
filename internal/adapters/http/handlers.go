package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	natsadapter "github.com/samirrijal/canvass/internal/adapters/nats"
	"github.com/samirrijal/canvass/internal/core/domain"
	"github.com/samirrijal/canvass/internal/core/usecases"
	"github.com/samirrijal/canvass/internal/export"
	"github.com/samirrijal/canvass/internal/pkg/geospatial"
)

type coordinateInput struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

// regionRequest carries a polygon either as a vertex list or as a GeoJSON
// Polygon geometry.
type regionRequest struct {
	Coordinates []coordinateInput `json:"coordinates" validate:"omitempty,min=3,dive"`
	Geometry    json.RawMessage   `json:"geometry"`
}

func (r *regionRequest) polygon() (domain.Polygon, error) {
	if len(r.Geometry) > 0 && string(r.Geometry) != "null" {
		return geospatial.ParseGeoJSONPolygon(r.Geometry)
	}
	if len(r.Coordinates) == 0 {
		return nil, fmt.Errorf("%w: coordinates or geometry is required", domain.ErrInvalidInput)
	}
	p := make(domain.Polygon, len(r.Coordinates))
	for i, c := range r.Coordinates {
		p[i] = domain.Coordinate{Lat: *c.Lat, Lng: *c.Lng}
	}
	return p, nil
}

func bindRegion(c *fiber.Ctx) (domain.Polygon, error) {
	var req regionRequest
	if err := bindJSON(c, &req); err != nil {
		return nil, err
	}
	return req.polygon()
}

type stepSizeResponse struct {
	Name    string   `json:"name"`
	Degrees float64  `json:"degrees"`
	Presets []string `json:"presets"`
}

func newStepSizeResponse(s domain.StepSize) stepSizeResponse {
	return stepSizeResponse{Name: s.Name(), Degrees: float64(s), Presets: domain.StepPresetNames()}
}

// GetStepSizeHandler returns the grid step used by new enumerations.
func GetStepSizeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(newStepSizeResponse(deps.Regions.StepSize()))
	}
}

// SetStepSizeHandler selects a step preset by name.
func SetStepSizeHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		StepSize string `json:"stepSize" validate:"required"`
	}
	return func(c *fiber.Ctx) error {
		var req request
		if err := bindJSON(c, &req); err != nil {
			return errFromDomain(c, err)
		}
		step, err := deps.Regions.SetStepSize(req.StepSize)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(newStepSizeResponse(step))
	}
}

// EnumerateRegionHandler scans a polygon and returns the addresses inside it.
func EnumerateRegionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		polygon, err := bindRegion(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		result, err := deps.Regions.EnumerateRegion(c.UserContext(), polygon)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(result)
	}
}

// PreviewRegionHandler reports how many lookups an enumeration would make.
func PreviewRegionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		polygon, err := bindRegion(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		preview, err := deps.Regions.PreviewRegion(c.UserContext(), polygon)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(preview)
	}
}

// StartJobHandler hands an enumeration to the workflow engine and returns
// the run ID whose progress the WebSocket relay carries.
func StartJobHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Jobs == nil {
			return errUnavailable(c, "background enumeration is not configured")
		}
		polygon, err := bindRegion(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		if err := usecases.ValidatePolygon(polygon); err != nil {
			return errFromDomain(c, err)
		}

		runID := uuid.NewString()
		step := deps.Regions.StepSize()
		if err := deps.Jobs.StartEnumeration(c.UserContext(), runID, polygon, step); err != nil {
			return errInternal(c, err.Error())
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"runId":   runID,
			"subject": natsadapter.RunSubjects(runID),
			"step":    newStepSizeResponse(step),
		})
	}
}

// ListRunsHandler returns recent enumeration runs.
func ListRunsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		runs, err := deps.Regions.ListRuns(c.UserContext(), c.QueryInt("limit", 20))
		if err != nil {
			return errFromDomain(c, err)
		}
		if runs == nil {
			runs = []domain.EnumerationRun{}
		}
		return c.JSON(runs)
	}
}

// LocateHandler forward-geocodes a typed address.
func LocateHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		Address string `json:"address" validate:"required,max=500"`
	}
	return func(c *fiber.Ctx) error {
		var req request
		if err := bindJSON(c, &req); err != nil {
			return errFromDomain(c, err)
		}
		coord, err := deps.Regions.LocateAddress(c.UserContext(), req.Address)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(coord)
	}
}

// CountersHandler returns the geocoding call totals.
func CountersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Regions.Counters())
	}
}

// addressQuery reads q, the optional bounding box and pagination from the
// query string.
func addressQuery(c *fiber.Ctx) (domain.AddressQuery, error) {
	q := domain.AddressQuery{
		Text:   c.Query("q"),
		Offset: c.QueryInt("offset", 0),
		Limit:  c.QueryInt("limit", 20),
	}
	if len(q.Text) > 200 {
		return q, fmt.Errorf("%w: query too long (max 200 characters)", domain.ErrInvalidInput)
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}

	keys := []string{"min_lat", "max_lat", "min_lng", "max_lng"}
	var vals [4]float64
	set := 0
	for i, k := range keys {
		raw := c.Query(k)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidInput, k)
		}
		vals[i] = v
		set++
	}
	switch set {
	case 0:
	case len(keys):
		q.Bounds = &domain.BoundingBox{MinLat: vals[0], MaxLat: vals[1], MinLng: vals[2], MaxLng: vals[3]}
	default:
		return q, fmt.Errorf("%w: min_lat, max_lat, min_lng and max_lng must be given together", domain.ErrInvalidInput)
	}
	return q, nil
}

// SearchAddressesHandler pages through stored addresses.
func SearchAddressesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Addresses == nil {
			return errUnavailable(c, "address store is not configured")
		}
		q, err := addressQuery(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		records, total, err := deps.Addresses.Search(c.UserContext(), q)
		if err != nil {
			return errFromDomain(c, err)
		}
		if records == nil {
			records = []domain.AddressRecord{}
		}

		pg := Pagination{Offset: q.Offset, Limit: q.Limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: records, Pagination: pg})
	}
}

func addressID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: address id must be an integer", domain.ErrInvalidInput)
	}
	return id, nil
}

// GetAddressHandler returns one stored address.
func GetAddressHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Addresses == nil {
			return errUnavailable(c, "address store is not configured")
		}
		id, err := addressID(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		rec, err := deps.Addresses.GetByID(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(rec)
	}
}

// UpdateAddressStatusHandler marks or unmarks an address as having
// received a flier.
func UpdateAddressStatusHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		FlierSent *bool `json:"flierSent" validate:"required"`
	}
	return func(c *fiber.Ctx) error {
		if deps.Addresses == nil {
			return errUnavailable(c, "address store is not configured")
		}
		id, err := addressID(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		var req request
		if err := bindJSON(c, &req); err != nil {
			return errFromDomain(c, err)
		}
		rec, err := deps.Addresses.MarkFlierSent(c.UserContext(), id, *req.FlierSent)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(rec)
	}
}

// ExportAddressesHandler downloads stored addresses as txt, xlsx or geojson.
func ExportAddressesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Addresses == nil {
			return errUnavailable(c, "address store is not configured")
		}
		format, err := export.ParseFormat(c.Query("format"))
		if err != nil {
			return errFromDomain(c, err)
		}
		q, err := addressQuery(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		records, err := deps.Addresses.ExportRecords(c.UserContext(), q)
		if err != nil {
			return errFromDomain(c, err)
		}

		var buf bytes.Buffer
		if err := export.Write(format, &buf, records); err != nil {
			return errInternal(c, err.Error())
		}
		c.Attachment(format.Filename("addresses"))
		c.Set(fiber.HeaderContentType, format.ContentType())
		c.Set("Cache-Control", "no-store")
		return c.Send(buf.Bytes())
	}
}
