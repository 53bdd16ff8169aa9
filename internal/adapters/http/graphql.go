package http

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/canvass/internal/core/domain"
)

var errNoAddressStore = errors.New("address store is not configured")

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	coordinateInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "CoordinateInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"lat": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"lng": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BoundingBox",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"min_lng": &graphql.Field{Type: graphql.Float},
			"max_lng": &graphql.Field{Type: graphql.Float},
		},
	})

	addressType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Address",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.Int},
			"address":     &graphql.Field{Type: graphql.String},
			"lat":         &graphql.Field{Type: graphql.Float},
			"lng":         &graphql.Field{Type: graphql.Float},
			"exported_at": &graphql.Field{Type: graphql.DateTime},
			"flier_sent":  &graphql.Field{Type: graphql.Boolean},
			"last_marked": &graphql.Field{Type: graphql.DateTime},
		},
	})

	addressPageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AddressPage",
		Fields: graphql.Fields{
			"total": &graphql.Field{Type: graphql.Int},
			"items": &graphql.Field{Type: graphql.NewList(addressType)},
		},
	})

	stepType := graphql.NewObject(graphql.ObjectConfig{
		Name: "StepSize",
		Fields: graphql.Fields{
			"name":    &graphql.Field{Type: graphql.String},
			"degrees": &graphql.Field{Type: graphql.Float},
		},
	})

	// Call counters are uint64 and outgrow GraphQL's 32-bit Int, so they
	// are exposed as Float.
	countersType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Counters",
		Fields: graphql.Fields{
			"reverseCalls": &graphql.Field{Type: graphql.Float},
			"forwardCalls": &graphql.Field{Type: graphql.Float},
		},
	})

	runType := graphql.NewObject(graphql.ObjectConfig{
		Name: "EnumerationRun",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"polygon":      &graphql.Field{Type: graphql.NewList(coordinateType)},
			"step":         &graphql.Field{Type: graphql.Float},
			"samples":      &graphql.Field{Type: graphql.Int},
			"inside":       &graphql.Field{Type: graphql.Int},
			"addresses":    &graphql.Field{Type: graphql.Int},
			"reverseCalls": &graphql.Field{Type: graphql.Float},
			"forwardCalls": &graphql.Field{Type: graphql.Float},
			"startedAt":    &graphql.Field{Type: graphql.DateTime},
			"finishedAt":   &graphql.Field{Type: graphql.DateTime},
		},
	})

	previewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RegionPreview",
		Fields: graphql.Fields{
			"step":            &graphql.Field{Type: graphql.Float},
			"stepName":        &graphql.Field{Type: graphql.String},
			"stepMeters":      &graphql.Field{Type: graphql.Float},
			"bounds":          &graphql.Field{Type: boundsType},
			"samples":         &graphql.Field{Type: graphql.Int},
			"inside":          &graphql.Field{Type: graphql.Int},
			"maxReverseCalls": &graphql.Field{Type: graphql.Int},
		},
	})

	resultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "EnumerationResult",
		Fields: graphql.Fields{
			"runId":        &graphql.Field{Type: graphql.String},
			"addresses":    &graphql.Field{Type: graphql.NewList(graphql.String)},
			"reverseCalls": &graphql.Field{Type: graphql.Float},
			"forwardCalls": &graphql.Field{Type: graphql.Float},
			"samples":      &graphql.Field{Type: graphql.Int},
			"inside":       &graphql.Field{Type: graphql.Int},
			"step":         &graphql.Field{Type: graphql.Float},
			"stored":       &graphql.Field{Type: graphql.Boolean},
			"storeError":   &graphql.Field{Type: graphql.String},
		},
	})

	polygonArg := &graphql.ArgumentConfig{
		Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(coordinateInput))),
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"addresses": &graphql.Field{
				Type:        addressPageType,
				Description: "Search stored addresses by substring",
				Args: graphql.FieldConfigArgument{
					"query":  &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Addresses == nil {
						return nil, errNoAddressStore
					}
					records, total, err := deps.Addresses.Search(p.Context, domain.AddressQuery{
						Text:   p.Args["query"].(string),
						Offset: p.Args["offset"].(int),
						Limit:  p.Args["limit"].(int),
					})
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{"total": total, "items": records}, nil
				},
			},
			"address": &graphql.Field{
				Type:        addressType,
				Description: "Get a stored address by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Addresses == nil {
						return nil, errNoAddressStore
					}
					return deps.Addresses.GetByID(p.Context, int64(p.Args["id"].(int)))
				},
			},
			"stepSize": &graphql.Field{
				Type:        stepType,
				Description: "Grid step used by new enumerations",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return stepMap(deps.Regions.StepSize()), nil
				},
			},
			"counters": &graphql.Field{
				Type:        countersType,
				Description: "Geocoding calls made since startup",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return countersMap(deps.Regions.Counters()), nil
				},
			},
			"runs": &graphql.Field{
				Type:        graphql.NewList(runType),
				Description: "Most recent enumeration runs",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					runs, err := deps.Regions.ListRuns(p.Context, p.Args["limit"].(int))
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, len(runs))
					for i, r := range runs {
						out[i] = map[string]interface{}{
							"id":           r.ID,
							"polygon":      []domain.Coordinate(r.Polygon),
							"step":         float64(r.Step),
							"samples":      r.Samples,
							"inside":       r.Inside,
							"addresses":    r.Addresses,
							"reverseCalls": float64(r.ReverseCalls),
							"forwardCalls": float64(r.ForwardCalls),
							"startedAt":    r.StartedAt,
							"finishedAt":   r.FinishedAt,
						}
					}
					return out, nil
				},
			},
			"preview": &graphql.Field{
				Type:        previewType,
				Description: "Count grid samples and reverse lookups for a polygon",
				Args:        graphql.FieldConfigArgument{"coordinates": polygonArg},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					polygon, err := polygonFromArgs(p.Args["coordinates"])
					if err != nil {
						return nil, err
					}
					pv, err := deps.Regions.PreviewRegion(p.Context, polygon)
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"step":            float64(pv.Step),
						"stepName":        pv.StepName,
						"stepMeters":      pv.StepMeters,
						"bounds":          pv.Bounds,
						"samples":         pv.Samples,
						"inside":          pv.Inside,
						"maxReverseCalls": pv.MaxReverses,
					}, nil
				},
			},
			"locate": &graphql.Field{
				Type:        coordinateType,
				Description: "Forward-geocode an address",
				Args: graphql.FieldConfigArgument{
					"address": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Regions.LocateAddress(p.Context, p.Args["address"].(string))
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"setStepSize": &graphql.Field{
				Type:        stepType,
				Description: "Select a step preset: coarse, medium or fine",
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					step, err := deps.Regions.SetStepSize(p.Args["name"].(string))
					if err != nil {
						return nil, err
					}
					return stepMap(step), nil
				},
			},
			"markFlierSent": &graphql.Field{
				Type:        addressType,
				Description: "Mark or unmark an address as having received a flier",
				Args: graphql.FieldConfigArgument{
					"id":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"sent": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Boolean)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Addresses == nil {
						return nil, errNoAddressStore
					}
					return deps.Addresses.MarkFlierSent(p.Context, int64(p.Args["id"].(int)), p.Args["sent"].(bool))
				},
			},
			"enumerate": &graphql.Field{
				Type:        resultType,
				Description: "Enumerate the addresses inside a polygon with the current step",
				Args:        graphql.FieldConfigArgument{"coordinates": polygonArg},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					polygon, err := polygonFromArgs(p.Args["coordinates"])
					if err != nil {
						return nil, err
					}
					r, err := deps.Regions.EnumerateRegion(p.Context, polygon)
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"runId":        r.RunID,
						"addresses":    r.Addresses,
						"reverseCalls": float64(r.ReverseCalls),
						"forwardCalls": float64(r.ForwardCalls),
						"samples":      r.Samples,
						"inside":       r.Inside,
						"step":         float64(r.Step),
						"stored":       r.Stored,
						"storeError":   r.StoreError,
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

func stepMap(s domain.StepSize) map[string]interface{} {
	return map[string]interface{}{"name": s.Name(), "degrees": float64(s)}
}

func countersMap(c domain.CounterSnapshot) map[string]interface{} {
	return map[string]interface{}{"reverseCalls": float64(c.ReverseCalls), "forwardCalls": float64(c.ForwardCalls)}
}

// polygonFromArgs converts a [CoordinateInput!]! argument.
func polygonFromArgs(arg interface{}) (domain.Polygon, error) {
	list, ok := arg.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: coordinates must be a list", domain.ErrInvalidInput)
	}
	p := make(domain.Polygon, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: coordinate %d is not an object", domain.ErrInvalidInput, i)
		}
		lat, _ := m["lat"].(float64)
		lng, _ := m["lng"].(float64)
		p = append(p, domain.Coordinate{Lat: lat, Lng: lng})
	}
	return p, nil
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
