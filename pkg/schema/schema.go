// Package schema provides access to perfmap's document schemas and metadata.
// This package enables third-party applications, such as dashboards that
// render the regional map, to introspect the shape of analysis results and
// the catalog document that drives inference.
//
// The schema information is useful for:
//   - Validating analysis results consumed from the HTTP API
//   - Authoring custom catalog files with editor completion
//   - Rendering progress bars from the fixed stage milestones
//   - Drawing the map from the canonical region list
//
// Example usage:
//
//	out, err := schema.GetSchema()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, r := range out.Regions {
//		fmt.Printf("%s (%s) at %.4f,%.4f\n", r.Name, r.ID, r.Lat, r.Lng)
//	}
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/perfmap/perfmap/internal/analysis"
	"github.com/perfmap/perfmap/internal/catalog"
	internalschema "github.com/perfmap/perfmap/internal/schema"
)

// SchemaOutput represents the complete schema information for perfmap.
type SchemaOutput struct {
	// Result is the JSON Schema of an automatic sheet analysis.
	Result json.RawMessage `json:"result"`
	// CustomResult is the JSON Schema of an explicit column analysis.
	CustomResult json.RawMessage `json:"custom_result"`
	// Catalog is the JSON Schema of the catalog document accepted by
	// --catalog and `perfmap catalog validate`.
	Catalog json.RawMessage `json:"catalog"`
	// Stages lists the progress milestones in the order they are reported.
	Stages []Stage `json:"stages"`
	// Regions lists the canonical regions of the embedded catalog.
	Regions []Region `json:"regions"`
}

// Stage is a progress milestone of a sheet analysis.
type Stage struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Percent int    `json:"percent"`
}

// Region is a canonical region with its map placement.
type Region struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Color string  `json:"color"`
}

var stages = []analysis.Stage{
	analysis.StageColumns,
	analysis.StageRatings,
	analysis.StageDepartments,
	analysis.StageRegions,
	analysis.StageComplete,
}

// GetSchema retrieves the complete schema information. The region list
// comes from the embedded catalog, not from any catalog passed at runtime.
//
// Errors can only come from schema reflection and indicate a broken build.
func GetSchema() (*SchemaOutput, error) {
	result, err := internalschema.Generate(&analysis.Result{})
	if err != nil {
		return nil, fmt.Errorf("error creating result schema: %w", err)
	}

	custom, err := internalschema.Generate(&analysis.CustomResult{})
	if err != nil {
		return nil, fmt.Errorf("error creating custom result schema: %w", err)
	}

	cat, err := internalschema.Generate(&catalog.Catalog{})
	if err != nil {
		return nil, fmt.Errorf("error creating catalog schema: %w", err)
	}

	out := &SchemaOutput{
		Result:       result,
		CustomResult: custom,
		Catalog:      cat,
	}

	for _, s := range stages {
		out.Stages = append(out.Stages, Stage{
			Name:    string(s),
			Status:  s.Status(),
			Percent: s.Percent(),
		})
	}

	for _, r := range catalog.Default().Regions {
		out.Regions = append(out.Regions, Region{
			ID:    r.ID,
			Name:  r.Name,
			Lat:   r.Lat,
			Lng:   r.Lng,
			Color: r.Color,
		})
	}

	return out, nil
}
