// Package mapview models what the browser map renders: shapes with styles
// and popups, layers of shapes, and the viewport.
package mapview

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrEmptyGeometry is returned when a GeoJSON document carries no geometry.
var ErrEmptyGeometry = errors.New("empty geometry")

// ParseGeometry decodes a stored GeoJSON string. Bare geometries, Features
// and FeatureCollections are accepted; a collection becomes an orb.Collection.
func ParseGeometry(raw string) (orb.Geometry, error) {
	data := []byte(raw)

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parse geometry: %w", err)
	}

	switch head.Type {
	case "":
		return nil, fmt.Errorf("parse geometry: missing type")
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("parse feature: %w", err)
		}
		if f.Geometry == nil {
			return nil, ErrEmptyGeometry
		}
		return f.Geometry, nil
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("parse feature collection: %w", err)
		}
		var coll orb.Collection
		for _, f := range fc.Features {
			if f.Geometry != nil {
				coll = append(coll, f.Geometry)
			}
		}
		if len(coll) == 0 {
			return nil, ErrEmptyGeometry
		}
		return coll, nil
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", head.Type, err)
		}
		if g.Geometry() == nil {
			return nil, ErrEmptyGeometry
		}
		return g.Geometry(), nil
	}
}
