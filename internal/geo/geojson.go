// Package geo builds the map-ready GeoJSON view of current reports and
// active live tracks.
package geo

// Feature is a GeoJSON Feature with a Point geometry.
type Feature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   Point          `json:"geometry"`
}

// Point is a GeoJSON Point geometry. Coordinates are [lon, lat] per
// RFC 7946.
type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// FeatureCollection is a GeoJSON FeatureCollection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection returns an empty collection whose Features field
// serializes as [] rather than null.
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}
}

// NewPointFeature builds a Point feature at (lat, lon).
func NewPointFeature(lat, lon float64, props map[string]any) Feature {
	return Feature{
		Type:       "Feature",
		Properties: props,
		Geometry:   Point{Type: "Point", Coordinates: [2]float64{lon, lat}},
	}
}
