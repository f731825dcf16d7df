package geo

import (
	"github.com/twpayne/go-geom"
)

// CoastalRegion is a named bounding box along a coastline.
type CoastalRegion struct {
	Name   string
	Bounds *geom.Bounds
}

func coastalBox(name string, minLat, minLon, maxLat, maxLon float64) CoastalRegion {
	// XY layout: x is longitude, y is latitude.
	return CoastalRegion{
		Name:   name,
		Bounds: geom.NewBounds(geom.XY).Set(minLon, minLat, maxLon, maxLat),
	}
}

// CoastalRegions covers the Asturias and Cantabria coastlines.
var CoastalRegions = []CoastalRegion{
	coastalBox("asturias", 43.38, -7.20, 43.70, -4.50),
	coastalBox("cantabria", 43.30, -4.55, 43.55, -3.10),
}

// OnCoast reports whether the coordinate falls inside a known coastal region.
func OnCoast(lat, lon float64) bool {
	return CoastRegion(lat, lon) != ""
}

// CoastRegion returns the name of the coastal region containing the
// coordinate, or "".
func CoastRegion(lat, lon float64) string {
	pt := geom.Coord{lon, lat}
	for _, r := range CoastalRegions {
		if r.Bounds.OverlapsPoint(geom.XY, pt) {
			return r.Name
		}
	}
	return ""
}
