// Package traveltime computes drive times from a listing to the reference
// cities and the nearest beach, airport, train station, hospital and police
// station.
package traveltime

import (
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
)

// Category groups destinations that resolve to a single nearest result.
type Category string

const (
	CategoryCityA    Category = "city_a"
	CategoryCityB    Category = "city_b"
	CategoryBeach    Category = "beach"
	CategoryAirport  Category = "airport"
	CategoryTrain    Category = "train_station"
	CategoryHospital Category = "hospital"
	CategoryPolice   Category = "police"
)

// Destination is a named travel target.
type Destination struct {
	Name     string
	Category Category
	Lat      float64
	Lon      float64
}

var beaches = []Destination{
	{"Playa de San Lorenzo", CategoryBeach, 43.5390, -5.6531},
	{"Playa de Rodiles", CategoryBeach, 43.4844, -5.3869},
	{"Playa de Gulpiyuri", CategoryBeach, 43.4222, -4.7558},
	{"Playa del Sardinero", CategoryBeach, 43.4816, -3.7886},
	{"Playa de Comillas", CategoryBeach, 43.3878, -4.2894},
	{"Playa de Oyambre", CategoryBeach, 43.3756, -4.2736},
	{"Playa de la Concha de Artedo", CategoryBeach, 43.5667, -6.1500},
	{"Playa de Ribadesella", CategoryBeach, 43.4628, -5.0589},
}

var airports = []Destination{
	{"Santander Airport", CategoryAirport, 43.4270, -3.8201},
	{"Asturias Airport", CategoryAirport, 43.5637, -6.0346},
	{"Bilbao Airport", CategoryAirport, 43.3011, -2.9106},
}

var trainStations = []Destination{
	{"Santander Station", CategoryTrain, 43.4616, -3.8048},
	{"Oviedo Station", CategoryTrain, 43.3656, -5.8515},
	{"Gijón Station", CategoryTrain, 43.5406, -5.6606},
}

var hospitals = []Destination{
	{"Hospital Universitario Marqués de Valdecilla", CategoryHospital, 43.4559, -3.8049},
	{"Hospital Universitario Central de Asturias", CategoryHospital, 43.3378, -5.8515},
	{"Hospital de Cabueñes", CategoryHospital, 43.5211, -5.6069},
}

var policeStations = []Destination{
	{"Comisaría de Santander", CategoryPolice, 43.4623, -3.8099},
	{"Comisaría de Oviedo", CategoryPolice, 43.3614, -5.8593},
	{"Comisaría de Gijón", CategoryPolice, 43.5322, -5.6611},
}

// Destinations returns the full ordered destination list: the two reference
// cities, then beaches, airports, train stations, hospitals and police.
func Destinations(cities model.CityPair) []Destination {
	out := make([]Destination, 0, 2+len(beaches)+len(airports)+len(trainStations)+len(hospitals)+len(policeStations))
	out = append(out,
		Destination{Name: cities.A.Name, Category: CategoryCityA, Lat: cities.A.Lat, Lon: cities.A.Lon},
		Destination{Name: cities.B.Name, Category: CategoryCityB, Lat: cities.B.Lat, Lon: cities.B.Lon},
	)
	out = append(out, beaches...)
	out = append(out, airports...)
	out = append(out, trainStations...)
	out = append(out, hospitals...)
	out = append(out, policeStations...)
	return out
}
