package geo

import (
	"math"

	"github.com/ecotterell/carelink/server/models"
)

const earthRadiusMeters = 6371000.0

// Point is an immutable latitude/longitude pair in decimal degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Box is the bounding region handed to the store's range query.
type Box struct {
	SouthWest Point
	NorthEast Point
}

// Filter narrows candidates to records matching both flags.
type Filter struct {
	IsCarer  bool
	IsOnline bool
}

// Store is the slice of the record store the index needs: an approximate
// range scan over stored locations.
type Store interface {
	UsersWithinBounds(minLat, maxLat, minLon, maxLon float64, isCarer, isOnline bool) ([]models.User, error)
}

type Index struct {
	store Store
}

func NewIndex(store Store) *Index {
	return &Index{store: store}
}

// FindCandidates returns every stored user matching 'filter' whose true
// great-circle distance from 'center' is strictly less than 'radiusMeters',
// excluding 'excludeID' (the requester never matches themselves). No
// candidates is an empty slice, not an error.
func (index *Index) FindCandidates(center Point, radiusMeters float64, excludeID uint, filter Filter) ([]models.User, error) {
	box := BoundingBox(center, radiusMeters)

	// Stage 1: approximate range query. The box over-approximates the circle
	// near its corners, so stage 2 below re-checks every candidate.
	users, err := index.store.UsersWithinBounds(
		box.SouthWest.Latitude, box.NorthEast.Latitude,
		box.SouthWest.Longitude, box.NorthEast.Longitude,
		filter.IsCarer, filter.IsOnline)
	if err != nil {
		return nil, err
	}

	// Stage 2: precise great-circle distance filter.
	candidates := []models.User{}
	for _, user := range users {
		if user.ID == excludeID {
			continue
		}

		location := Point{Latitude: user.Latitude, Longitude: user.Longitude}
		if Distance(center, location) < radiusMeters {
			candidates = append(candidates, user)
		}
	}

	return candidates, nil
}

// BoundingBox projects 'center' along the cardinal bearings at
// 'radiusMeters' with the great-circle destination formula: 0° & 180° give
// the north/south edges, 90° & 270° the east/west ones.
func BoundingBox(center Point, radiusMeters float64) Box {
	north := Destination(center, 0, radiusMeters)
	east := Destination(center, 90, radiusMeters)
	south := Destination(center, 180, radiusMeters)
	west := Destination(center, 270, radiusMeters)

	return Box{
		SouthWest: Point{Latitude: south.Latitude, Longitude: west.Longitude},
		NorthEast: Point{Latitude: north.Latitude, Longitude: east.Longitude},
	}
}

// Destination returns the point reached by travelling 'distanceMeters' from
// 'origin' along the initial bearing 'bearingDeg', on a spherical earth.
func Destination(origin Point, bearingDeg, distanceMeters float64) Point {
	lat1 := toRadians(origin.Latitude)
	lon1 := toRadians(origin.Longitude)
	bearing := toRadians(bearingDeg)
	angular := distanceMeters / earthRadiusMeters

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(angular) +
		math.Cos(lat1)*math.Sin(angular)*math.Cos(bearing))
	lon2 := lon1 + math.Atan2(
		math.Sin(bearing)*math.Sin(angular)*math.Cos(lat1),
		math.Cos(angular)-math.Sin(lat1)*math.Sin(lat2))

	return Point{Latitude: toDegrees(lat2), Longitude: toDegrees(lon2)}
}

// Distance returns the haversine great-circle distance between two points in
// meters. The same formula backs both query stages, so results are
// reproducible for equal inputs.
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	deltaLat := toRadians(b.Latitude - a.Latitude)
	deltaLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
