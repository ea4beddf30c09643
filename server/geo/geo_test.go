package geo

import (
	"testing"

	"github.com/ecotterell/carelink/server/models"
	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	origin := Point{Latitude: 0, Longitude: 0}

	// 0.003 degrees of longitude on the equator is ~334m
	near := Point{Latitude: 0, Longitude: 0.003}
	assert.InDelta(t, 334, Distance(origin, near), 5)

	// 0.01 degrees is ~1.1km
	far := Point{Latitude: 0, Longitude: 0.01}
	assert.Greater(t, Distance(origin, far), 1000.0)

	assert.Equal(t, 0.0, Distance(origin, origin))
}

func TestBoundingBoxContainsRadius(t *testing.T) {
	center := Point{Latitude: 43.65, Longitude: -79.38}
	box := BoundingBox(center, 500)

	assert.Less(t, box.SouthWest.Latitude, center.Latitude)
	assert.Greater(t, box.NorthEast.Latitude, center.Latitude)
	assert.Less(t, box.SouthWest.Longitude, center.Longitude)
	assert.Greater(t, box.NorthEast.Longitude, center.Longitude)

	// Every point on the radius must fall inside the box
	for _, bearing := range []float64{0, 45, 90, 135, 180, 225, 270, 315} {
		point := Destination(center, bearing, 500)

		assert.GreaterOrEqual(t, point.Latitude, box.SouthWest.Latitude)
		assert.LessOrEqual(t, point.Latitude, box.NorthEast.Latitude)
		assert.GreaterOrEqual(t, point.Longitude, box.SouthWest.Longitude)
		assert.LessOrEqual(t, point.Longitude, box.NorthEast.Longitude)
	}
}

func TestFindCandidates(t *testing.T) {
	store := models.InitializeTestStore()
	index := NewIndex(store)

	requester := &models.User{FirstName: "bruce", LastName: "wayne", Email: "bruce@wayne.com", IsCarer: true, IsOnline: true}
	nearCarer := &models.User{FirstName: "alfred", LastName: "pennyworth", Email: "alfred@wayne.com",
		IsCarer: true, IsOnline: true, Longitude: 0.003}
	farCarer := &models.User{FirstName: "clark", LastName: "kent", Email: "clark@dailyplanet.com",
		IsCarer: true, IsOnline: true, Longitude: 0.01}
	offlineCarer := &models.User{FirstName: "lucius", LastName: "fox", Email: "lucius@wayne.com",
		IsCarer: true, IsOnline: false, Longitude: 0.001}
	nonCarer := &models.User{FirstName: "harvey", LastName: "dent", Email: "harvey@gotham.gov",
		IsCarer: false, IsOnline: true, Longitude: 0.001}

	for _, user := range []*models.User{requester, nearCarer, farCarer, offlineCarer, nonCarer} {
		assert.Nil(t, store.CreateUser(user))
	}

	center := Point{Latitude: 0, Longitude: 0}
	filter := Filter{IsCarer: true, IsOnline: true}

	candidates, err := index.FindCandidates(center, 500, requester.ID, filter)
	assert.Nil(t, err)
	assert.Len(t, candidates, 1, "only the near, online carer should match")
	assert.Equal(t, nearCarer.ID, candidates[0].ID)

	// The requester never matches themselves, even at distance zero
	for _, candidate := range candidates {
		assert.NotEqual(t, requester.ID, candidate.ID)
	}

	// Every candidate is strictly inside the radius
	candidates, err = index.FindCandidates(center, 1200, requester.ID, filter)
	assert.Nil(t, err)
	for _, candidate := range candidates {
		location := Point{Latitude: candidate.Latitude, Longitude: candidate.Longitude}
		assert.Less(t, Distance(center, location), 1200.0)
	}
}

func TestFindCandidatesNoResults(t *testing.T) {
	store := models.InitializeTestStore()
	index := NewIndex(store)

	requester := &models.User{FirstName: "diana", LastName: "prince", Email: "diana@themyscira.org"}
	assert.Nil(t, store.CreateUser(requester))

	// no candidates is an empty sequence, not an error
	candidates, err := index.FindCandidates(Point{}, 500, requester.ID, Filter{IsCarer: true, IsOnline: true})
	assert.Nil(t, err)
	assert.Empty(t, candidates)
}
