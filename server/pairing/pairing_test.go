package pairing

import (
	"testing"

	"github.com/ecotterell/carelink/server/models"
	"github.com/stretchr/testify/assert"
)

func TestPair(t *testing.T) {
	store := models.InitializeTestStore()
	machine := NewMachine(store)

	requester := &models.User{FirstName: "tony", LastName: "stark", Email: "stark@avengers.com"}
	receiver := &models.User{FirstName: "peter", LastName: "parker", Email: "web@avengers.com", IsCarer: true}

	assert.Nil(t, store.CreateUser(requester))
	assert.Nil(t, store.CreateUser(receiver))

	err := machine.Pair(requester.ID, receiver.ID)
	assert.Nil(t, err)

	// Both sides must point at each other once the transition commits
	pairedRequester, err := store.FindUserByID(requester.ID)
	assert.Nil(t, err)
	pairedReceiver, err := store.FindUserByID(receiver.ID)
	assert.Nil(t, err)

	assert.NotNil(t, pairedRequester.ConnectedUserID)
	assert.NotNil(t, pairedReceiver.ConnectedUserID)
	assert.Equal(t, receiver.ID, *pairedRequester.ConnectedUserID)
	assert.Equal(t, requester.ID, *pairedReceiver.ConnectedUserID)
}

func TestPairRejectsPairedReceiver(t *testing.T) {
	store := models.InitializeTestStore()
	machine := NewMachine(store)

	requester := &models.User{FirstName: "steve", LastName: "rogers", Email: "cap@avengers.com"}
	otherRequester := &models.User{FirstName: "sam", LastName: "wilson", Email: "falcon@avengers.com"}
	receiver := &models.User{FirstName: "wanda", LastName: "maximoff", Email: "wanda@avengers.com", IsCarer: true}

	for _, user := range []*models.User{requester, otherRequester, receiver} {
		assert.Nil(t, store.CreateUser(user))
	}

	assert.Nil(t, machine.Pair(requester.ID, receiver.ID))

	// A second accept against the same receiver must be rejected before any
	// disconnect, and must not mutate the committed pairing
	err := machine.Pair(otherRequester.ID, receiver.ID)
	assert.ErrorIs(t, err, ErrAlreadyPaired)

	pairedReceiver, err := store.FindUserByID(receiver.ID)
	assert.Nil(t, err)
	assert.Equal(t, requester.ID, *pairedReceiver.ConnectedUserID)

	unpaired, err := store.FindUserByID(otherRequester.ID)
	assert.Nil(t, err)
	assert.Nil(t, unpaired.ConnectedUserID)
}

func TestPairRejectsPairedRequester(t *testing.T) {
	store := models.InitializeTestStore()
	machine := NewMachine(store)

	requester := &models.User{FirstName: "scott", LastName: "lang", Email: "ant@avengers.com"}
	firstReceiver := &models.User{FirstName: "hope", LastName: "vandyne", Email: "wasp@avengers.com", IsCarer: true}
	secondReceiver := &models.User{FirstName: "hank", LastName: "pym", Email: "hank@pym.tech", IsCarer: true}

	for _, user := range []*models.User{requester, firstReceiver, secondReceiver} {
		assert.Nil(t, store.CreateUser(user))
	}

	assert.Nil(t, machine.Pair(requester.ID, firstReceiver.ID))

	// The requester is already taken; the rejected transition must also undo
	// its receiver-side half-write
	err := machine.Pair(requester.ID, secondReceiver.ID)
	assert.ErrorIs(t, err, ErrAlreadyPaired)

	cleanReceiver, err := store.FindUserByID(secondReceiver.ID)
	assert.Nil(t, err)
	assert.Nil(t, cleanReceiver.ConnectedUserID)
}

func TestDisconnect(t *testing.T) {
	store := models.InitializeTestStore()
	machine := NewMachine(store)

	requester := &models.User{FirstName: "bruce", LastName: "banner", Email: "hulk@avengers.com"}
	receiver := &models.User{FirstName: "thor", LastName: "odinson", Email: "thor@asgard.com", IsCarer: true}

	assert.Nil(t, store.CreateUser(requester))
	assert.Nil(t, store.CreateUser(receiver))
	assert.Nil(t, machine.Pair(requester.ID, receiver.ID))

	partner, err := machine.Disconnect(requester.ID)
	assert.Nil(t, err)
	assert.Equal(t, receiver.ID, partner.ID)

	// Both sides are cleared
	for _, id := range []uint{requester.ID, receiver.ID} {
		user, err := store.FindUserByID(id)
		assert.Nil(t, err)
		assert.Nil(t, user.ConnectedUserID)
	}

	// Disconnect is idempotent - a second call is a no-op
	_, err = machine.Disconnect(requester.ID)
	assert.ErrorIs(t, err, ErrNotPaired)

	_, err = machine.Disconnect(requester.ID)
	assert.ErrorIs(t, err, ErrNotPaired)
}
