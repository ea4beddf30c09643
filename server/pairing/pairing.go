package pairing

import (
	"errors"

	"github.com/ecotterell/carelink/server/models"
	pkgerrors "github.com/pkg/errors"
)

var (
	ErrAlreadyPaired = errors.New("user is already paired")
	ErrNotPaired     = errors.New("user is not paired")
)

// Store is the slice of the record store the state machine needs. Both
// mutations are single-record compare-and-set updates - PairUser only wins
// while the field is null, UnpairUser only while it still names the expected
// partner - so no cross-user transaction is required.
type Store interface {
	FindUserByID(id uint) (*models.User, error)
	PairUser(userID, partnerID uint) (bool, error)
	UnpairUser(userID, partnerID uint) (bool, error)
}

// Machine owns every transition of the connected-user relation. At any
// instant a user is paired with at most one other user, and a committed
// pairing is symmetric.
type Machine struct {
	store Store
}

func NewMachine(store Store) *Machine {
	return &Machine{store: store}
}

// Pair establishes the mutual pairing between requester & receiver. The
// receiver's side is written first; if the receiver got paired concurrently
// the transition is rejected with ErrAlreadyPaired and nothing is mutated.
// If the requester's side then fails, the receiver's half-write is undone
// best-effort and the transition reported rejected.
func (machine *Machine) Pair(requesterID, receiverID uint) error {
	won, err := machine.store.PairUser(receiverID, requesterID)
	if err != nil {
		return pkgerrors.Wrap(err, "Pair")
	}

	if !won {
		return ErrAlreadyPaired
	}

	won, err = machine.store.PairUser(requesterID, receiverID)
	if err == nil && won {
		return nil
	}

	// Receiver-side write already committed; roll it back so the rejected
	// transition leaves no half-pairing behind.
	if _, undoErr := machine.store.UnpairUser(receiverID, requesterID); undoErr != nil {
		return pkgerrors.Wrap(undoErr, "Pair: rollback")
	}

	if err != nil {
		return pkgerrors.Wrap(err, "Pair")
	}

	return ErrAlreadyPaired
}

// Disconnect clears both sides of the caller's pairing and returns the now
// former partner, so the caller can signal them. An unpaired caller is a
// no-op reported as ErrNotPaired rather than a hard failure.
func (machine *Machine) Disconnect(callerID uint) (*models.User, error) {
	caller, err := machine.store.FindUserByID(callerID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "Disconnect")
	}

	if caller.ConnectedUserID == nil {
		return nil, ErrNotPaired
	}

	partnerID := *caller.ConnectedUserID
	if _, err := machine.store.UnpairUser(caller.ID, partnerID); err != nil {
		return nil, pkgerrors.Wrap(err, "Disconnect")
	}

	if _, err := machine.store.UnpairUser(partnerID, caller.ID); err != nil {
		return nil, pkgerrors.Wrap(err, "Disconnect")
	}

	partner, err := machine.store.FindUserByID(partnerID)
	if err != nil {
		// Partner record gone: the caller's side is already cleared, which
		// is the part that matters to them.
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}

		return nil, pkgerrors.Wrap(err, "Disconnect")
	}

	return partner, nil
}
