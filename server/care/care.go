package care

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ecotterell/carelink/server/dispatch"
	"github.com/ecotterell/carelink/server/geo"
	"github.com/ecotterell/carelink/server/logger"
	"github.com/ecotterell/carelink/server/models"
	"github.com/ecotterell/carelink/server/pairing"
	"github.com/ecotterell/carelink/shared"
	pkgerrors "github.com/pkg/errors"
)

// Status strings returned to callers. Expected negative outcomes are status
// strings, never errors - only genuinely unexpected failures(store
// unreachable etc.) surface as errors.
const (
	StatusWaitingForCarer     = "Waiting for carer"
	StatusNoCarersFound       = "No carers found"
	StatusHelpOnTheWay        = "Help is on the way"
	StatusAnnotationsSent     = "Annotations successfully sent"
	StatusAnnotationsFailed   = "Annotations failed to send"
	StatusConnected           = "Connected"
	StatusRequestLost         = "You snooze, you loose!"
	StatusDisconnected        = "Disconnected"
	StatusNotConnected        = "User not connected"
	StatusNotificationSent    = "Notification sent"
	StatusNotificationNotSent = "Notification not sent"
)

const (
	DefaultCarerRequestRadiusMeters = 500
	DefaultSOSRadiusMeters          = 1000
)

var logg = logger.NewLogger()

// Store is everything the orchestrator needs from the record store, beyond
// what the geo index & pairing machine consume through their own interfaces.
type Store interface {
	pairing.Store
	geo.Store

	FirstUserByEmail(email string) (*models.User, error)
	AddContactPair(userID, contactID uint) error
	ContactsOf(userID uint) ([]models.User, error)
}

// SMSSender is the optional escalation channel for SOS requests that match
// no carers. A nil sender disables escalation.
type SMSSender interface {
	SendMessage(to, msg string) error
}

// Orchestrator exposes the caller-facing operations, composing the geo
// index, the pairing state machine & the dispatcher against the store.
type Orchestrator struct {
	store      Store
	geoIndex   *geo.Index
	pairing    *pairing.Machine
	dispatcher *dispatch.Dispatcher
	sms        SMSSender

	carerRequestRadiusMeters float64
	sosRadiusMeters          float64
}

func NewOrchestrator(store Store, dispatcher *dispatch.Dispatcher, sms SMSSender, config shared.MatchingConfig) *Orchestrator {
	carerRadius := config.CarerRequestRadiusMeters
	if carerRadius <= 0 {
		carerRadius = DefaultCarerRequestRadiusMeters
	}

	sosRadius := config.SOSRadiusMeters
	if sosRadius <= 0 {
		sosRadius = DefaultSOSRadiusMeters
	}

	return &Orchestrator{
		store:                    store,
		geoIndex:                 geo.NewIndex(store),
		pairing:                  pairing.NewMachine(store),
		dispatcher:               dispatcher,
		sms:                      sms,
		carerRequestRadiusMeters: carerRadius,
		sosRadiusMeters:          sosRadius,
	}
}

// RequestCarer notifies every available carer within the carer-request
// radius of the caller's position. Matching a candidate is what decides the
// status - deliveries themselves are fire-and-forget.
func (orch *Orchestrator) RequestCarer(ctx context.Context, callerID uint) (string, error) {
	caller, err := orch.store.FindUserByID(callerID)
	if err != nil {
		return "", pkgerrors.Wrap(err, "RequestCarer")
	}

	candidates, err := orch.nearbyCarers(caller, orch.carerRequestRadiusMeters)
	if err != nil {
		return "", pkgerrors.Wrap(err, "RequestCarer")
	}

	if len(candidates) == 0 {
		return StatusNoCarersFound, nil
	}

	payload := dispatch.ProximityRequestPayload(caller)
	for i := range candidates {
		orch.dispatcher.DispatchAsync(dispatch.EventCarerRequest, payload, &candidates[i])
	}

	return StatusWaitingForCarer, nil
}

// SendSOS is RequestCarer with the wider SOS radius & event type. When no
// carer is close enough, the caller's contacts get a best-effort SMS - the
// status string still reports that no carers were found.
func (orch *Orchestrator) SendSOS(ctx context.Context, callerID uint) (string, error) {
	caller, err := orch.store.FindUserByID(callerID)
	if err != nil {
		return "", pkgerrors.Wrap(err, "SendSOS")
	}

	candidates, err := orch.nearbyCarers(caller, orch.sosRadiusMeters)
	if err != nil {
		return "", pkgerrors.Wrap(err, "SendSOS")
	}

	if len(candidates) == 0 {
		orch.escalateSOSToContacts(caller)
		return StatusNoCarersFound, nil
	}

	payload := dispatch.ProximityRequestPayload(caller)
	for i := range candidates {
		orch.dispatcher.DispatchAsync(dispatch.EventSOS, payload, &candidates[i])
	}

	return StatusHelpOnTheWay, nil
}

// SendAnnotation relays freehand annotation points to the caller's partner.
// Unlike the other event paths this one waits on the delivery result, which
// decides the status string.
func (orch *Orchestrator) SendAnnotation(ctx context.Context, callerID uint, points string) (string, error) {
	caller, err := orch.store.FindUserByID(callerID)
	if err != nil {
		return "", pkgerrors.Wrap(err, "SendAnnotation")
	}

	if caller.ConnectedUserID == nil {
		return StatusNotConnected, nil
	}

	partner, err := orch.store.FindUserByID(*caller.ConnectedUserID)
	if err != nil {
		return "", pkgerrors.Wrap(err, "SendAnnotation")
	}

	result := orch.dispatcher.Dispatch(ctx, dispatch.EventAnnotation, dispatch.AnnotationPayload(points), partner)
	if !result.Delivered {
		return StatusAnnotationsFailed, nil
	}

	return StatusAnnotationsSent, nil
}

// AcceptCarerRequest pairs the accepting carer(the caller) with the user who
// requested help. The already-paired guard is enforced on the receiver side
// by the state machine; a rejected transition means another carer - or
// another request - got there first.
func (orch *Orchestrator) AcceptCarerRequest(ctx context.Context, callerID, requesterID uint) (string, error) {
	requester, err := orch.store.FindUserByID(requesterID)
	if err != nil {
		return "", pkgerrors.Wrap(err, "AcceptCarerRequest")
	}

	err = orch.pairing.Pair(requester.ID, callerID)
	if errors.Is(err, pairing.ErrAlreadyPaired) {
		return StatusRequestLost, nil
	}
	if err != nil {
		return "", pkgerrors.Wrap(err, "AcceptCarerRequest")
	}

	// The pairing is committed; a delivery failure here is a recoverable
	// inconsistency resolved by the next disconnect, never a rollback.
	orch.dispatcher.DispatchAsync(dispatch.EventAccept, dispatch.AcceptPayload(requester.ID), requester)

	return StatusConnected, nil
}

// Disconnect tears down the caller's pairing and signals the former partner.
// Calling it while unpaired reports "not connected" and writes nothing.
func (orch *Orchestrator) Disconnect(ctx context.Context, callerID uint) (string, error) {
	caller, err := orch.store.FindUserByID(callerID)
	if err != nil {
		return "", pkgerrors.Wrap(err, "Disconnect")
	}

	partner, err := orch.pairing.Disconnect(caller.ID)
	if errors.Is(err, pairing.ErrNotPaired) {
		return StatusNotConnected, nil
	}
	if err != nil {
		return "", pkgerrors.Wrap(err, "Disconnect")
	}

	if partner != nil {
		orch.dispatcher.DispatchAsync(dispatch.EventDisconnect, dispatch.DisconnectPayload(caller.FullName()), partner)
	}

	return StatusDisconnected, nil
}

// ChatNotification relays a freshly created chat message to its receiver.
// It is triggered by message creation, not called by users directly.
func (orch *Orchestrator) ChatNotification(ctx context.Context, message *models.Message) (string, error) {
	var (
		sender, receiver       *models.User
		senderErr, receiverErr error
	)

	// The two record fetches are independent; run them concurrently and wait
	// for both before building the payload.
	wg := sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		sender, senderErr = orch.store.FindUserByID(message.SenderID)
	}()
	go func() {
		defer wg.Done()
		receiver, receiverErr = orch.store.FindUserByID(message.ReceiverID)
	}()
	wg.Wait()

	if senderErr != nil {
		return "", pkgerrors.Wrap(senderErr, "ChatNotification")
	}
	if receiverErr != nil {
		return "", pkgerrors.Wrap(receiverErr, "ChatNotification")
	}

	result := orch.dispatcher.Dispatch(ctx, dispatch.EventChat, dispatch.ChatPayload(message, sender), receiver)
	if !result.Delivered {
		return StatusNotificationNotSent, nil
	}

	return StatusNotificationSent, nil
}

// AddContact resolves 'email' to a user record(first match wins when
// duplicates exist) and creates the symmetric contact edge once.
func (orch *Orchestrator) AddContact(ctx context.Context, callerID uint, email string) (string, error) {
	caller, err := orch.store.FindUserByID(callerID)
	if err != nil {
		return "", pkgerrors.Wrap(err, "AddContact")
	}

	target, err := orch.store.FirstUserByEmail(email)
	if err != nil {
		return "", pkgerrors.Wrap(err, "AddContact")
	}

	err = orch.store.AddContactPair(caller.ID, target.ID)
	if errors.Is(err, models.ErrDuplicateContact) {
		return fmt.Sprintf("%v already in contacts", email), nil
	}
	if err != nil {
		return "", pkgerrors.Wrap(err, "AddContact")
	}

	return fmt.Sprintf("%v added to contacts", email), nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func (orch *Orchestrator) nearbyCarers(caller *models.User, radiusMeters float64) ([]models.User, error) {
	center := geo.Point{Latitude: caller.Latitude, Longitude: caller.Longitude}

	return orch.geoIndex.FindCandidates(center, radiusMeters, caller.ID, geo.Filter{
		IsCarer:  true,
		IsOnline: true,
	})
}

func (orch *Orchestrator) escalateSOSToContacts(caller *models.User) {
	if orch.sms == nil {
		return
	}

	contacts, err := orch.store.ContactsOf(caller.ID)
	if err != nil {
		logg.Errorf("unable to load contacts for SOS escalation, user %v: %v", caller.ID, err)
		return
	}

	msg := fmt.Sprintf(
		"%v sent an SOS but no carers were nearby. Last known location: %v, %v. Please check on them.",
		caller.FullName(), caller.Latitude, caller.Longitude)

	for _, contact := range contacts {
		if contact.PhoneNumber == "" {
			continue
		}

		if err := orch.sms.SendMessage(contact.PhoneNumber, msg); err != nil {
			logg.Errorf("SOS escalation SMS to %v failed: %v", contact.ID, err)
		}
	}
}
