package care

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ecotterell/carelink/server/dispatch"
	"github.com/ecotterell/carelink/server/fcm"
	"github.com/ecotterell/carelink/server/models"
	"github.com/ecotterell/carelink/shared"
	"github.com/stretchr/testify/assert"
)

type smsRecorder struct {
	mu   sync.Mutex
	sent map[string]string
}

func (recorder *smsRecorder) SendMessage(to, msg string) error {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	if recorder.sent == nil {
		recorder.sent = map[string]string{}
	}
	recorder.sent[to] = msg
	return nil
}

func newTestOrchestrator(store *models.Store, sms SMSSender) (*Orchestrator, *fcm.GatewayStub) {
	gateway := &fcm.GatewayStub{}
	orchestrator := NewOrchestrator(store, dispatch.NewDispatcher(gateway), sms, shared.MatchingConfig{})

	return orchestrator, gateway
}

func createTestUser(t *testing.T, store *models.Store, user *models.User) *models.User {
	assert.Nil(t, store.CreateUser(user))
	return user
}

func pairUsers(t *testing.T, store *models.Store, firstID, secondID uint) {
	for _, pair := range [][2]uint{{firstID, secondID}, {secondID, firstID}} {
		won, err := store.PairUser(pair[0], pair[1])
		assert.Nil(t, err)
		assert.True(t, won)
	}
}

func TestRequestCarer(t *testing.T) {
	store := models.InitializeTestStore()
	orchestrator, gateway := newTestOrchestrator(store, nil)

	requester := createTestUser(t, store, &models.User{
		FirstName: "tony", LastName: "stark", Email: "stark@avengers.com", IsOnline: true})
	createTestUser(t, store, &models.User{
		FirstName: "happy", LastName: "hogan", Email: "happy@stark.com",
		IsCarer: true, IsOnline: true, Longitude: 0.003, DeviceToken: "happy-token"})

	status, err := orchestrator.RequestCarer(context.Background(), requester.ID)
	assert.Nil(t, err)
	assert.Equal(t, StatusWaitingForCarer, status)

	// Deliveries are asynchronous; wait for the carer's notification to land
	assert.Eventually(t, func() bool {
		return len(gateway.SentTo("happy-token")) == 1
	}, time.Second, 10*time.Millisecond)

	sent := gateway.SentTo("happy-token")[0]
	assert.Equal(t, "carerRequest", sent.Payload["type"])
	assert.Equal(t, "Tony Stark", sent.Payload["senderName"])
}

func TestRequestCarerNoCarersInRange(t *testing.T) {
	store := models.InitializeTestStore()
	orchestrator, gateway := newTestOrchestrator(store, nil)

	requester := createTestUser(t, store, &models.User{
		FirstName: "tony", LastName: "stark", Email: "stark@avengers.com", IsOnline: true})

	// ~1.1km away, well outside the 500m carer-request radius
	createTestUser(t, store, &models.User{
		FirstName: "clark", LastName: "kent", Email: "clark@dailyplanet.com",
		IsCarer: true, IsOnline: true, Longitude: 0.01, DeviceToken: "clark-token"})

	status, err := orchestrator.RequestCarer(context.Background(), requester.ID)
	assert.Nil(t, err)
	assert.Equal(t, StatusNoCarersFound, status)
	assert.Empty(t, gateway.SentTo("clark-token"))
}

func TestSendSOSUsesWiderRadius(t *testing.T) {
	store := models.InitializeTestStore()
	orchestrator, gateway := newTestOrchestrator(store, nil)

	requester := createTestUser(t, store, &models.User{
		FirstName: "peter", LastName: "parker", Email: "web@avengers.com", IsOnline: true})

	// ~890m away: out of carer-request range, inside SOS range
	createTestUser(t, store, &models.User{
		FirstName: "may", LastName: "parker", Email: "may@parker.com",
		IsCarer: true, IsOnline: true, Longitude: 0.008, DeviceToken: "may-token"})

	status, err := orchestrator.RequestCarer(context.Background(), requester.ID)
	assert.Nil(t, err)
	assert.Equal(t, StatusNoCarersFound, status)

	status, err = orchestrator.SendSOS(context.Background(), requester.ID)
	assert.Nil(t, err)
	assert.Equal(t, StatusHelpOnTheWay, status)

	assert.Eventually(t, func() bool {
		return len(gateway.SentTo("may-token")) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "SOS", gateway.SentTo("may-token")[0].Payload["type"])
}

func TestSendSOSEscalatesToContacts(t *testing.T) {
	store := models.InitializeTestStore()
	sms := &smsRecorder{}
	orchestrator, gateway := newTestOrchestrator(store, sms)

	requester := createTestUser(t, store, &models.User{
		FirstName: "peter", LastName: "parker", Email: "web@avengers.com", IsOnline: true})
	contact := createTestUser(t, store, &models.User{
		FirstName: "ned", LastName: "leeds", Email: "ned@midtown.edu", PhoneNumber: "+15551234567"})

	assert.Nil(t, store.AddContactPair(requester.ID, contact.ID))

	status, err := orchestrator.SendSOS(context.Background(), requester.ID)
	assert.Nil(t, err)
	assert.Equal(t, StatusNoCarersFound, status)
	assert.Empty(t, gateway.Sent)

	sms.mu.Lock()
	defer sms.mu.Unlock()
	assert.Contains(t, sms.sent, "+15551234567")
	assert.Contains(t, sms.sent["+15551234567"], "Peter Parker")
}

func TestSendAnnotation(t *testing.T) {
	store := models.InitializeTestStore()
	orchestrator, gateway := newTestOrchestrator(store, nil)

	requester := createTestUser(t, store, &models.User{
		FirstName: "steve", LastName: "rogers", Email: "cap@avengers.com"})
	carer := createTestUser(t, store, &models.User{
		FirstName: "sam", LastName: "wilson", Email: "falcon@avengers.com",
		IsCarer: true, DeviceToken: "falcon-token"})

	// Unpaired callers have no one to annotate for
	status, err := orchestrator.SendAnnotation(context.Background(), requester.ID, "1,2;3,4")
	assert.Nil(t, err)
	assert.Equal(t, StatusNotConnected, status)
	assert.Empty(t, gateway.Sent)

	pairUsers(t, store, requester.ID, carer.ID)

	status, err = orchestrator.SendAnnotation(context.Background(), requester.ID, "1,2;3,4")
	assert.Nil(t, err)
	assert.Equal(t, StatusAnnotationsSent, status)

	sent := gateway.SentTo("falcon-token")
	assert.Len(t, sent, 1)
	assert.Equal(t, "annotation", sent[0].Payload["type"])
	assert.Equal(t, "1,2;3,4", sent[0].Payload["points"])
}

func TestSendAnnotationPartnerWithoutToken(t *testing.T) {
	store := models.InitializeTestStore()
	orchestrator, gateway := newTestOrchestrator(store, nil)

	requester := createTestUser(t, store, &models.User{
		FirstName: "steve", LastName: "rogers", Email: "cap@avengers.com"})
	carer := createTestUser(t, store, &models.User{
		FirstName: "bucky", LastName: "barnes", Email: "bucky@avengers.com", IsCarer: true})

	pairUsers(t, store, requester.ID, carer.ID)

	status, err := orchestrator.SendAnnotation(context.Background(), requester.ID, "5,6")
	assert.Nil(t, err)
	assert.Equal(t, StatusAnnotationsFailed, status)
	assert.Empty(t, gateway.Sent)
}

func TestAcceptCarerRequest(t *testing.T) {
	store := models.InitializeTestStore()
	orchestrator, gateway := newTestOrchestrator(store, nil)

	requester := createTestUser(t, store, &models.User{
		FirstName: "tony", LastName: "stark", Email: "stark@avengers.com", DeviceToken: "stark-token"})
	firstCarer := createTestUser(t, store, &models.User{
		FirstName: "happy", LastName: "hogan", Email: "happy@stark.com", IsCarer: true})
	secondCarer := createTestUser(t, store, &models.User{
		FirstName: "james", LastName: "rhodes", Email: "rhodey@af.mil", IsCarer: true})

	status, err := orchestrator.AcceptCarerRequest(context.Background(), firstCarer.ID, requester.ID)
	assert.Nil(t, err)
	assert.Equal(t, StatusConnected, status)

	// The requester gets told which carer accepted
	assert.Eventually(t, func() bool {
		return len(gateway.SentTo("stark-token")) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "accept", gateway.SentTo("stark-token")[0].Payload["type"])

	// A second carer accepting the same request loses the race
	status, err = orchestrator.AcceptCarerRequest(context.Background(), secondCarer.ID, requester.ID)
	assert.Nil(t, err)
	assert.Equal(t, StatusRequestLost, status)

	loser, err := store.FindUserByID(secondCarer.ID)
	assert.Nil(t, err)
	assert.Nil(t, loser.ConnectedUserID)
}

func TestDisconnect(t *testing.T) {
	store := models.InitializeTestStore()
	orchestrator, gateway := newTestOrchestrator(store, nil)

	requester := createTestUser(t, store, &models.User{
		FirstName: "bruce", LastName: "banner", Email: "hulk@avengers.com"})
	carer := createTestUser(t, store, &models.User{
		FirstName: "thor", LastName: "odinson", Email: "thor@asgard.com",
		IsCarer: true, DeviceToken: "thor-token"})

	status, err := orchestrator.AcceptCarerRequest(context.Background(), carer.ID, requester.ID)
	assert.Nil(t, err)
	assert.Equal(t, StatusConnected, status)

	status, err = orchestrator.Disconnect(context.Background(), requester.ID)
	assert.Nil(t, err)
	assert.Equal(t, StatusDisconnected, status)

	// The former partner hears about it
	assert.Eventually(t, func() bool {
		return len(gateway.SentTo("thor-token")) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "disconnect", gateway.SentTo("thor-token")[0].Payload["type"])
	assert.Equal(t, "Bruce Banner", gateway.SentTo("thor-token")[0].Payload["name"])

	// Disconnecting again is a reported no-op
	status, err = orchestrator.Disconnect(context.Background(), requester.ID)
	assert.Nil(t, err)
	assert.Equal(t, StatusNotConnected, status)
}

func TestChatNotification(t *testing.T) {
	store := models.InitializeTestStore()
	orchestrator, gateway := newTestOrchestrator(store, nil)

	sender := createTestUser(t, store, &models.User{
		FirstName: "natasha", LastName: "romanoff", Email: "nat@avengers.com"})
	receiver := createTestUser(t, store, &models.User{
		FirstName: "clint", LastName: "barton", Email: "clint@avengers.com", DeviceToken: "clint-token"})

	message := &models.Message{SenderID: sender.ID, ReceiverID: receiver.ID, Text: "on my way"}
	assert.Nil(t, store.CreateMessage(message))

	status, err := orchestrator.ChatNotification(context.Background(), message)
	assert.Nil(t, err)
	assert.Equal(t, StatusNotificationSent, status)

	sent := gateway.SentTo("clint-token")
	assert.Len(t, sent, 1)
	assert.Equal(t, "chat", sent[0].Payload["type"])
	assert.Equal(t, "on my way", sent[0].Payload["text"])
	assert.Equal(t, "Natasha Romanoff", sent[0].Payload["title"])
}

func TestChatNotificationReceiverWithoutToken(t *testing.T) {
	store := models.InitializeTestStore()
	orchestrator, gateway := newTestOrchestrator(store, nil)

	sender := createTestUser(t, store, &models.User{
		FirstName: "natasha", LastName: "romanoff", Email: "nat@avengers.com"})
	receiver := createTestUser(t, store, &models.User{
		FirstName: "nick", LastName: "fury", Email: "fury@shield.gov"})

	message := &models.Message{SenderID: sender.ID, ReceiverID: receiver.ID, Text: "report in"}
	assert.Nil(t, store.CreateMessage(message))

	status, err := orchestrator.ChatNotification(context.Background(), message)
	assert.Nil(t, err)
	assert.Equal(t, StatusNotificationNotSent, status)
	assert.Empty(t, gateway.Sent)
}

func TestAddContact(t *testing.T) {
	store := models.InitializeTestStore()
	orchestrator, _ := newTestOrchestrator(store, nil)

	caller := createTestUser(t, store, &models.User{
		FirstName: "wanda", LastName: "maximoff", Email: "wanda@avengers.com"})
	target := createTestUser(t, store, &models.User{
		FirstName: "pietro", LastName: "maximoff", Email: "pietro@avengers.com"})

	status, err := orchestrator.AddContact(context.Background(), caller.ID, "pietro@avengers.com")
	assert.Nil(t, err)
	assert.Equal(t, "pietro@avengers.com added to contacts", status)

	// The edge is symmetric
	callerHasTarget, err := store.HasContact(caller.ID, target.ID)
	assert.Nil(t, err)
	assert.True(t, callerHasTarget)

	targetHasCaller, err := store.HasContact(target.ID, caller.ID)
	assert.Nil(t, err)
	assert.True(t, targetHasCaller)

	// Adding the same contact twice is reported, not an error
	status, err = orchestrator.AddContact(context.Background(), caller.ID, "pietro@avengers.com")
	assert.Nil(t, err)
	assert.Equal(t, "pietro@avengers.com already in contacts", status)
}
