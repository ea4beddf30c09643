package dispatch

import (
	"context"
	"testing"

	"github.com/ecotterell/carelink/server/fcm"
	"github.com/ecotterell/carelink/server/models"
	"github.com/stretchr/testify/assert"
)

func TestDispatch(t *testing.T) {
	gateway := &fcm.GatewayStub{}
	dispatcher := NewDispatcher(gateway)

	recipient := &models.User{FirstName: "may", LastName: "parker", DeviceToken: "aunt-may-token"}
	recipient.ID = 7

	result := dispatcher.Dispatch(context.Background(), EventChat, map[string]string{"text": "hello"}, recipient)
	assert.True(t, result.Delivered)
	assert.NotEmpty(t, result.MessageID)
	assert.Nil(t, result.Err)

	sent := gateway.SentTo("aunt-may-token")
	assert.Len(t, sent, 1)
	assert.Equal(t, "chat", sent[0].Payload["type"])
	assert.Equal(t, "hello", sent[0].Payload["text"])

	assert.Equal(t, int64(1), dispatcher.Stats().Delivered)
}

func TestDispatchMissingTokenIsNoop(t *testing.T) {
	gateway := &fcm.GatewayStub{}
	dispatcher := NewDispatcher(gateway)

	recipient := &models.User{FirstName: "ben", LastName: "parker"}

	result := dispatcher.Dispatch(context.Background(), EventDisconnect, DisconnectPayload("Peter Parker"), recipient)
	assert.False(t, result.Delivered)
	assert.Nil(t, result.Err, "a missing device token is a no-op, not an error")

	assert.Empty(t, gateway.Sent)
	assert.Equal(t, int64(1), dispatcher.Stats().Skipped)
}

func TestDispatchDeliveryFailure(t *testing.T) {
	gateway := &fcm.GatewayStub{FailTokens: map[string]bool{"bad-token": true}}
	dispatcher := NewDispatcher(gateway)

	recipient := &models.User{FirstName: "norman", LastName: "osborn", DeviceToken: "bad-token"}

	result := dispatcher.Dispatch(context.Background(), EventAnnotation, AnnotationPayload("1,2;3,4"), recipient)
	assert.False(t, result.Delivered)
	assert.ErrorIs(t, result.Err, ErrDeliveryFailed)

	assert.Equal(t, int64(1), dispatcher.Stats().Failed)
	assert.Equal(t, int64(0), dispatcher.Stats().Delivered)
}

func TestProximityRequestPayload(t *testing.T) {
	sender := &models.User{FirstName: "gwen", LastName: "stacy", Latitude: 40.7128, Longitude: -74.006}
	sender.ID = 12

	payload := ProximityRequestPayload(sender)
	assert.Equal(t, "12", payload["senderId"])
	assert.Equal(t, "Gwen Stacy", payload["senderName"])
	assert.Equal(t, "40.7128", payload["senderLatitude"])
	assert.Equal(t, "-74.006", payload["senderLongitude"])
}
