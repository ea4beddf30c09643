package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ecotterell/carelink/server/logger"
	"github.com/ecotterell/carelink/server/models"
)

var (
	ErrDeliveryFailed = errors.New("event delivery failed")

	logg = logger.NewLogger()
)

const asyncSendTimeout = 30 * time.Second

type EventType string

const (
	EventCarerRequest EventType = "carerRequest"
	EventSOS          EventType = "SOS"
	EventAccept       EventType = "accept"
	EventDisconnect   EventType = "disconnect"
	EventChat         EventType = "chat"
	EventAnnotation   EventType = "annotation"
)

// Gateway is the external push delivery transport: enqueue a data payload to
// a device token, returning the gateway's message id. Delivery is
// best-effort and at-most-once; the gateway owns any retries.
type Gateway interface {
	Send(ctx context.Context, deviceToken string, payload map[string]string) (string, error)
}

// Result reports the outcome of a single dispatch attempt.
type Result struct {
	Delivered bool
	MessageID string
	Err       error
}

// Stats are the dispatcher's atomic attempt counters - the observable side
// channel for the fire-and-forget paths.
type Stats struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Skipped   int64 `json:"skipped"`
}

type Dispatcher struct {
	gateway Gateway

	delivered int64
	failed    int64
	skipped   int64
}

func NewDispatcher(gateway Gateway) *Dispatcher {
	return &Dispatcher{gateway: gateway}
}

// Dispatch builds the typed event message for 'recipient' and submits it to
// the gateway, waiting for the outcome. A recipient without a device token
// is a no-op dispatch, not an error. A failed delivery is logged and
// reported in the result; it is never the caller's job to roll anything
// back over it.
func (dispatcher *Dispatcher) Dispatch(ctx context.Context, event EventType, payload map[string]string, recipient *models.User) Result {
	if recipient.DeviceToken == "" {
		atomic.AddInt64(&dispatcher.skipped, 1)
		logg.Infof("skipping '%v' event for user %v: no device token registered", event, recipient.ID)
		return Result{Delivered: false}
	}

	data := make(map[string]string, len(payload)+1)
	for key, value := range payload {
		data[key] = value
	}
	data["type"] = string(event)

	messageID, err := dispatcher.gateway.Send(ctx, recipient.DeviceToken, data)
	if err != nil {
		atomic.AddInt64(&dispatcher.failed, 1)
		logg.Errorf("failed to deliver '%v' event to user %v: %v", event, recipient.ID, err)
		return Result{Delivered: false, Err: fmt.Errorf("%w: %v", ErrDeliveryFailed, err)}
	}

	atomic.AddInt64(&dispatcher.delivered, 1)
	return Result{Delivered: true, MessageID: messageID}
}

// DispatchAsync submits the event without blocking the caller's own state
// transition. The outcome lands in the stats counters instead of going
// unobserved.
func (dispatcher *Dispatcher) DispatchAsync(event EventType, payload map[string]string, recipient *models.User) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncSendTimeout)
		defer cancel()

		dispatcher.Dispatch(ctx, event, payload, recipient)
	}()
}

func (dispatcher *Dispatcher) Stats() Stats {
	return Stats{
		Delivered: atomic.LoadInt64(&dispatcher.delivered),
		Failed:    atomic.LoadInt64(&dispatcher.failed),
		Skipped:   atomic.LoadInt64(&dispatcher.skipped),
	}
}

// ---------------------------------------------------------------------------------//
// Payload builders
// --------------------------------------------------------------------------------//

// ProximityRequestPayload carries the sender's identity & location for both
// carerRequest and SOS events.
func ProximityRequestPayload(sender *models.User) map[string]string {
	return map[string]string{
		"senderId":        fmt.Sprint(sender.ID),
		"senderName":      sender.FullName(),
		"senderLatitude":  fmt.Sprint(sender.Latitude),
		"senderLongitude": fmt.Sprint(sender.Longitude),
	}
}

func AcceptPayload(requesterID uint) map[string]string {
	return map[string]string{"uid": fmt.Sprint(requesterID)}
}

func DisconnectPayload(fullName string) map[string]string {
	return map[string]string{"name": fullName}
}

func ChatPayload(message *models.Message, sender *models.User) map[string]string {
	return map[string]string{
		"title":    sender.FullName(),
		"text":     message.Text,
		"username": sender.FullName(),
		"uid":      fmt.Sprint(sender.ID),
	}
}

func AnnotationPayload(points string) map[string]string {
	return map[string]string{"points": points}
}
