package fcm

import (
	"context"
	"fmt"
	"sync"
)

// SentMessage records one Send call observed by the stub.
type SentMessage struct {
	DeviceToken string
	Payload     map[string]string
}

// GatewayStub is an in-memory gateway for tests. Tokens listed in
// FailTokens error on send.
type GatewayStub struct {
	mu         sync.Mutex
	Sent       []SentMessage
	FailTokens map[string]bool
}

func (stub *GatewayStub) Send(ctx context.Context, deviceToken string, payload map[string]string) (string, error) {
	stub.mu.Lock()
	defer stub.mu.Unlock()

	if stub.FailTokens[deviceToken] {
		return "", fmt.Errorf("gateway rejected token %q", deviceToken)
	}

	stub.Sent = append(stub.Sent, SentMessage{DeviceToken: deviceToken, Payload: payload})
	return fmt.Sprintf("stub-message-id-%v", len(stub.Sent)), nil
}

// SentTo returns every recorded payload sent to 'deviceToken'.
func (stub *GatewayStub) SentTo(deviceToken string) []SentMessage {
	stub.mu.Lock()
	defer stub.mu.Unlock()

	sent := []SentMessage{}
	for _, message := range stub.Sent {
		if message.DeviceToken == deviceToken {
			sent = append(sent, message)
		}
	}

	return sent
}
