package fcm

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// ClientWrapper wraps the Firebase Cloud Messaging client. In test mode no
// real client is created and sends succeed with a canned message id.
type ClientWrapper struct {
	client   *messaging.Client
	testMode bool
}

func NewClient(ctx context.Context, credentialsFile string, testMode bool) (*ClientWrapper, error) {
	if testMode {
		return &ClientWrapper{testMode: true}, nil
	}

	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "NewClient")
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "NewClient")
	}

	return &ClientWrapper{client: client}, nil
}

// Send enqueues a data message to 'deviceToken' and returns the FCM message
// id.
func (cw *ClientWrapper) Send(ctx context.Context, deviceToken string, payload map[string]string) (string, error) {
	if cw.testMode {
		return "fcm-test-message-id", nil
	}

	return cw.client.Send(ctx, &messaging.Message{
		Token: deviceToken,
		Data:  payload,
	})
}
