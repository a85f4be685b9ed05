package jetstream

import (
	"strings"
	"time"

	nats "github.com/nats-io/nats.go"
)

const (
	StreamName    = "CLAUDESTREAM"
	SubjectPrefix = "claudestream.req."
)

func EnsureStream(js nats.JetStreamContext) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"claudestream.>"},
		Storage:   nats.FileStorage,
		MaxAge:    24 * time.Hour,
		Retention: nats.LimitsPolicy,
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	return nil
}

// MessageSubject is where finalized decoded messages for one request are
// published, one message per NATS message, suffixed by kind so consumers can
// subscribe to e.g. claudestream.req.*.msg.tool_call.
func MessageSubject(requestID, kind string) string {
	return SubjectPrefix + requestID + ".msg." + kind
}

// DoneSubject signals that a request's stream has been fully decoded.
func DoneSubject(requestID string) string {
	return SubjectPrefix + requestID + ".done"
}
