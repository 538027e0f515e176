package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/netfabric-io/npapi/pkg/npapi"
)

// NewTestClient creates a client against the given base URL with no auth,
// no cache, and retries disabled so tests stay deterministic.
func NewTestClient(baseURL string) *Client {
	client, err := NewWithTokenManager(&npapi.Config{
		Endpoint: baseURL,
		Retry:    &npapi.RetryPolicyConfig{MaxRetries: 0},
	}, nil)
	if err != nil {
		panic(err)
	}

	return client
}

// fastRetryConfig keeps retry tests quick.
func fastRetryConfig(maxRetries int) *npapi.RetryPolicyConfig {
	return &npapi.RetryPolicyConfig{
		MaxRetries:           maxRetries,
		BaseDelay:            time.Millisecond,
		MaxDelay:             10 * time.Millisecond,
		BackoffMultiplier:    2.0,
		RetryableStatusCodes: []int{429, 500, 502, 503, 504},
		RetryableErrorKinds:  []npapi.ErrorKind{npapi.ErrorKindConnection, npapi.ErrorKindTimeout},
	}
}

// recordingLogger captures structured events for assertions.
type recordingLogger struct {
	mutex  sync.Mutex
	events []loggedEvent
}

type loggedEvent struct {
	Level  string
	Msg    string
	Fields map[string]interface{}
}

func (l *recordingLogger) log(level, msg string, fields map[string]interface{}) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.events = append(l.events, loggedEvent{Level: level, Msg: msg, Fields: fields})
}

func (l *recordingLogger) Debug(msg string, fields map[string]interface{}) { l.log("debug", msg, fields) }
func (l *recordingLogger) Info(msg string, fields map[string]interface{})  { l.log("info", msg, fields) }
func (l *recordingLogger) Warn(msg string, fields map[string]interface{})  { l.log("warn", msg, fields) }
func (l *recordingLogger) Error(msg string, fields map[string]interface{}) { l.log("error", msg, fields) }

func (l *recordingLogger) eventsWithMsg(msg string) []loggedEvent {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	var matched []loggedEvent

	for _, event := range l.events {
		if event.Msg == msg {
			matched = append(matched, event)
		}
	}

	return matched
}

// panicLogger panics on every call, to prove logging never fails a call.
type panicLogger struct{}

func (panicLogger) Debug(string, map[string]interface{}) { panic("logger panic") }
func (panicLogger) Info(string, map[string]interface{})  { panic("logger panic") }
func (panicLogger) Warn(string, map[string]interface{})  { panic("logger panic") }
func (panicLogger) Error(string, map[string]interface{}) { panic("logger panic") }

// newJSONServer starts an httptest server that writes the given status and
// JSON payload for every request, recording request count.
func newJSONServer(status int, payload interface{}, hits *int, mutex *sync.Mutex) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		if hits != nil {
			mutex.Lock()
			*hits++
			mutex.Unlock()
		}

		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(status)

		if payload != nil {
			_ = json.NewEncoder(writer).Encode(payload)
		}
	}))
}
