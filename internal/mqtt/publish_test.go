package mqtt

import (
	"errors"
	"strings"
	"testing"
)

func TestPublish(t *testing.T) {
	client, err := Connect(testConfig(), testSchema(t))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck

	if err := client.Publish("supervisor/org-1/site-1/device-1/status/heartbeat", []byte(`{"test":true}`), 1, false); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
}

func TestPublishEmptyTopic(t *testing.T) {
	client, err := Connect(testConfig(), testSchema(t))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck

	if err := client.Publish("", []byte("test"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish() error = %v, want ErrInvalidTopic", err)
	}
}

func TestPublishInvalidQoS(t *testing.T) {
	client, err := Connect(testConfig(), testSchema(t))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck

	if err := client.Publish("a/b", []byte("test"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish() error = %v, want ErrInvalidQoS", err)
	}
}

func TestPublishPayloadTooLarge(t *testing.T) {
	client, err := Connect(testConfig(), testSchema(t))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck

	oversized := []byte(strings.Repeat("x", maxPayloadSize+1))
	if err := client.Publish("a/b", oversized, 0, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}
}

func TestPublishWhenNotConnected(t *testing.T) {
	client := &Client{}
	if err := client.Publish("a/b", []byte("x"), 0, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}
