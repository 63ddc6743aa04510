package mqtt

import "fmt"

// maxPayloadSize bounds a single publish to 1MB.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic at the given QoS, optionally retained.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishJSON publishes an already-marshaled JSON document; it behaves
// exactly like Publish.
func (c *Client) PublishJSON(topic string, payload []byte, qos byte, retained bool) error {
	return c.Publish(topic, payload, qos, retained)
}
