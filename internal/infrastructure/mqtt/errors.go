package mqtt

import "errors"

var (
	ErrNotConnected      = errors.New("mqtt: client not connected")
	ErrConnectionFailed  = errors.New("mqtt: connection failed")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned for QoS levels other than 0, 1 and 2.
	ErrInvalidQoS   = errors.New("mqtt: invalid QoS level")
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
