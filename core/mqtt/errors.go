package mqtt

import "errors"

// ErrNotConnected is returned when publishing through a closed publisher.
var ErrNotConnected = errors.New("mqtt publisher not connected")
