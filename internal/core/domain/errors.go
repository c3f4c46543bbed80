package domain

import "errors"

// ErrEndpointNotConnected is returned by the transport when a send targets
// a channel that is no longer open. The router treats it as a silent drop.
var ErrEndpointNotConnected = errors.New("endpoint not connected")
