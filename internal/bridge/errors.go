package bridge

import "errors"

// Error texts below are read by host scripts and must not change.
var (
	ErrNotConnected           = errors.New("Redis not connected")
	ErrSubscriberNotConnected = errors.New("Redis subscriber not connected")
	ErrSubscribeMulti         = errors.New("Error subscribing to one or more channels")
	ErrChannelsNotArray       = errors.New("[Redis] channels must be an array")
	ErrMessagesNotArray       = errors.New("[Redis] messages must be an array")
	ErrInvalidPipeline        = errors.New("[Redis] Internal error: invalid arguments passed to 'executePipeline'")
)
