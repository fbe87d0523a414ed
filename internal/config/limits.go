package config

import "time"

const (
	// Messages
	MaxMessageLength    = 5000
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100

	// Live connections
	SessionSendBuffer = 256
	WriteWait         = 10 * time.Second
	PongWait          = 60 * time.Second
	PingPeriod        = (PongWait * 9) / 10

	// A send frame must fit the longest legal text even when every rune is
	// written as an escaped surrogate pair (12 bytes), plus the envelope.
	MaxFrameSize = MaxMessageLength*12 + 4<<10
)
