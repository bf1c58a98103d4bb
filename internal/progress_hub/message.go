package progress_hub

import "time"

const (
	MessageVersion      = "1.0.0"
	MessageTypeProgress = "MappingProgress"
)

type Message struct {
	Header  Header `json:"header"`
	Payload any    `json:"payload"`
}

// Header follows VDA5050-like metadata.
type Header struct {
	HeaderID     int64     `json:"headerId"` // monotonic increasing
	Version      string    `json:"version"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	SerialNumber string    `json:"serialNumber,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	MessageType  string    `json:"messageType"`
}
