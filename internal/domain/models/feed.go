package models

import "time"

type FeedState int

const (
	FeedDisconnected FeedState = iota
	FeedConnecting
	FeedConnected
	FeedReceiving
	FeedReconnecting
	FeedDormant
)

func (s FeedState) String() string {
	switch s {
	case FeedConnecting:
		return "CONNECTING"
	case FeedConnected:
		return "CONNECTED"
	case FeedReceiving:
		return "RECEIVING"
	case FeedReconnecting:
		return "RECONNECTING"
	case FeedDormant:
		return "DORMANT"
	default:
		return "DISCONNECTED"
	}
}

type FeedStatus struct {
	Name        string    `json:"name"`
	Exchange    string    `json:"exchange"`
	Channel     string    `json:"channel"`
	Symbols     []string  `json:"symbols"`
	State       string    `json:"state"`
	Attempts    int       `json:"attempts"`
	LastMessage time.Time `json:"last_message,omitempty"`
}
