package liveserver

import "time"

// Message is one event pushed to every subscriber
type Message struct {
	Type string      `json:"type"`
	Time int64       `json:"time"`
	Data interface{} `json:"data"`
}

// Event types besides instruction results, which use the op name
const (
	TypeScan      = "scan"
	TypeRebalance = "rebalance_step"
)

// NewMessage stamps an event with the current unix time in milliseconds
func NewMessage(msgType string, data interface{}) Message {
	return Message{Type: msgType, Time: time.Now().UnixMilli(), Data: data}
}
