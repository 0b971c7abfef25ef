package model

import "time"

const EnvelopeVersion = "v1"

// Envelope is the single output shape of every command, success or failure.
type Envelope struct {
	Version string       `json:"version"`
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorBody   `json:"error"`
	Meta    EnvelopeMeta `json:"meta"`
}

// ErrorBody carries the exit code, a coarse type and the stable reason code
// ("400.1"...) clients branch on.
type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	ChainID   int64     `json:"chain_id,omitempty"`
	MarketID  string    `json:"market_id,omitempty"`
	Account   string    `json:"account,omitempty"`
	BlockTag  string    `json:"block_tag,omitempty"`
}
