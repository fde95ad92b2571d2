package types

// Event is a structured record of a vault state change, suitable for
// broadcast to RPC subscribers and downstream reward distributors.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
