// Package plugin discovers and runs external point-consumer plugins.
//
// A plugin is a directory holding a plugin.json manifest and an executable.
// Each call starts the executable, writes one JSON Request to its stdin and
// reads one JSON Response from its stdout.
package plugin

import "encoding/json"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Supports reports whether the manifest lists action.
func (m Manifest) Supports(action string) bool {
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request is sent to a plugin on stdin.
type Request struct {
	Action string          `json:"action"`
	Config json.RawMessage `json:"config,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// ActionMove asks a cursor plugin to move the pointer.
const ActionMove = "move"

// MoveParams are the params of a move request, in screen pixels.
type MoveParams struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// NewMoveRequest builds a move request.
func NewMoveRequest(x, y, confidence float64) (*Request, error) {
	params, err := json.Marshal(MoveParams{X: x, Y: y, Confidence: confidence})
	if err != nil {
		return nil, err
	}
	return &Request{Action: ActionMove, Params: params}, nil
}
