// Command cursor is a drishti plugin that moves the mouse pointer to the
// gaze point. It shells out to cliclick on macOS and xdotool on Linux.
package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"runtime"
)

type request struct {
	Action string          `json:"action"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

type response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type moveParams struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

func main() {
	var req request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		reply(fmt.Errorf("failed to decode request: %w", err))
		return
	}
	if req.Action != "move" {
		reply(fmt.Errorf("unknown action: %s", req.Action))
		return
	}

	var p moveParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		reply(fmt.Errorf("invalid move params: %w", err))
		return
	}
	reply(move(int(math.Round(p.X)), int(math.Round(p.Y))))
}

func reply(err error) {
	resp := response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

func move(x, y int) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("cliclick", fmt.Sprintf("m:%d,%d", x, y))
	case "linux":
		cmd = exec.Command("xdotool", "mousemove", fmt.Sprint(x), fmt.Sprint(y))
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, out)
	}
	return nil
}
