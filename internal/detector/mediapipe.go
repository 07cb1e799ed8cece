package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// faceMeshScript is the MediaPipe face mesh service run under python.
const faceMeshScript = "face_mesh_service.py"

// faceMeshIdle is how long the service may sit unused before it is stopped.
const faceMeshIdle = 30 * time.Second

// ErrServiceNotFound is returned when face_mesh_service.py is not installed.
var ErrServiceNotFound = errors.New(faceMeshScript + " not found")

// MediaPipeDetector runs MediaPipe Face Mesh in a python subprocess.
//
// Each frame is sent as a 4-byte big-endian length followed by JPEG bytes.
// The service answers with one JSON line:
//
//	{"faces":[{"landmarks":[[x,y,z], ...]}], "error":""}
//
// The process starts on the first frame and stops after faceMeshIdle
// without frames.
type MediaPipeDetector struct {
	newCmd func() *exec.Cmd
	idle   time.Duration

	mu    sync.Mutex
	proc  *exec.Cmd
	in    io.WriteCloser
	out   *bufio.Reader
	timer *time.Timer
}

// NewMediaPipeDetector returns a detector for cfg, or ErrServiceNotFound
// when the service script is not installed.
func NewMediaPipeDetector(cfg Config) (*MediaPipeDetector, error) {
	script := findFile(scriptCandidates())
	if script == "" {
		return nil, ErrServiceNotFound
	}
	python := findFile(venvCandidates())
	if python == "" {
		python = "python3"
	}
	args := append([]string{script}, faceMeshArgs(cfg)...)
	return newMediaPipeDetector(func() *exec.Cmd {
		return exec.Command(python, args...)
	}, faceMeshIdle), nil
}

func newMediaPipeDetector(newCmd func() *exec.Cmd, idle time.Duration) *MediaPipeDetector {
	return &MediaPipeDetector{newCmd: newCmd, idle: idle}
}

// Detect sends frame to the service and returns the faces it found.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]LandmarkFrame, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.startLocked(); err != nil {
		return nil, err
	}

	msg := binary.BigEndian.AppendUint32(nil, uint32(buf.Len()))
	msg = append(msg, buf.GetBytes()...)
	if _, err := d.in.Write(msg); err != nil {
		d.stopLocked()
		return nil, fmt.Errorf("send frame: %w", err)
	}

	line, err := d.out.ReadBytes('\n')
	if err != nil {
		d.stopLocked()
		return nil, fmt.Errorf("read face mesh reply: %w", err)
	}

	faces, err := parseFaceMeshReply(line, time.Now().UnixMilli())
	if err != nil {
		return nil, err
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.idle, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.stopLocked()
	})
	return faces, nil
}

// Close stops the service.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

func (d *MediaPipeDetector) startLocked() error {
	if d.proc != nil {
		return nil
	}

	cmd := d.newCmd()
	cmd.Stderr = os.Stderr
	in, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("face mesh stdin: %w", err)
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("face mesh stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start face mesh service: %w", err)
	}

	d.proc, d.in, d.out = cmd, in, bufio.NewReader(out)
	return nil
}

func (d *MediaPipeDetector) stopLocked() error {
	if d.proc == nil {
		return nil
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	d.in.Close()
	err := d.proc.Wait()
	d.proc, d.in, d.out = nil, nil, nil
	return err
}

// faceMeshArgs renders cfg as service flags.
func faceMeshArgs(cfg Config) []string {
	args := []string{
		"--max-faces", strconv.Itoa(cfg.MaxFaces),
		"--min-detection-confidence", strconv.FormatFloat(cfg.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(cfg.MinTrackingConf, 'f', -1, 64),
	}
	if cfg.RefineIris {
		args = append(args, "--refine-landmarks")
	}
	return args
}

type faceMeshReply struct {
	Faces []struct {
		Landmarks [][3]float64 `json:"landmarks"`
	} `json:"faces"`
	Error string `json:"error,omitempty"`
}

// parseFaceMeshReply decodes one reply line into landmark frames stamped
// with timestamp.
func parseFaceMeshReply(line []byte, timestamp int64) ([]LandmarkFrame, error) {
	var reply faceMeshReply
	if err := json.Unmarshal(line, &reply); err != nil {
		return nil, fmt.Errorf("parse face mesh reply: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("face mesh service: %s", reply.Error)
	}

	frames := make([]LandmarkFrame, len(reply.Faces))
	for i, f := range reply.Faces {
		pts := make([]Point3D, len(f.Landmarks))
		for j, p := range f.Landmarks {
			pts[j] = Point3D{X: p[0], Y: p[1], Z: p[2]}
		}
		frames[i] = LandmarkFrame{Points: pts, Timestamp: timestamp}
	}
	return frames, nil
}

// scriptCandidates lists where the service script may be installed: next to
// the working directory, next to the binary, then under ~/.drishti.
func scriptCandidates() []string {
	var dirs []string
	dirs = append(dirs, "scripts", filepath.Join("..", "scripts"))
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Join(filepath.Dir(exe), "scripts"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".drishti", "scripts"))
	}

	paths := make([]string, len(dirs))
	for i, d := range dirs {
		paths[i] = filepath.Join(d, faceMeshScript)
	}
	return paths
}

// venvCandidates lists python interpreters of a virtualenv holding mediapipe.
func venvCandidates() []string {
	paths := []string{
		filepath.Join("venv", "bin", "python"),
		filepath.Join("..", "venv", "bin", "python"),
	}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), "venv", "bin", "python"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".drishti", "venv", "bin", "python"))
	}
	return paths
}

// findFile returns the absolute path of the first existing candidate.
func findFile(candidates []string) string {
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}
