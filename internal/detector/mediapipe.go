package detector

import (
	"bufio"
	"context"
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

	"github.com/sova-tungnv/web-ai/internal/frame"
)

// MediaPipeOptions locates the Python MediaPipe service.
type MediaPipeOptions struct {
	// ScriptPath overrides the service script lookup.
	ScriptPath string
	// Python overrides the interpreter lookup.
	Python string
}

// MediaPipeLoader returns a Loader that starts the MediaPipe service for a
// model kind. The script is resolved when the loader is created so a missing
// installation is reported before the pipeline starts.
func MediaPipeLoader(opts MediaPipeOptions) (Loader, error) {
	scriptPath := opts.ScriptPath
	if scriptPath == "" {
		scriptPath = findMediaPipeScript()
	}
	if scriptPath == "" {
		return nil, fmt.Errorf("mediapipe_service.py not found")
	}

	pythonPath := opts.Python
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	return func(ctx context.Context, cfg Config) (Model, error) {
		return startMediaPipe(ctx, pythonPath, scriptPath, cfg)
	}, nil
}

// mediaPipeModel implements Model using a Python MediaPipe subprocess.
//
// Wire format per frame: 8-byte big-endian timestamp, 4-byte big-endian
// length, JPEG bytes. The service answers with one JSON line.
type mediaPipeModel struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	mu sync.Mutex // serializes request/response pairs

	closeOnce sync.Once
	closeErr  error
}

func startMediaPipe(ctx context.Context, pythonPath, scriptPath string, cfg Config) (*mediaPipeModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	args := []string{
		scriptPath,
		"--kind", string(cfg.Kind),
		"--delegate", string(cfg.Delegate),
		"--max-subjects", strconv.Itoa(max(cfg.MaxSubjects, 1)),
		"--min-detection-confidence", strconv.FormatFloat(cfg.MinDetectionConfidence, 'f', -1, 64),
		"--min-presence-confidence", strconv.FormatFloat(cfg.MinPresenceConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(cfg.MinTrackingConfidence, 'f', -1, 64),
	}
	cmd := exec.Command(pythonPath, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mediapipe service: %w", err)
	}

	return &mediaPipeModel{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}, nil
}

// Detect sends f to the service and parses its answer.
func (m *mediaPipeModel) Detect(ctx context.Context, f *frame.Frame) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := f.Encode()
	if err != nil {
		return nil, err
	}

	header := make([]byte, 12)
	binary.BigEndian.PutUint64(header[:8], uint64(f.Timestamp))
	binary.BigEndian.PutUint32(header[8:], uint32(len(data)))

	if _, err := m.stdin.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if _, err := m.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := m.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return parseMediaPipeResponse([]byte(line))
}

// Close shuts down the Python process. It does not wait for an in-flight
// request: closing stdin and killing the process unblocks it.
func (m *mediaPipeModel) Close() error {
	m.closeOnce.Do(func() {
		m.stdin.Close()
		if m.cmd.Process != nil {
			m.cmd.Process.Kill()
		}
		err := m.cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			m.closeErr = err
		}
	})
	return m.closeErr
}

// jsonResponse represents the JSON structure from the Python service.
type jsonResponse struct {
	Subject *jsonSubject `json:"subject"`
	Mask    []byte       `json:"mask"`
	Error   string       `json:"error"`
}

type jsonSubject struct {
	Points     []Landmark `json:"points"`
	Handedness string     `json:"handedness"`
	Score      float64    `json:"score"`
}

func parseMediaPipeResponse(line []byte) (*Result, error) {
	var response jsonResponse
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("service error: %s", response.Error)
	}

	res := &Result{Mask: response.Mask}
	if response.Subject != nil && len(response.Subject.Points) > 0 {
		res.Subject = &Subject{
			Landmarks:  response.Subject.Points,
			Handedness: response.Subject.Handedness,
			Score:      response.Subject.Score,
		}
	}
	return res, nil
}

func findMediaPipeScript() string {
	// Get executable directory
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/mediapipe_service.py",
		"../scripts/mediapipe_service.py",
		filepath.Join(execDir, "scripts/mediapipe_service.py"),
		filepath.Join(os.Getenv("HOME"), ".handpipe/scripts/mediapipe_service.py"),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".handpipe/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if absPath, err := filepath.Abs(path); err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
