package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

// Frame represents a single screen capture.
type Frame struct {
	Timestamp time.Time
	Raw       string // Raw output with ANSI codes
	Plain     string // Text without ANSI codes
	Phase     string // e.g. the session state at capture time
}

// ScreenCapture records successive renders of a view.
type ScreenCapture struct {
	mu     sync.Mutex
	frames []Frame
}

func NewScreenCapture() *ScreenCapture {
	return &ScreenCapture{}
}

// Capture records a new frame.
func (s *ScreenCapture) Capture(raw, phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, Frame{
		Timestamp: time.Now(),
		Raw:       raw,
		Plain:     StripANSI(raw),
		Phase:     phase,
	})
}

// Frames returns all captured frames.
func (s *ScreenCapture) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]Frame, len(s.frames))
	copy(result, s.frames)
	return result
}

// FrameCount returns the number of captured frames.
func (s *ScreenCapture) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// LastFrame returns the most recent frame, or empty frame if none.
func (s *ScreenCapture) LastFrame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return Frame{}
	}
	return s.frames[len(s.frames)-1]
}

// FinalScreenPlain returns the plain text content of the last frame.
func (s *ScreenCapture) FinalScreenPlain() string {
	return s.LastFrame().Plain
}

// SaveFrames writes each frame's plain text to dir, one file per frame.
func (s *ScreenCapture) SaveFrames(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for i, frame := range s.Frames() {
		name := fmt.Sprintf("frame_%03d_%s.txt", i, frame.Phase)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(frame.Plain), 0644); err != nil {
			return err
		}
	}
	return nil
}

// ansiRegex matches ANSI escape sequences.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\x07]*\x07`)

// StripANSI removes ANSI escape sequences from a string.
func StripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// SaveFramesEnabled returns true if SAVE_FRAMES environment variable is set.
func SaveFramesEnabled() bool {
	return os.Getenv("SAVE_FRAMES") != ""
}
