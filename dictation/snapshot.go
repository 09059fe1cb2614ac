package dictation

import (
	"fmt"

	"dictado/buffer"
)

type ModelState int

const (
	ModelUnloaded ModelState = iota
	ModelLoading
	ModelReady
	ModelFailed
)

func (m ModelState) String() string {
	switch m {
	case ModelUnloaded:
		return "unloaded"
	case ModelLoading:
		return "loading"
	case ModelReady:
		return "ready"
	case ModelFailed:
		return "failed"
	default:
		return fmt.Sprintf("model(%d)", int(m))
	}
}

// Snapshot is an immutable copy of the screen state published after every
// change.
type Snapshot struct {
	Buffer    buffer.State
	Listening bool
	Model     ModelState
	LastError string
	Engine    string
	ModelID   string
}

func (s Snapshot) Display() buffer.Display {
	return s.Buffer.Project(s.Listening)
}

// CanEdit reports whether the manual edit actions are available.
func (s Snapshot) CanEdit() bool {
	return !s.Listening && s.Buffer.Text != ""
}

func (s Snapshot) CanDictate() bool {
	return s.Model == ModelReady
}

func (s Snapshot) CanCopy() bool {
	return s.Buffer.Text != ""
}
