package playback

import (
	"errors"
	"time"
)

var (
	// ErrQueueFull is returned by Send when the engine's command queue is saturated.
	ErrQueueFull = errors.New("playback command queue full")
	// ErrClosed is returned by Send after the engine has shut down.
	ErrClosed = errors.New("playback engine closed")
	// ErrUnsupportedFormat is returned by Probe for files no decoder understands.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Engine is the boundary between cues and whatever renders audio.
// Send never blocks; implementations queue commands for their render loop.
type Engine interface {
	Probe(path string) (FileInfo, error)
	Send(cmd Command) error
	Subscribe(cueID string, fn func(Event)) (cancel func())
}

// FileInfo is the metadata a successful probe reports.
type FileInfo struct {
	Path       string        `json:"path"`
	Format     string        `json:"format"`
	Channels   int           `json:"channels"`
	SampleRate int           `json:"sampleRate"`
	Duration   time.Duration `json:"duration"`
	SizeBytes  int64         `json:"sizeBytes"`
}

type CommandKind int

const (
	CommandPlay CommandKind = iota
	CommandStop
	CommandPause
	CommandResume
	CommandSetRouting
	CommandSetLevel
)

func (k CommandKind) String() string {
	switch k {
	case CommandPlay:
		return "play"
	case CommandStop:
		return "stop"
	case CommandPause:
		return "pause"
	case CommandResume:
		return "resume"
	case CommandSetRouting:
		return "set_routing"
	case CommandSetLevel:
		return "set_level"
	default:
		return "unknown"
	}
}

// Command is a single instruction for the render loop. Only the fields
// relevant to Kind are read.
type Command struct {
	Kind    CommandKind
	CueID   string
	File    FileInfo
	Start   time.Duration
	End     time.Duration // zero plays to the end of the file
	FadeIn  time.Duration
	Fade    time.Duration // fade-out applied by CommandStop
	Speed   float64
	Loop    bool
	Routing Routing
	Level   float64
	Muted   bool
}

type EventKind int

const (
	EventStarted EventKind = iota
	EventPosition
	EventFinished
	EventStopped
	EventError
	EventDropout
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventPosition:
		return "position"
	case EventFinished:
		return "finished"
	case EventStopped:
		return "stopped"
	case EventError:
		return "error"
	case EventDropout:
		return "dropout"
	default:
		return "unknown"
	}
}

// Event flows from the render loop back to the cue that owns a voice.
type Event struct {
	Kind     EventKind
	CueID    string
	Position time.Duration
	Dropped  int // position updates lost before an EventDropout
	Err      error
}
