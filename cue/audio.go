package cue

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zenibako/cueforge/playback"
)

const (
	MinFadeTime = time.Millisecond
	MaxFadeTime = 60 * time.Second
	MinSpeed    = 0.1
	MaxSpeed    = 4.0
)

// AudioCue plays a region of a media file through the playback engine.
type AudioCue struct {
	Base

	filePath    string
	loaded      bool
	info        playback.FileInfo
	loadErr     string
	startTime   time.Duration
	fadeIn      time.Duration
	fadeOut     time.Duration
	sliceMarker int64
	looping     bool
	speed       float64
	routing     playback.Routing
	mainLevel   float64
	liveLevel   float64
	muted       bool
	soloed      bool
	gang        string

	detachEngine func()
}

func newAudio(env Env) *AudioCue {
	a := &AudioCue{
		fadeIn:    MinFadeTime,
		fadeOut:   MinFadeTime,
		speed:     1,
		mainLevel: 1,
		liveLevel: 1,
		routing:   playback.Routing{},
	}
	a.init(TypeAudio, env, a)
	return a
}

func clampFade(d time.Duration) time.Duration {
	return min(max(d, MinFadeTime), MaxFadeTime)
}

func (a *AudioCue) FilePath() string { return getField(&a.Base, &a.filePath) }

// SetFilePath points the cue at a new file and forgets any loaded metadata.
func (a *AudioCue) SetFilePath(path string) {
	a.mu.Lock()
	if a.filePath == path {
		a.mu.Unlock()
		return
	}
	a.filePath = path
	a.loaded = false
	a.info = playback.FileInfo{}
	a.loadErr = ""
	a.modified = a.now()
	a.mu.Unlock()
	a.emit(Event{Kind: EventUpdated, Field: "filePath"})
}

func (a *AudioCue) StartTime() time.Duration   { return getField(&a.Base, &a.startTime) }
func (a *AudioCue) FadeInTime() time.Duration  { return getField(&a.Base, &a.fadeIn) }
func (a *AudioCue) FadeOutTime() time.Duration { return getField(&a.Base, &a.fadeOut) }
func (a *AudioCue) SliceMarker() int64         { return getField(&a.Base, &a.sliceMarker) }
func (a *AudioCue) Looping() bool              { return getField(&a.Base, &a.looping) }
func (a *AudioCue) PlaybackSpeed() float64     { return getField(&a.Base, &a.speed) }
func (a *AudioCue) MainLevel() float64         { return getField(&a.Base, &a.mainLevel) }
func (a *AudioCue) Muted() bool                { return getField(&a.Base, &a.muted) }
func (a *AudioCue) Soloed() bool               { return getField(&a.Base, &a.soloed) }
func (a *AudioCue) Gang() string               { return getField(&a.Base, &a.gang) }

func (a *AudioCue) SetStartTime(d time.Duration) {
	setField(&a.Base, "startTime", &a.startTime, max(d, 0))
}

func (a *AudioCue) SetFadeInTime(d time.Duration) {
	setField(&a.Base, "fadeInTime", &a.fadeIn, clampFade(d))
}

func (a *AudioCue) SetFadeOutTime(d time.Duration) {
	setField(&a.Base, "fadeOutTime", &a.fadeOut, clampFade(d))
}

// SetSliceMarker sets where playback ends, in samples. Zero plays to the end.
func (a *AudioCue) SetSliceMarker(samples int64) {
	setField(&a.Base, "sliceMarker", &a.sliceMarker, max(samples, 0))
}

func (a *AudioCue) SetLooping(loop bool) {
	setField(&a.Base, "looping", &a.looping, loop)
}

func (a *AudioCue) SetPlaybackSpeed(speed float64) {
	setField(&a.Base, "playbackSpeed", &a.speed, min(max(speed, MinSpeed), MaxSpeed))
}

// SetMainLevel changes the saved output level and the live one with it.
func (a *AudioCue) SetMainLevel(level float64) {
	level = min(max(level, 0), 1)
	setField(&a.Base, "mainLevel", &a.mainLevel, level)
	a.SetLiveLevel(level)
}

// LiveLevel is the output level in effect right now. Fades move it without
// touching the saved main level; each run starts from the main level.
func (a *AudioCue) LiveLevel() float64 { return getField(&a.Base, &a.liveLevel) }

func (a *AudioCue) SetLiveLevel(level float64) {
	a.mu.Lock()
	a.liveLevel = min(max(level, 0), 1)
	a.mu.Unlock()
	a.sendLevel()
}

func (a *AudioCue) SetMuted(muted bool) {
	setField(&a.Base, "muted", &a.muted, muted)
	a.sendLevel()
}

func (a *AudioCue) SetSoloed(soloed bool) {
	setField(&a.Base, "soloed", &a.soloed, soloed)
}

func (a *AudioCue) SetGang(gang string) {
	setField(&a.Base, "gang", &a.gang, gang)
}

// Routing returns a copy of the crosspoint matrix.
func (a *AudioCue) Routing() playback.Routing {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.routing.Clone()
}

func (a *AudioCue) Level(in, out int) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.routing.Level(in, out)
}

func (a *AudioCue) SetCrosspoint(in, out int, level float64) {
	a.mu.Lock()
	a.routing.Set(in, out, level)
	a.modified = a.now()
	a.mu.Unlock()
	a.emit(Event{Kind: EventUpdated, Field: "routing"})
	a.sendRouting()
}

// ClearInput removes every crosspoint fed by one input channel.
func (a *AudioCue) ClearInput(in int) {
	a.mu.Lock()
	delete(a.routing, in)
	a.modified = a.now()
	a.mu.Unlock()
	a.emit(Event{Kind: EventUpdated, Field: "routing"})
	a.sendRouting()
}

func (a *AudioCue) IsLoaded() bool { return getField(&a.Base, &a.loaded) }

// FileInfo reports the probed metadata; ok is false until a load succeeds.
func (a *AudioCue) FileInfo() (info playback.FileInfo, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.info, a.loaded
}

// ValidationError explains why the cue cannot play, or is empty.
func (a *AudioCue) ValidationError() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case a.filePath == "":
		return "no audio file selected"
	case !playback.IsFormatSupported(a.filePath):
		return fmt.Sprintf("unsupported audio format: %s", a.filePath)
	default:
		return a.loadErr
	}
}

// Load probes the file through the engine and records its metadata.
func (a *AudioCue) Load() error {
	path := a.FilePath()
	var err error
	var info playback.FileInfo
	switch {
	case path == "":
		err = errors.New("no audio file selected")
	case a.env.Engine == nil:
		err = errors.New("no playback engine")
	default:
		info, err = a.env.Engine.Probe(path)
	}

	a.mu.Lock()
	if a.filePath != path {
		a.mu.Unlock()
		return fmt.Errorf("file changed while loading %s", path)
	}
	if err != nil {
		a.loaded = false
		a.info = playback.FileInfo{}
		a.loadErr = err.Error()
		a.mu.Unlock()
		log.Warn("Failed to load audio file", "cue", a.Number(), "path", path, "error", err)
		a.emit(Event{Kind: EventUpdated, Field: FieldFileLoaded})
		return err
	}
	a.info = info
	a.loaded = true
	a.loadErr = ""
	a.duration = info.Duration
	if len(a.routing) == 0 {
		a.routing = playback.Identity(info.Channels)
	}
	a.modified = a.now()
	a.mu.Unlock()

	log.Debug("Loaded audio file", "path", path, "channels", info.Channels,
		"sampleRate", info.SampleRate, "duration", info.Duration)
	a.emit(Event{Kind: EventUpdated, Field: FieldFileLoaded})
	return nil
}

// Unload forgets the probed metadata.
func (a *AudioCue) Unload() {
	a.mu.Lock()
	a.loaded = false
	a.info = playback.FileInfo{}
	a.mu.Unlock()
	a.emit(Event{Kind: EventUpdated, Field: FieldFileLoaded})
}

func (a *AudioCue) prepareImpl() error {
	if a.IsLoaded() {
		return nil
	}
	return a.Load()
}

// playableLocked is the media time between the start point and the end.
func (a *AudioCue) playableLocked() (end, length time.Duration) {
	end = a.info.Duration
	if a.sliceMarker > 0 && a.info.SampleRate > 0 {
		if slice := time.Duration(a.sliceMarker) * time.Second / time.Duration(a.info.SampleRate); slice < end {
			end = slice
		}
	}
	return end, end - a.startTime
}

func (a *AudioCue) executeImpl(gen uint64) {
	if err := a.Prepare(); err != nil {
		a.fail(gen, err)
		return
	}

	a.mu.Lock()
	end, length := a.playableLocked()
	if length <= 0 {
		a.mu.Unlock()
		a.fail(gen, fmt.Errorf("start time %v is past the end of %s", a.StartTime(), a.FilePath()))
		return
	}
	a.liveLevel = a.mainLevel
	cmd := playback.Command{
		Kind:    playback.CommandPlay,
		CueID:   a.id,
		File:    a.info,
		Start:   a.startTime,
		End:     end,
		FadeIn:  a.fadeIn,
		Speed:   a.speed,
		Loop:    a.looping,
		Routing: a.routing.Clone(),
		Level:   a.mainLevel,
		Muted:   a.muted,
	}
	a.detachLocked()
	a.detachEngine = a.env.Engine.Subscribe(a.id, func(ev playback.Event) {
		a.onEngineEvent(gen, length, ev)
	})
	a.mu.Unlock()

	if err := a.env.Engine.Send(cmd); err != nil {
		a.detach()
		a.fail(gen, fmt.Errorf("failed to start playback: %w", err))
		return
	}
	a.begin(gen)
}

func (a *AudioCue) onEngineEvent(gen uint64, length time.Duration, ev playback.Event) {
	a.mu.Lock()
	current := a.gen == gen
	a.mu.Unlock()

	switch ev.Kind {
	case playback.EventPosition:
		if current && length > 0 {
			a.SetProgress(float64(ev.Position) / float64(length))
		}
	case playback.EventFinished:
		a.detach()
		a.complete(gen)
	case playback.EventStopped:
		a.detach()
	case playback.EventError:
		a.detach()
		a.fail(gen, ev.Err)
	case playback.EventDropout:
		log.Warn("Audio dropout", "cue", a.Number(), "dropped", ev.Dropped)
	}
}

func (a *AudioCue) detachLocked() {
	if a.detachEngine != nil {
		a.detachEngine()
		a.detachEngine = nil
	}
}

func (a *AudioCue) detach() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detachLocked()
}

func (a *AudioCue) attached() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.detachEngine != nil
}

func (a *AudioCue) send(cmd playback.Command) {
	if a.env.Engine == nil || !a.attached() {
		return
	}
	cmd.CueID = a.id
	if err := a.env.Engine.Send(cmd); err != nil {
		log.Warn("Failed to send playback command", "cue", a.Number(), "command", cmd.Kind, "error", err)
	}
}

func (a *AudioCue) sendLevel() {
	a.mu.Lock()
	cmd := playback.Command{Kind: playback.CommandSetLevel, Level: a.liveLevel, Muted: a.muted}
	a.mu.Unlock()
	a.send(cmd)
}

func (a *AudioCue) sendRouting() {
	a.send(playback.Command{Kind: playback.CommandSetRouting, Routing: a.Routing()})
}

func (a *AudioCue) stopImpl(fade time.Duration) {
	if fade == FadeDefault {
		fade = a.FadeOutTime()
	}
	a.send(playback.Command{Kind: playback.CommandStop, Fade: fade})
	if fade <= 0 {
		a.detach()
	}
}

func (a *AudioCue) pauseImpl()  { a.send(playback.Command{Kind: playback.CommandPause}) }
func (a *AudioCue) resumeImpl() { a.send(playback.Command{Kind: playback.CommandResume}) }

func (a *AudioCue) resetImpl() {
	a.send(playback.Command{Kind: playback.CommandStop})
	a.detach()
}

func (a *AudioCue) finishImpl() {
	a.detach()
}

func (a *AudioCue) encodeExtra(m map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m["filePath"] = a.filePath
	m["startTime"] = seconds(a.startTime)
	m["fadeInTime"] = seconds(a.fadeIn)
	m["fadeOutTime"] = seconds(a.fadeOut)
	m["sliceMarker"] = a.sliceMarker
	m["looping"] = a.looping
	m["playbackSpeed"] = a.speed
	m["mainLevel"] = a.mainLevel
	m["muted"] = a.muted
	m["soloed"] = a.soloed
	m["gang"] = a.gang
	m["routing"] = a.routing.Clone()
}

func (a *AudioCue) decodeExtra(d *decoder) {
	d.str("filePath", a.SetFilePath)
	d.seconds("startTime", a.SetStartTime)
	d.seconds("fadeInTime", a.SetFadeInTime)
	d.seconds("fadeOutTime", a.SetFadeOutTime)
	d.number("sliceMarker", func(f float64) { a.SetSliceMarker(int64(f)) })
	d.boolean("looping", a.SetLooping)
	d.number("playbackSpeed", a.SetPlaybackSpeed)
	d.number("mainLevel", a.SetMainLevel)
	d.boolean("muted", a.SetMuted)
	d.boolean("soloed", a.SetSoloed)
	d.str("gang", a.SetGang)
	var routing playback.Routing
	if d.into("routing", &routing) {
		a.mu.Lock()
		a.routing = routing
		if a.routing == nil {
			a.routing = playback.Routing{}
		}
		a.mu.Unlock()
	}
}
