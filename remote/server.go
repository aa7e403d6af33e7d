// Package remote serves the cue list over OSC. Commands arrive on a UDP
// socket; replies and status updates are sent to the configured feedback
// targets.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hypebeast/go-osc/osc"
	"github.com/zenibako/cueforge/cue"
	"github.com/zenibako/cueforge/cuelist"
	"github.com/zenibako/cueforge/messages"
)

// Controller is the part of the cue list the server drives.
type Controller interface {
	Go()
	Stop()
	Pause()
	Resume()
	Panic()
	AdvanceStandBy()
	SetStandByCue(id string) bool
	StartCue(id string) error
	StopCue(id string, fade time.Duration) error
	PrepareCue(id string) error
	FindCuesByNumber(number string) []cue.Cue
	ActiveCues() []cue.Cue
	SelectedCues() []cue.Cue
	Subscribe(fn func(cuelist.Event)) (unsubscribe func())
}

// Options configures a Server.
type Options struct {
	// Addr is the UDP listen address, "127.0.0.1:53000" style.
	Addr string
	// WorkspaceID, when set, prefixes update addresses. Incoming addresses
	// with a different workspace id are ignored.
	WorkspaceID string
	// Feedback lists host:port targets for replies and updates.
	Feedback []string
}

// Reply is the JSON payload of every /reply message.
type Reply struct {
	WorkspaceID string `json:"workspace_id,omitempty"`
	Address     string `json:"address"`
	Status      string `json:"status"`
	Data        any    `json:"data,omitempty"`
	Error       string `json:"error,omitempty"`
}

// CueInfo is how a cue is described in replies.
type CueInfo struct {
	UniqueID string `json:"uniqueID"`
	Number   string `json:"number"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Status   string `json:"status"`
}

// Update is the JSON payload of every /update message.
type Update struct {
	Kind   string `json:"kind"`
	CueID  string `json:"cueID,omitempty"`
	Number string `json:"number,omitempty"`
	Status string `json:"status,omitempty"`
	Count  int    `json:"count,omitempty"`
	Path   string `json:"path,omitempty"`
	Error  string `json:"error,omitempty"`
}

type feedback struct {
	target string
	client *osc.Client
}

// Server is an OSC front end for a Controller.
type Server struct {
	ctl     Controller
	opts    Options
	builder *messages.OSCAddressBuilder
	targets []feedback
	updates atomic.Bool

	mu    sync.Mutex
	conn  net.PacketConn
	ready chan struct{}
}

// New validates the feedback targets and returns a server that is not yet
// listening.
func New(ctl Controller, opts Options) (*Server, error) {
	s := &Server{
		ctl:     ctl,
		opts:    opts,
		builder: messages.NewOSCAddressBuilder(opts.WorkspaceID),
		ready:   make(chan struct{}),
	}
	for _, target := range opts.Feedback {
		host, portStr, err := net.SplitHostPort(target)
		if err != nil {
			return nil, fmt.Errorf("feedback target %q: %w", target, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("feedback target %q: invalid port", target)
		}
		s.targets = append(s.targets, feedback{target: target, client: osc.NewClient(host, port)})
	}
	return s, nil
}

// Ready is closed once the socket is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// LocalAddr is the bound address, or nil before Ready.
func (s *Server) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// UpdatesEnabled reports whether list events are being forwarded.
func (s *Server) UpdatesEnabled() bool { return s.updates.Load() }

// ListenAndServe binds the socket and handles messages until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	unsubscribe := s.ctl.Subscribe(s.forward)
	defer unsubscribe()

	d := osc.NewStandardDispatcher()
	_ = d.AddMsgHandler("*", s.handle)
	server := &osc.Server{Addr: conn.LocalAddr().String(), Dispatcher: d}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	close(s.ready)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	log.Info("OSC remote listening", "addr", conn.LocalAddr(), "feedback", len(s.targets))
	err = server.Serve(conn)
	if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
		log.Info("OSC remote stopped")
		return nil
	}
	_ = conn.Close()
	return err
}

func (s *Server) handle(msg *osc.Message) {
	log.Debugf("Received OSC message: %s %v", msg.Address, msg.Arguments)
	req, err := messages.ParseAddress(msg.Address)
	if err != nil {
		log.Debug("Ignoring OSC message", "address", msg.Address)
		return
	}
	if req.WorkspaceID != "" && s.opts.WorkspaceID != "" && req.WorkspaceID != s.opts.WorkspaceID {
		log.Debug("Ignoring OSC message for another workspace", "address", msg.Address, "workspace", req.WorkspaceID)
		return
	}

	switch req.Type {
	case messages.MsgGo:
		s.ctl.Go()
	case messages.MsgStop:
		s.ctl.Stop()
	case messages.MsgPause:
		s.ctl.Pause()
	case messages.MsgResume:
		s.ctl.Resume()
	case messages.MsgPanic:
		s.ctl.Panic()
	case messages.MsgPlayheadNext:
		s.ctl.AdvanceStandBy()
	case messages.MsgPlayhead:
		if c, ok := s.byNumber(req.CueNumber); ok && !s.ctl.SetStandByCue(c.ID()) {
			log.Warn("Cue cannot stand by", "number", req.CueNumber)
		}
	case messages.MsgCueStart, messages.MsgCueStop, messages.MsgCueLoad:
		c, ok := s.byNumber(req.CueNumber)
		if !ok {
			return
		}
		s.cueCommand(req.Type, c.ID(), msg.Arguments)
	case messages.MsgCueIDStart, messages.MsgCueIDStop, messages.MsgCueIDLoad:
		s.cueCommand(req.Type, req.UniqueID, msg.Arguments)
	case messages.MsgRunningCues:
		s.reply(msg.Address, describe(s.ctl.ActiveCues()), nil)
	case messages.MsgSelectedCues:
		s.reply(msg.Address, describe(s.ctl.SelectedCues()), nil)
	case messages.MsgUpdates:
		on, err := boolArg(msg.Arguments)
		if err != nil {
			s.reply(msg.Address, nil, err)
			return
		}
		s.updates.Store(on)
		log.Info("OSC updates", "enabled", on)
	}
}

func (s *Server) byNumber(number string) (cue.Cue, bool) {
	found := s.ctl.FindCuesByNumber(number)
	if len(found) == 0 {
		log.Warn("No cue with number", "number", number)
		return nil, false
	}
	return found[0], true
}

func (s *Server) cueCommand(t messages.MessageType, id string, args []any) {
	var err error
	switch t {
	case messages.MsgCueStart, messages.MsgCueIDStart:
		err = s.ctl.StartCue(id)
	case messages.MsgCueStop, messages.MsgCueIDStop:
		var fade float64
		if len(args) > 0 {
			if fade, err = floatArg(args[0]); err != nil {
				break
			}
		}
		err = s.ctl.StopCue(id, time.Duration(fade*float64(time.Second)))
	case messages.MsgCueLoad, messages.MsgCueIDLoad:
		err = s.ctl.PrepareCue(id)
	}
	if err != nil {
		log.Warn("OSC cue command failed", "command", t, "id", id, "error", err)
	}
}

func (s *Server) reply(address string, data any, err error) {
	r := Reply{
		WorkspaceID: s.opts.WorkspaceID,
		Address:     address,
		Status:      "ok",
		Data:        data,
	}
	if err != nil {
		r.Status = "error"
		r.Error = err.Error()
	}
	payload, merr := json.Marshal(r)
	if merr != nil {
		log.Error("Failed to encode reply", "address", address, "error", merr)
		return
	}
	s.send(s.builder.BuildReplyAddress(address), string(payload))
}

func (s *Server) forward(ev cuelist.Event) {
	if !s.updates.Load() {
		return
	}
	u := Update{
		Kind:   string(ev.Kind),
		CueID:  ev.CueID,
		Number: ev.Number,
		Count:  ev.Count,
		Path:   ev.Path,
	}
	if ev.Kind == cuelist.EventPlaybackStateChanged && ev.CueID != "" {
		u.Status = ev.Status.String()
	}
	if ev.Err != nil {
		u.Error = ev.Err.Error()
	}
	payload, err := json.Marshal(u)
	if err != nil {
		log.Error("Failed to encode update", "kind", ev.Kind, "error", err)
		return
	}
	s.send(s.builder.BuildUpdateAddress(string(ev.Kind)), string(payload))
}

func (s *Server) send(address string, args ...any) {
	if len(s.targets) == 0 {
		log.Debug("No feedback targets, dropping", "address", address)
		return
	}
	msg := osc.NewMessage(address)
	for _, arg := range args {
		msg.Append(arg)
	}
	for _, t := range s.targets {
		if err := t.client.Send(msg); err != nil {
			log.Warn("Failed to send OSC feedback", "target", t.target, "address", address, "error", err)
		}
	}
}

func describe(cues []cue.Cue) []CueInfo {
	out := make([]CueInfo, 0, len(cues))
	for _, c := range cues {
		out = append(out, CueInfo{
			UniqueID: c.ID(),
			Number:   c.Number(),
			Name:     c.Name(),
			Type:     c.Type().String(),
			Status:   c.Status().String(),
		})
	}
	return out
}

func boolArg(args []any) (bool, error) {
	if len(args) == 0 {
		return false, errors.New("missing argument")
	}
	switch v := args[0].(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	}
	f, err := floatArg(args[0])
	return f != 0, err
}

func floatArg(arg any) (float64, error) {
	switch v := arg.(type) {
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("unsupported argument %T", arg)
}
