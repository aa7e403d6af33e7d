package cuelist

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/zenibako/cueforge/cue"
	"github.com/zenibako/cueforge/workspace"
)

// NewWorkspace stops everything and empties the list.
func (m *Manager) NewWorkspace() {
	m.replace(nil, nil, "")
	m.wsMu.Lock()
	store := m.store
	m.store = nil
	m.path = ""
	m.name = ""
	m.dirty = false
	m.wsMu.Unlock()
	if store != nil {
		if err := store.Close(); err != nil {
			log.Warn("Failed to release workspace", "error", err)
		}
	}
	log.Info("New workspace created")
	m.emit(Event{Kind: EventWorkspaceChanged})
}

// replace swaps the whole list. Old cues are stopped and released.
func (m *Manager) replace(cues []cue.Cue, expansion map[string]bool, standby string) {
	m.stopAll(0)

	m.mu.Lock()
	for _, c := range m.cues {
		m.unbindLocked(c)
	}
	m.cues = cues
	for _, c := range cues {
		m.bindLocked(c)
	}

	m.selMu.Lock()
	m.selected = nil
	m.selMu.Unlock()

	m.standbyMu.Lock()
	if standby == "" || m.indexLocked(standby) < 0 {
		standby = m.nextExecutableLocked("")
	}
	m.standby = standby
	m.standbyMu.Unlock()

	m.activeMu.Lock()
	m.active = nil
	m.paused = false
	m.activeMu.Unlock()

	m.expMu.Lock()
	m.expanded = make(map[string]bool)
	for _, c := range m.allLocked() {
		if c.Type() != cue.TypeGroup {
			continue
		}
		if expanded, ok := expansion[c.ID()]; ok {
			m.expanded[c.ID()] = expanded
		} else {
			m.expanded[c.ID()] = true
		}
	}
	m.expMu.Unlock()
	count := len(m.cues)
	m.mu.Unlock()

	m.ClearClipboard()
	m.invalidateStats()
	m.emit(
		Event{Kind: EventCueCountChanged, Count: count},
		Event{Kind: EventSelectionChanged},
		Event{Kind: EventStandByChanged, CueID: standby},
	)
}

// Snapshot captures the list as a workspace document.
func (m *Manager) Snapshot() workspace.Document {
	doc := workspace.New(m.WorkspaceTitle())
	m.mu.RLock()
	for _, c := range m.cues {
		data, err := c.MarshalJSON()
		if err != nil {
			log.Warn("Failed to save cue", "number", c.Number(), "error", err)
			continue
		}
		doc.Cues = append(doc.Cues, data)
	}
	m.expMu.Lock()
	if len(m.expanded) > 0 {
		doc.GroupExpansion = make(map[string]bool, len(m.expanded))
		for id, expanded := range m.expanded {
			doc.GroupExpansion[id] = expanded
		}
	}
	m.expMu.Unlock()
	m.mu.RUnlock()
	doc.StandByCueID = m.StandByID()
	return doc
}

// Restore replaces the list with the cues in doc, keeping their ids, and
// validates the result. Cues that cannot be decoded are skipped; their
// errors are returned together once the rest is loaded.
func (m *Manager) Restore(doc workspace.Document) error {
	var errs []error
	seen := make(map[string]bool)
	cues := make([]cue.Cue, 0, len(doc.Cues))
	for i, data := range doc.Cues {
		c, err := cue.Decode(data, m.env(), cue.KeepID())
		if err != nil {
			errs = append(errs, fmt.Errorf("cue %d: %w", i, err))
			continue
		}
		duplicate := false
		cue.Walk(c, func(x cue.Cue) { duplicate = duplicate || seen[x.ID()] })
		if duplicate {
			if c, err = cue.Decode(data, m.env()); err != nil {
				continue
			}
		}
		cue.Walk(c, func(x cue.Cue) { seen[x.ID()] = true })
		cues = append(cues, c)
	}

	m.replace(cues, doc.GroupExpansion, doc.StandByCueID)
	m.wsMu.Lock()
	m.name = doc.Name
	m.wsMu.Unlock()
	m.ValidateAllCues()

	if len(errs) > 0 {
		log.Warn("Some cues could not be loaded", "count", len(errs))
	}
	return errors.Join(errs...)
}

// OpenWorkspace locks and loads a workspace file. A file that does not
// exist yet opens as an empty workspace.
func (m *Manager) OpenWorkspace(path string) error {
	store, err := workspace.Open(path)
	if err != nil {
		return err
	}
	doc, err := store.Load()
	if err != nil {
		store.Close()
		return err
	}
	if err := m.Restore(doc); err != nil {
		log.Warn("Workspace opened with errors", "path", store.Path(), "error", err)
	}

	m.wsMu.Lock()
	old := m.store
	m.store = store
	m.path = store.Path()
	m.dirty = false
	m.wsMu.Unlock()
	if old != nil {
		old.Close()
	}

	log.Info("Opened workspace", "path", store.Path(), "cues", len(doc.Cues))
	m.emit(Event{Kind: EventWorkspaceOpened, Path: store.Path()})
	return nil
}

// SaveWorkspace writes to path, or to the current file when path is empty.
func (m *Manager) SaveWorkspace(path string) error {
	m.wsMu.Lock()
	store := m.store
	current := m.path
	m.wsMu.Unlock()

	if path == "" {
		path = current
	}
	if path == "" {
		return ErrNoPath
	}
	if store == nil || !samePath(store, path) {
		return m.SaveWorkspaceAs(path)
	}
	return m.save(store)
}

// SaveWorkspaceAs writes to a new file and makes it the current one.
func (m *Manager) SaveWorkspaceAs(path string) error {
	m.wsMu.Lock()
	old := m.store
	m.wsMu.Unlock()
	if old != nil && samePath(old, path) {
		return m.save(old)
	}

	store, err := workspace.Open(path)
	if err != nil {
		return err
	}
	if err := m.save(store); err != nil {
		store.Close()
		return err
	}

	m.wsMu.Lock()
	m.store = store
	m.path = store.Path()
	m.wsMu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

func (m *Manager) save(store *workspace.Store) error {
	doc := m.Snapshot()
	doc.SavedAt = m.clock.Now()
	if err := store.Save(doc); err != nil {
		return err
	}
	m.wsMu.Lock()
	m.dirty = false
	m.wsMu.Unlock()
	log.Info("Saved workspace", "path", store.Path(), "cues", len(doc.Cues))
	m.emit(Event{Kind: EventWorkspaceSaved, Path: store.Path()})
	return nil
}

func samePath(store *workspace.Store, path string) bool {
	abs, err := filepath.Abs(path)
	return err == nil && store.Path() == abs
}

func (m *Manager) WorkspacePath() string {
	m.wsMu.Lock()
	defer m.wsMu.Unlock()
	return m.path
}

// WorkspaceTitle is the document name, or the file name without extension.
func (m *Manager) WorkspaceTitle() string {
	m.wsMu.Lock()
	defer m.wsMu.Unlock()
	if m.name != "" {
		return m.name
	}
	return workspace.TitleFor(m.path)
}

// SetWorkspaceName renames the show. An empty name falls back to the file
// name.
func (m *Manager) SetWorkspaceName(name string) {
	m.wsMu.Lock()
	changed := m.name != name
	m.name = name
	m.wsMu.Unlock()
	if changed {
		m.markModified()
	}
}

// MarshalJSON writes the current document, for tools that want the list
// without a file.
func (m *Manager) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Snapshot())
}
