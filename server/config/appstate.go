package config

import (
	"strings"
	"sync"
	"time"
)

const DefaultAutoSavePeriod = 30 * time.Second

// AppState holds the runtime flags of an annotation session.
// It is shared by the engine, the auto save loop and the HTTP handlers, so all access is locked.
type AppState struct {
	lock             sync.Mutex
	lastUsedLabel    string
	defaultLabel     string
	labels           map[int]string
	minBoxSize       int
	yoloOBB          bool
	autoSave         bool
	autoSavePeriod   time.Duration
	autoDetect       bool
	showFPS          bool
	edited           bool
	editedGeneration int64
}

func NewAppState(s *Settings) *AppState {
	a := &AppState{
		lastUsedLabel: s.LastUsedLabel,
		defaultLabel:  s.DefaultLabel,
		labels:        map[int]string{},
		minBoxSize:    s.MinBoxSize,
		yoloOBB:       s.YOLOOBBFormat,
		autoDetect:    s.AutoDetect,
		showFPS:       s.ShowFPS,
	}
	for k, v := range s.Labels {
		a.labels[k] = v
	}
	if a.lastUsedLabel == "" {
		a.lastUsedLabel = a.defaultLabel
	}
	a.autoSavePeriod = DefaultAutoSavePeriod
	if s.AutoSavePerSecond > 0 {
		a.autoSavePeriod = time.Duration(s.AutoSavePerSecond * float64(time.Second))
	}
	if s.AutoSave != nil {
		a.autoSave = *s.AutoSave
	} else {
		a.autoSave = s.AutoSavePerSecond > 0
	}
	return a
}

// Apply writes the flags that can change at runtime back into s, so that they survive a restart
func (a *AppState) Apply(s *Settings) {
	a.lock.Lock()
	defer a.lock.Unlock()
	s.LastUsedLabel = a.lastUsedLabel
	s.YOLOOBBFormat = a.yoloOBB
	s.AutoDetect = a.autoDetect
	s.ShowFPS = a.showFPS
	autoSave := a.autoSave
	s.AutoSave = &autoSave
}

func (a *AppState) LastUsedLabel() string {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.lastUsedLabel
}

// SetLastUsedLabel ignores blank labels
func (a *AppState) SetLastUsedLabel(label string) {
	label = strings.TrimSpace(label)
	if label == "" {
		return
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	a.lastUsedLabel = label
}

// LabelForKey returns the preset label of a shortcut key, or the last used label if the key has none
func (a *AppState) LabelForKey(key int) string {
	a.lock.Lock()
	defer a.lock.Unlock()
	if l, ok := a.labels[key]; ok && l != "" {
		return l
	}
	return a.lastUsedLabel
}

func (a *AppState) MinBoxSize() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.minBoxSize
}

// MarkEdited records that the user has changed the annotations since the last save
func (a *AppState) MarkEdited() {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.edited = true
	a.editedGeneration++
}

func (a *AppState) IsEdited() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.edited
}

// EditGeneration increases on every MarkEdited
func (a *AppState) EditGeneration() int64 {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.editedGeneration
}

// ClearEdited is called after a save. If another edit happened after 'generation' was read,
// the flag stays set.
func (a *AppState) ClearEdited(generation int64) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.editedGeneration == generation {
		a.edited = false
	}
}

func (a *AppState) YOLOOBB() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.yoloOBB
}

// ToggleYOLOOBB flips the flag and returns the new value
func (a *AppState) ToggleYOLOOBB() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.yoloOBB = !a.yoloOBB
	return a.yoloOBB
}

func (a *AppState) AutoDetect() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.autoDetect
}

func (a *AppState) ToggleAutoDetect() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.autoDetect = !a.autoDetect
	return a.autoDetect
}

func (a *AppState) ShowFPS() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.showFPS
}

func (a *AppState) ToggleShowFPS() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.showFPS = !a.showFPS
	return a.showFPS
}

func (a *AppState) AutoSave() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.autoSave
}

func (a *AppState) ToggleAutoSave() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.autoSave = !a.autoSave
	return a.autoSave
}

// AutoSavePeriod is how often edits are saved while auto save is on
func (a *AppState) AutoSavePeriod() time.Duration {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.autoSavePeriod
}

// Snapshot is a JSON friendly copy of the flags
type Snapshot struct {
	LastUsedLabel string         `json:"lastUsedLabel"`
	Labels        map[int]string `json:"labels"`
	MinBoxSize    int            `json:"minBoxSize"`
	YOLOOBB       bool           `json:"yoloOBB"`
	AutoSave      bool           `json:"autoSave"`
	AutoSaveEvery float64        `json:"autoSaveSeconds"`
	AutoDetect    bool           `json:"autoDetect"`
	ShowFPS       bool           `json:"showFPS"`
	Edited        bool           `json:"edited"`
}

func (a *AppState) Snapshot() Snapshot {
	a.lock.Lock()
	defer a.lock.Unlock()
	s := Snapshot{
		LastUsedLabel: a.lastUsedLabel,
		Labels:        map[int]string{},
		MinBoxSize:    a.minBoxSize,
		YOLOOBB:       a.yoloOBB,
		AutoSave:      a.autoSave,
		AutoSaveEvery: a.autoSavePeriod.Seconds(),
		AutoDetect:    a.autoDetect,
		ShowFPS:       a.showFPS,
		Edited:        a.edited,
	}
	for k, v := range a.labels {
		s.Labels[k] = v
	}
	return s
}
