// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package plugin

import (
	"sync"
	"time"

	"github.com/wizardmod/wizard/pkg/wizard"
)

// Origin identifies where a plugin came from.
type Origin string

// Plugin origins.
const (
	OriginNative Origin = "native"
	OriginLua    Origin = "lua"
	OriginBinary Origin = "binary"
)

// Record is a registry entry. Values returned by the Registry are snapshots.
type Record struct {
	ID         wizard.PluginID   `json:"id"`
	Descriptor wizard.Descriptor `json:"descriptor"`
	State      State             `json:"state"`
	Origin     Origin            `json:"origin"`
	Hooks      wizard.HookSet    `json:"-"`
	LoadedAt   time.Time         `json:"loaded_at"`
	Instance   wizard.Plugin     `json:"-"`
}

// Registry tracks the plugins currently between Loading and Ending.
//
// A record exists only while its state is neither Unloaded nor Failed.
// Ids are allocated monotonically and never reused.
type Registry struct {
	mu      sync.RWMutex
	nextID  uint64
	records map[wizard.PluginID]*Record
	byName  map[string]wizard.PluginID
	order   []wizard.PluginID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[wizard.PluginID]*Record),
		byName:  make(map[string]wizard.PluginID),
	}
}

// Register adds a plugin in the Loading state and returns its new id.
func (r *Registry) Register(desc wizard.Descriptor, instance wizard.Plugin, origin Origin) (wizard.PluginID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[desc.Name]; ok {
		return wizard.NullPlugin, ErrDuplicateName(desc.Name)
	}

	id := wizard.PluginID(r.nextID)
	r.nextID++
	r.records[id] = &Record{
		ID:         id,
		Descriptor: desc.Clone(),
		State:      StateLoading,
		Origin:     origin,
		Hooks:      wizard.HookSetOf(instance),
		LoadedAt:   time.Now(),
		Instance:   instance,
	}
	r.byName[desc.Name] = id
	r.order = append(r.order, id)
	return id, nil
}

// Unregister removes a record. The id is never handed out again.
func (r *Registry) Unregister(id wizard.PluginID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return ErrPluginNotFound(id)
	}
	delete(r.records, id)
	delete(r.byName, rec.Descriptor.Name)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetState moves a plugin to a new state if the lifecycle allows it.
func (r *Registry) SetState(id wizard.PluginID, to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return ErrPluginNotFound(id)
	}
	if !CanTransition(rec.State, to) {
		return ErrInvalidTransition(rec.Descriptor.Name, rec.State, to)
	}
	rec.State = to
	return nil
}

// FindByName looks up a registered plugin by exact name.
func (r *Registry) FindByName(name string) (wizard.PluginID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// Get returns a snapshot of one record.
func (r *Registry) Get(id wizard.PluginID) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// All returns snapshots of every record in load order.
func (r *Registry) All() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.records[id])
	}
	return out
}

// Running returns the ids of running plugins in load order.
func (r *Registry) Running() []wizard.PluginID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []wizard.PluginID
	for _, id := range r.order {
		if r.records[id].State == StateRunning {
			out = append(out, id)
		}
	}
	return out
}

// Listeners returns running plugins subscribed to hook, in load order.
func (r *Registry) Listeners(hook wizard.Hook) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Record
	for _, id := range r.order {
		rec := r.records[id]
		if rec.State == StateRunning && rec.Hooks.Has(hook) {
			out = append(out, *rec)
		}
	}
	return out
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
