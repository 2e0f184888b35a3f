// Package directory holds the identity, group membership and pack catalog
// collaborators of the cupping service, kept in memory and optionally seeded
// from a YAML file.
package directory

import (
	"context"
	"slices"
	"sync"

	"github.com/okian/cupping/internal/domain/model"
)

type group struct {
	admins  []string
	members []string
}

// Memory answers permission, membership and catalog lookups from memory.
// Safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	groups map[string]group
	packs  map[string]model.Pack
}

// New creates a directory populated by opts.
func New(opts ...Option) *Memory {
	m := &Memory{
		groups: make(map[string]group),
		packs:  make(map[string]model.Pack),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsGroupAdmin reports whether userID administers groupID. Unknown groups
// have no administrators.
func (m *Memory) IsGroupAdmin(_ context.Context, groupID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(m.groups[groupID].admins, userID), nil
}

// GroupMembers returns every member of groupID, administrators included,
// without duplicates and in declaration order.
func (m *Memory) GroupMembers(_ context.Context, groupID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[groupID]
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(g.admins)+len(g.members))
	for _, id := range slices.Concat(g.admins, g.members) {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out, nil
}

// Packs returns catalog entries for the given ids. Unknown ids are omitted.
func (m *Memory) Packs(_ context.Context, ids []string) (map[string]model.Pack, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]model.Pack, len(ids))
	for _, id := range ids {
		if p, ok := m.packs[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// PutGroup replaces a group definition.
func (m *Memory) PutGroup(groupID string, admins, members []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[groupID] = group{admins: slices.Clone(admins), members: slices.Clone(members)}
}

// PutPack adds or replaces a catalog pack.
func (m *Memory) PutPack(p model.Pack) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packs[p.ID] = p
}
