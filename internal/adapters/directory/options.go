package directory

import "github.com/okian/cupping/internal/domain/model"

// Option applies a configuration option to the Memory directory.
type Option func(*Memory)

// WithGroup declares a group with its administrators and members.
func WithGroup(groupID string, admins, members []string) Option {
	return func(m *Memory) {
		m.PutGroup(groupID, admins, members)
	}
}

// WithPacks adds catalog packs.
func WithPacks(packs ...model.Pack) Option {
	return func(m *Memory) {
		for _, p := range packs {
			m.PutPack(p)
		}
	}
}
