// Package repository defines the record store interface and its in-memory
// implementation.
package repository

import "github.com/propely/engage/internal/domain/record"

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithSeedProposals preloads proposal projections, mainly for tests and
// local demos.
func WithSeedProposals(proposals []record.Proposal) Option {
	return func(s *MemStore) {
		for _, p := range proposals {
			s.proposals[p.ID] = p
		}
	}
}
