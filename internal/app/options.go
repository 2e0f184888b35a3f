package service

import (
	"time"

	"github.com/okian/cupping/internal/adapters/repository"
	"github.com/okian/cupping/internal/domain/shuffle"
	"github.com/okian/cupping/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the session store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDirectory sets the permission and membership resolver.
func WithDirectory(d Directory) Option {
	return func(s *Service) {
		if d != nil {
			s.directory = d
		}
	}
}

// WithCatalog sets the pack catalog used to enrich session views.
func WithCatalog(c Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithShuffler sets the source of random sample orders.
func WithShuffler(sh *shuffle.Shuffler) Option {
	return func(s *Service) {
		if sh != nil {
			s.shuffler = sh
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how session and test ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithMaxCommentLength bounds rating comments, in runes.
func WithMaxCommentLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxCommentLength = n
		}
	}
}
