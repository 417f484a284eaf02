package captcha

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Challenge is what the client receives: an id to echo back and a renderable puzzle.
type Challenge struct {
	ID        string
	Puzzle    string
	ExpiresAt time.Time
}

// Service issues and verifies single-use challenges.
type Service struct {
	generator Generator
	store     *Store
	ttl       time.Duration
	now       func() time.Time
}

func NewService(generator Generator, store *Store, ttl time.Duration) (*Service, error) {
	if generator == nil || store == nil {
		return nil, errors.New("captcha service requires generator and store")
	}
	if ttl <= 0 {
		return nil, errors.New("captcha ttl must be positive")
	}
	return &Service{
		generator: generator,
		store:     store,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

// WithClock overrides the wall clock; intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue generates a puzzle and stores its answer under a fresh id.
func (s *Service) Issue(ctx context.Context) (*Challenge, error) {
	puzzle, err := s.generator.Generate()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	expiresAt := s.now().Add(s.ttl)
	if err := s.store.Save(ctx, id, &Entry{Answer: puzzle.Answer, ExpiresAt: expiresAt.Unix()}, s.ttl); err != nil {
		return nil, err
	}

	return &Challenge{ID: id, Puzzle: puzzle.Image, ExpiresAt: expiresAt}, nil
}

// Verify consumes the challenge whatever the outcome. The comparison ignores
// case and surrounding whitespace.
func (s *Service) Verify(ctx context.Context, challengeID, answer string) error {
	if strings.TrimSpace(challengeID) == "" {
		return ErrExpiredOrMissing
	}

	entry, err := s.store.Take(ctx, challengeID, s.now())
	if err != nil {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(answer), entry.Answer) {
		return ErrMismatch
	}
	return nil
}
