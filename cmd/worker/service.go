package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/livemart/livemart-backend/pkg/logger"
)

// runner is a long-lived subscription loop.
type runner interface {
	Run(ctx context.Context) error
}

// runFunc adapts a plain function to runner.
type runFunc func(ctx context.Context) error

func (f runFunc) Run(ctx context.Context) error { return f(ctx) }

type pinger func(ctx context.Context) error

type ServiceParams struct {
	Logger  *logger.Logger
	Pingers map[string]pinger
	Runners map[string]runner
}

// Service runs every configured consumer until one fails or the context ends.
type Service struct {
	logg    *logger.Logger
	pingers map[string]pinger
	runners map[string]runner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Runners) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for name, r := range params.Runners {
		if r == nil {
			return nil, fmt.Errorf("consumer %s is nil", name)
		}
	}
	return &Service{
		logg:    params.Logger,
		pingers: params.Pingers,
		runners: params.Runners,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, fn := range s.pingers {
		if fn == nil {
			continue
		}
		if err := fn(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for name, r := range s.runners {
		group.Go(func() error {
			runCtx := s.logg.WithField(groupCtx, "consumer", name)
			s.logg.Info(runCtx, "consumer started")
			err := r.Run(runCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(runCtx, "consumer stopped unexpectedly", err)
				return fmt.Errorf("%s: %w", name, err)
			}
			s.logg.Info(runCtx, "consumer stopped")
			return err
		})
	}
	return group.Wait()
}
