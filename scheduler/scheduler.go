package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"akiya_collector/models"
	"akiya_collector/scraper"
)

const commandPollInterval = 2 * time.Second

// Runner is the collection pass the scheduler triggers.
type Runner interface {
	RunAll(ctx context.Context) error
}

// CommandHandler applies commands queued for the daemon.
type CommandHandler interface {
	HandleCommand(ctx context.Context, cmd *models.Command) error
}

// CommandSource is where queued commands are read from.
type CommandSource interface {
	PendingCommands(ctx context.Context) ([]models.Command, error)
	MarkCommandProcessed(ctx context.Context, id int64) error
}

type Scheduler struct {
	spec   string
	runner Runner
	cron   *cron.Cron
	logger *zap.Logger

	commands     CommandSource
	handler      CommandHandler
	pollInterval time.Duration

	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New returns a scheduler for a standard 5-field cron spec or a descriptor
// such as "@daily" or "@every 24h". Overlapping runs are skipped.
func New(spec string, runner Runner, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		spec:         spec,
		runner:       runner,
		cron:         cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:       logger,
		pollInterval: commandPollInterval,
		stopCh:       make(chan struct{}),
	}
}

// SetCommands enables polling of the command queue while the daemon runs.
func (s *Scheduler) SetCommands(src CommandSource, handler CommandHandler) {
	s.commands = src
	s.handler = handler
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.commands != nil && s.handler != nil {
		s.wg.Add(1)
		go s.pollCommands(ctx)
	}

	if s.spec == "" {
		s.logger.Info("no schedule configured, daemon will only respond to commands")
		return nil
	}

	s.logger.Info("starting scheduler", zap.String("cron", s.spec))
	_, err := s.cron.AddFunc(s.spec, func() {
		err := s.runner.RunAll(ctx)
		switch {
		case errors.Is(err, scraper.ErrRunInProgress):
			s.logger.Info("previous collection still running, skipping scheduled run")
		case err != nil:
			s.logger.Error("scheduled run error", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop stops the cron loop and the command poller, then waits for a running
// collection to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.cron.Stop().Done()
		s.wg.Wait()
	})
}

func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.runner.RunAll(ctx)
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processCommands(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) processCommands(ctx context.Context) {
	cmds, err := s.commands.PendingCommands(ctx)
	if err != nil {
		s.logger.Error("error getting commands", zap.Error(err))
		return
	}

	for i := range cmds {
		cmd := &cmds[i]
		s.logger.Info("processing command", zap.Int64("id", cmd.ID), zap.String("command", string(cmd.Command)))
		err := s.handler.HandleCommand(ctx, cmd)
		switch {
		case errors.Is(err, scraper.ErrRunInProgress):
			s.logger.Warn("collection already running, command dropped", zap.Int64("id", cmd.ID))
		case err != nil:
			s.logger.Error("command error", zap.Int64("id", cmd.ID), zap.Error(err))
		}
		if err := s.commands.MarkCommandProcessed(ctx, cmd.ID); err != nil {
			s.logger.Error("error marking command processed", zap.Int64("id", cmd.ID), zap.Error(err))
		}
	}
}
