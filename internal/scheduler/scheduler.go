package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// defaultTickInterval — период проверки due jobs.
const defaultTickInterval = time.Second

// JobFunc — работа, выполняемая по расписанию.
type JobFunc func(ctx context.Context) error

// job — одна запланированная работа с временем следующего запуска.
type job struct {
	name    string
	expr    string
	run     JobFunc
	nextDue time.Time
}

// Scheduler выполняет jobs по cron-расписанию.
//
// Используется gateway для периодического discovery refresh и для
// запуска pipelines по расписанию. Ошибка одного job не блокирует
// остальные.
type Scheduler struct {
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	jobs []*job
}

// New создаёт Scheduler.
func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger: logger,
		now:    time.Now,
	}
}

// AddJob регистрирует job с cron-выражением.
func (s *Scheduler) AddJob(name, cronExpr string, run JobFunc) error {
	schedule, err := Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{
		name:    name,
		expr:    cronExpr,
		run:     run,
		nextDue: schedule.Next(s.now()),
	})
	return nil
}

// Run крутит цикл планировщика до отмены контекста.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(defaultTickInterval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "jobs", s.jobNames())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick выполняет все due jobs и пересчитывает их nextDue.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()

	for _, j := range s.dueJobs(now) {
		started := time.Now()
		if err := j.run(ctx); err != nil {
			s.logger.Error("scheduled job failed",
				"job", j.name,
				"error", err,
			)
			continue
		}
		s.logger.Debug("scheduled job finished",
			"job", j.name,
			"duration", time.Since(started),
		)
	}
}

// dueJobs возвращает jobs с истекшим nextDue и сдвигает их расписание.
func (s *Scheduler) dueJobs(now time.Time) []*job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*job
	for _, j := range s.jobs {
		if j.nextDue.After(now) {
			continue
		}
		due = append(due, j)

		schedule, err := Parse(j.expr)
		if err != nil {
			// Выражение валидировалось в AddJob; сюда не попадаем
			continue
		}
		j.nextDue = schedule.Next(now)
	}
	return due
}

// jobNames возвращает имена зарегистрированных jobs.
func (s *Scheduler) jobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.name)
	}
	return names
}
