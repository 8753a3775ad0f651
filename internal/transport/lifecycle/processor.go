// Package lifecycle двигает заказы по таймерам: завершает доставленные заказы после окончания удержания
// и отменяет неоплаченные заказы с внешней оплатой.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	defaultServiceTimeout         = 3 * time.Second
	defaultIdleDelay              = 5 * time.Second
	defaultLimitPerIteration uint = 100
	defaultWorkers           uint = 5
)

type taskKind string

const (
	taskReleaseEscrow taskKind = "release_escrow"
	taskExpirePending taskKind = "expire_pending"
)

type task struct {
	kind  taskKind
	order domain.Order
}

// Processor фоновый обработчик таймеров заказов.
type Processor struct {
	svs               Servicer
	l                 *logrus.Entry
	limitPerIteration uint
	workers           uint
	idleDelay         time.Duration
}

func New(svs Servicer, l *logrus.Logger) *Processor {
	return &Processor{
		svs: svs,
		l: l.WithFields(logrus.Fields{
			"component": "lifecycle",
			"module":    "processor",
		}),
		limitPerIteration: defaultLimitPerIteration,
		workers:           defaultWorkers,
		idleDelay:         defaultIdleDelay,
	}
}

// SetLimitPerIteration сколько заказов каждого вида забирать за одну итерацию.
func (p *Processor) SetLimitPerIteration(limit uint) *Processor {
	if limit > 0 {
		p.limitPerIteration = limit
	}
	return p
}

// SetWorkers кол-во параллельных воркеров.
func (p *Processor) SetWorkers(workers uint) *Processor {
	if workers > 0 {
		p.workers = workers
	}
	return p
}

func (p *Processor) SetIdleDelay(d time.Duration) *Processor {
	p.idleDelay = d
	return p
}

// Run обрабатывает заказы в цикле до отмены контекста. Если на итерации нечего делать или произошла ошибка,
// выжидает паузу около idleDelay.
func (p *Processor) Run(ctx context.Context) {
	p.l.WithFields(logrus.Fields{
		"limitPerIteration": p.limitPerIteration,
		"workers":           p.workers,
	}).Info("Starting")

	for {
		err := p.process(ctx)
		if err == nil {
			// работа была, сразу берем следующую порцию
			if ctx.Err() == nil {
				continue
			}
		} else if !errors.Is(err, ErrNoOrders) && ctx.Err() == nil {
			p.l.WithError(err).Error("process error")
		}

		select {
		case <-ctx.Done():
			p.l.Info("Got stop signal, exiting...")
			return
		case <-time.After(idlePause(p.idleDelay)):
		}
	}
}

// process одна итерация: собрать просроченные заказы и раздать их воркерам.
// Возвращает ErrNoOrders, если обрабатывать нечего.
func (p *Processor) process(ctx context.Context) error {
	tasks, err := p.produce(ctx)
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}

	results := p.runWorkers(ctx, tasks)

	var failed int
	for _, r := range results {
		l := p.l.WithFields(logrus.Fields{
			"worker":  r.workerID,
			"task":    r.task.kind,
			"orderID": r.task.order.ID,
		})
		switch {
		case r.err == nil:
			l.WithField("status", r.order.Status).Info("Success")
		case errors.Is(r.err, domain.ErrInvalidTransition):
			// покупатель успел подтвердить или callback пришел раньше таймера
			l.WithError(r.err).Debug("order already moved")
		default:
			failed++
			l.WithError(r.err).Error("lifecycle task")
		}
	}
	if failed > 0 && failed == len(results) {
		return fmt.Errorf("process: all %d tasks failed", failed)
	}
	return nil
}

// produce собирает задачи обоих видов. Ошибка одного источника не мешает обработать другой.
func (p *Processor) produce(ctx context.Context) ([]task, error) {
	produceCtx, cancel := context.WithTimeout(ctx, defaultServiceTimeout)
	defer cancel()

	escrow, escrowErr := p.svs.OrdersForEscrowRelease(produceCtx, p.limitPerIteration)
	stale, staleErr := p.svs.StalePendingOrders(produceCtx, p.limitPerIteration)
	if escrowErr != nil && staleErr != nil {
		return nil, errors.Join(escrowErr, staleErr)
	}
	if escrowErr != nil {
		p.l.WithError(escrowErr).Error("orders for escrow release")
	}
	if staleErr != nil {
		p.l.WithError(staleErr).Error("stale pending orders")
	}

	tasks := make([]task, 0, len(escrow)+len(stale))
	for _, o := range escrow {
		tasks = append(tasks, task{kind: taskReleaseEscrow, order: o})
	}
	for _, o := range stale {
		tasks = append(tasks, task{kind: taskExpirePending, order: o})
	}
	if len(tasks) == 0 {
		return nil, ErrNoOrders
	}
	return tasks, nil
}

type workerResult struct {
	workerID uint
	task     task
	order    *domain.Order
	err      error
}

// runWorkers fan-out/fan-in: задачи раздаются через канал p.workers воркерам, результаты собираются в срез.
func (p *Processor) runWorkers(ctx context.Context, tasks []task) []workerResult {
	taskCh := make(chan task, len(tasks))
	for _, t := range tasks {
		taskCh <- t
	}
	close(taskCh)

	resultCh := make(chan workerResult, len(tasks))

	var g errgroup.Group
	for i := range p.workers {
		g.Go(func() error {
			p.worker(ctx, i+1, taskCh, resultCh)
			return nil
		})
	}
	_ = g.Wait()
	close(resultCh)

	results := make([]workerResult, 0, len(tasks))
	for r := range resultCh {
		results = append(results, r)
	}
	return results
}

func (p *Processor) worker(ctx context.Context, workerID uint, taskCh <-chan task, resultCh chan<- workerResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-taskCh:
			if !ok {
				return
			}
			resultCh <- p.processTask(ctx, workerID, t)
		}
	}
}

func (p *Processor) processTask(ctx context.Context, workerID uint, t task) workerResult {
	reqCtx, cancel := context.WithTimeout(ctx, defaultServiceTimeout)
	defer cancel()

	result := workerResult{workerID: workerID, task: t}
	switch t.kind {
	case taskReleaseEscrow:
		result.order, result.err = p.svs.ReleaseEscrow(reqCtx, t.order)
	case taskExpirePending:
		result.order, result.err = p.svs.ExpirePending(reqCtx, t.order)
	default:
		result.err = fmt.Errorf("unknown task `%s`", t.kind)
	}
	return result
}
