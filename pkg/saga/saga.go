// Package saga выполняет последовательность шагов, каждый в своей транзакции, и при ошибке
// откатывает уже выполненные шаги компенсациями в обратном порядке.
package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const defaultCompensationTimeout = 10 * time.Second

// Step шаг саги. Compensate может быть nil, если откатывать нечего.
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// CompensationErrorHandler вызывается для каждой неудавшейся компенсации.
type CompensationErrorHandler func(ctx context.Context, step string, cause, err error)

type Saga struct {
	steps     []Step
	timeout   time.Duration
	onCompErr CompensationErrorHandler
}

type Option func(*Saga)

// WithCompensationTimeout ограничивает время, отведенное на все компенсации.
func WithCompensationTimeout(d time.Duration) Option {
	return func(s *Saga) {
		s.timeout = d
	}
}

func WithCompensationErrorHandler(fn CompensationErrorHandler) Option {
	return func(s *Saga) {
		s.onCompErr = fn
	}
}

func New(opts ...Option) *Saga {
	s := &Saga{timeout: defaultCompensationTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Run выполняет шаги по порядку. Если шаг завершился ошибкой, сам он не компенсируется (его транзакция уже
// откатилась), а компенсации выполненных шагов запускаются в обратном порядке. Компенсации работают на контексте,
// отвязанном от отмены ctx, иначе отключившийся клиент оставил бы деньги списанными.
func (s *Saga) Run(ctx context.Context) error {
	for i, step := range s.steps {
		if err := step.Action(ctx); err != nil {
			return s.compensate(ctx, i, step.Name, err)
		}
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, failed int, failedStep string, cause error) *Error {
	sagaErr := &Error{Step: failedStep, Cause: cause}

	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	for i := failed - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(compCtx); err != nil {
			sagaErr.CompensationErrs = append(sagaErr.CompensationErrs, fmt.Errorf("compensating %s: %w", step.Name, err))
			if s.onCompErr != nil {
				s.onCompErr(compCtx, step.Name, cause, err)
			}
		}
	}
	return sagaErr
}

// Error ошибка шага Step. Unwrap возвращает исходную ошибку шага.
type Error struct {
	Step             string
	Cause            error
	CompensationErrs []error
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "saga step %s: %s", e.Step, e.Cause)
	if len(e.CompensationErrs) > 0 {
		fmt.Fprintf(&sb, " (compensation failed: %s)", errors.Join(e.CompensationErrs...))
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Compensated сообщает, что все компенсации прошли успешно.
func (e *Error) Compensated() bool {
	return len(e.CompensationErrs) == 0
}
