// Package execution performs remote Stripe calls exactly once per payment,
// using the payment's interaction history as the only idempotency state.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/pspadapter/internal/application/ledger"
	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/cassiomorais/pspadapter/internal/domain/interaction"
	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/observability"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/stripe"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Decision is the state an invocation found the payment in.
type Decision string

const (
	// DecisionCompleted: a success record exists; its id is returned, nothing is sent.
	DecisionCompleted Decision = "completed"
	// DecisionFailed: the last request failed permanently; nothing is sent.
	DecisionFailed Decision = "failed"
	// DecisionRetry: the last request has no outcome or a temporary one; it is re-sent verbatim.
	DecisionRetry Decision = "retry"
	// DecisionFresh: no request yet; a new one is recorded, then sent.
	DecisionFresh Decision = "fresh"
	// DecisionSkipped: a precondition is missing; nothing is recorded or sent.
	DecisionSkipped Decision = "skipped"
)

// Plan is the result of inspecting a payment without side effects.
type Plan struct {
	Decision Decision
	// ID of the remote object, set for DecisionCompleted
	ID string
	// Request to re-send, set for DecisionRetry
	Request *Request
}

// Result reports what an invocation did. ID is empty unless the remote object
// exists; Payment is the latest snapshot the invocation saw or produced.
type Result struct {
	Payment  *payment.Payment
	ID       string
	Decision Decision
	Failure  *Failure
}

// OK reports whether the remote object exists.
func (r Result) OK() bool {
	return r.ID != ""
}

// Hooks specialise the executor for one remote operation.
type Hooks[T any] struct {
	// Operation names the operation in logs, metrics and errors
	Operation    string
	RequestType  string
	SuccessType  string
	SuccessField string

	// Ready gates the operation on payment state; nil means always ready
	Ready func(ctx context.Context, p *payment.Payment) bool
	// Params builds the parameters for a fresh request
	Params func(ctx context.Context, p *payment.Payment) (stripe.Params, error)
	// Call performs the remote call
	Call func(ctx context.Context, req Request) (T, error)
	// ID extracts the remote object id
	ID func(T) string
	// Apply adds domain mutations recorded alongside the success record
	Apply func(T) []payment.UpdateAction
}

// Executor runs one remote operation idempotently against a payment.
//
// Deciding follows a fixed priority: an existing success record wins, then a
// permanently failed last request, then a last request awaiting a usable
// outcome (re-sent with its original token and params), and only then a
// fresh request, which is persisted before it is sent. The outcome and its
// domain mutations are appended in one version-checked batch; a version
// conflict is returned as ErrConcurrentModification and never recorded as a
// remote failure.
type Executor[T any] struct {
	hooks    Hooks[T]
	ledger   *ledger.Accessor
	payments payment.Repository
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

type Option func(*options)

type options struct {
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func newExecutor[T any](hooks Hooks[T], accessor *ledger.Accessor, payments payment.Repository, opts []Option) *Executor[T] {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Executor[T]{
		hooks:    hooks,
		ledger:   accessor,
		payments: payments,
		logger:   o.logger.With().Str("operation", hooks.Operation).Logger(),
		metrics:  o.metrics,
	}
}

// Decide inspects the payment and returns what Execute would do.
func (e *Executor[T]) Decide(ctx context.Context, p *payment.Payment) (Plan, error) {
	if rec, ok := e.ledger.Last(ctx, p, e.hooks.SuccessType); ok {
		return Plan{Decision: DecisionCompleted, ID: rec.Field(e.hooks.SuccessField)}, nil
	}

	if e.hooks.Ready != nil && !e.hooks.Ready(ctx, p) {
		return Plan{Decision: DecisionSkipped}, nil
	}

	last, ok := e.ledger.Last(ctx, p, e.hooks.RequestType)
	if !ok {
		return Plan{Decision: DecisionFresh}, nil
	}
	if failure, ok := e.ledger.CorrelatedFailure(ctx, p, last); ok && failure.Permanent {
		return Plan{Decision: DecisionFailed}, nil
	}

	req, err := RequestFromInteraction(last)
	if err != nil {
		return Plan{}, fmt.Errorf("%s: restore request: %w", e.hooks.Operation, err)
	}
	return Plan{Decision: DecisionRetry, Request: &req}, nil
}

// Execute runs the operation for p. Remote failures are recorded on the
// payment and reported through Result.Failure with a nil error; a non-nil
// error means the ledger could not be read or written.
func (e *Executor[T]) Execute(ctx context.Context, p *payment.Payment) (Result, error) {
	ctx, span := observability.Tracer().Start(ctx, "execution."+e.hooks.Operation)
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", p.ID.String()))

	start := time.Now()
	res, err := e.execute(ctx, p)

	span.SetAttributes(attribute.String("execution.decision", string(res.Decision)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	e.observe(res, err, time.Since(start))
	return res, err
}

func (e *Executor[T]) execute(ctx context.Context, p *payment.Payment) (Result, error) {
	plan, err := e.Decide(ctx, p)
	if err != nil {
		return Result{Payment: p}, err
	}

	log := e.logger.With().
		Str("payment_id", p.ID.String()).
		Str("decision", string(plan.Decision)).
		Logger()

	switch plan.Decision {
	case DecisionCompleted:
		log.Debug().Str("object_id", plan.ID).Msg("Already completed, returning recorded id")
		return Result{Payment: p, ID: plan.ID, Decision: plan.Decision}, nil

	case DecisionFailed, DecisionSkipped:
		log.Debug().Msg("Nothing to send")
		return Result{Payment: p, Decision: plan.Decision}, nil

	case DecisionRetry:
		log.Info().Str("idempotency_key", plan.Request.IdempotencyKey).Msg("Re-sending request with its original token")
		return e.send(ctx, p, *plan.Request, plan.Decision, log)
	}

	params, err := e.hooks.Params(ctx, p)
	if err != nil {
		return Result{Payment: p, Decision: plan.Decision}, fmt.Errorf("%s: build params: %w", e.hooks.Operation, err)
	}
	req := NewRequest(params)

	record, err := req.Interaction(e.hooks.RequestType)
	if err != nil {
		return Result{Payment: p, Decision: plan.Decision}, fmt.Errorf("%s: %w", e.hooks.Operation, err)
	}
	updated, err := e.payments.Update(ctx, p, []payment.UpdateAction{record})
	if err != nil {
		return Result{Payment: p, Decision: plan.Decision}, fmt.Errorf("%s: record request: %w", e.hooks.Operation, err)
	}

	log.Info().Str("idempotency_key", req.IdempotencyKey).Msg("Sending fresh request")
	return e.send(ctx, updated, req, plan.Decision, log)
}

func (e *Executor[T]) send(ctx context.Context, p *payment.Payment, req Request, decision Decision, log zerolog.Logger) (Result, error) {
	var outcome Outcome[T]
	if obj, err := e.hooks.Call(ctx, req); err != nil {
		outcome = Failed[T](req.IdempotencyKey, err)
	} else {
		outcome = Succeeded(req.IdempotencyKey, obj)
	}

	actions := outcome.Actions(func(obj T) []payment.UpdateAction {
		success := payment.AddInterfaceInteraction{
			TypeKey: e.hooks.SuccessType,
			Fields: map[string]string{
				e.hooks.SuccessField:            e.hooks.ID(obj),
				interaction.FieldIdempotencyKey: req.IdempotencyKey,
			},
		}
		actions := []payment.UpdateAction{success}
		if e.hooks.Apply != nil {
			actions = append(actions, e.hooks.Apply(obj)...)
		}
		return actions
	})

	// The call may have failed because ctx expired; the outcome is still recorded.
	updated, err := e.payments.Update(context.WithoutCancel(ctx), p, actions)
	if err != nil {
		return Result{Payment: p, Decision: decision}, fmt.Errorf("%s: record outcome: %w", e.hooks.Operation, err)
	}

	res := Result{Payment: updated, Decision: decision}
	if obj, ok := outcome.Value(); ok {
		res.ID = e.hooks.ID(obj)
		log.Info().Str("object_id", res.ID).Str("idempotency_key", req.IdempotencyKey).Msg("Remote call succeeded")
		return res, nil
	}

	failure, _ := outcome.Failure()
	res.Failure = &failure
	log.Warn().
		Err(failure.Err).
		Str("idempotency_key", req.IdempotencyKey).
		Str("failure_kind", failure.Kind.String()).
		Msg("Remote call failed, outcome recorded")
	return res, nil
}

func (e *Executor[T]) observe(res Result, err error, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	op := e.hooks.Operation
	e.metrics.ExecutionDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if res.Decision != "" {
		e.metrics.ExecutionsTotal.WithLabelValues(op, string(res.Decision)).Inc()
	}
	if res.Failure != nil {
		e.metrics.RemoteFailures.WithLabelValues(op, res.Failure.Label()).Inc()
	}
	if domainErrors.IsConflict(err) {
		e.metrics.LedgerConflicts.WithLabelValues(op).Inc()
	}
}
