package broker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Decision is the settled outcome of a confirmation round.
type Decision string

const (
	DecisionConfirmed Decision = "confirmed"
	DecisionCancelled Decision = "cancelled"
	DecisionExpired   Decision = "expired"
)

// Resolution reports what happened to a decision callback.
type Resolution string

const (
	ResolutionAccepted       Resolution = "accepted"
	ResolutionAlreadyDecided Resolution = "already_decided"
	ResolutionUnknownAlert   Resolution = "unknown_alert"
)

// pending tracks one alert awaiting a human decision. The sync.Once makes
// "first decision wins" hold no matter how callbacks and the expiry timer
// interleave.
type pending struct {
	once    sync.Once
	settled chan Decision
}

// Broker presents pending alerts to the operator and settles each to exactly
// one decision. Late or duplicate callbacks observe the settled state and
// take no further action.
type Broker struct {
	mu      sync.Mutex
	waiting map[string]*pending
	timeout time.Duration
	logger  *zap.Logger
}

// NewBroker creates a confirmation broker with the given decision timeout.
func NewBroker(timeout time.Duration, logger *zap.Logger) *Broker {
	return &Broker{
		waiting: make(map[string]*pending),
		timeout: timeout,
		logger:  logger.Named("confirmation-broker"),
	}
}

// Register opens the decision surface for the alert before anyone is told
// about it. A decision arriving between the operator notification and the
// matching Await call settles against this entry instead of being dropped.
func (b *Broker) Register(alertID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.waiting[alertID]; !ok {
		b.waiting[alertID] = &pending{settled: make(chan Decision, 1)}
	}
}

// Await blocks until the alert is confirmed, cancelled, or the timeout
// elapses. The returned decision is final; once Await returns the decision
// surface for this alert is disabled and late callbacks are no-ops.
func (b *Broker) Await(ctx context.Context, alertID string) Decision {
	b.Register(alertID)

	b.mu.Lock()
	p := b.waiting[alertID]
	b.mu.Unlock()

	timer := time.AfterFunc(b.timeout, func() {
		b.settle(alertID, p, DecisionExpired)
	})
	defer timer.Stop()
	defer b.remove(alertID)

	select {
	case d := <-p.settled:
		return d
	case <-ctx.Done():
		// Shutdown while awaiting: treat as cancelled so no order can fire.
		b.settle(alertID, p, DecisionCancelled)
		return <-p.settled
	}
}

// Resolve is the decision-surface callback. The first resolution for an
// alert wins; any later one answers idempotently without side effects.
func (b *Broker) Resolve(alertID string, d Decision) Resolution {
	b.mu.Lock()
	p, ok := b.waiting[alertID]
	b.mu.Unlock()

	if !ok {
		return ResolutionUnknownAlert
	}

	if b.settle(alertID, p, d) {
		return ResolutionAccepted
	}
	return ResolutionAlreadyDecided
}

// settle records the decision exactly once. The entry stays registered until
// Await consumes it, so a decision that lands before Await starts waiting is
// not lost; Await removes the entry on its way out so a late click cannot
// resurrect the alert. Returns true when this call won.
func (b *Broker) settle(alertID string, p *pending, d Decision) bool {
	won := false
	p.once.Do(func() {
		won = true
		p.settled <- d

		b.logger.Info("Alert decision settled",
			zap.String("alert_id", alertID),
			zap.String("decision", string(d)),
		)
	})
	return won
}

func (b *Broker) remove(alertID string) {
	b.mu.Lock()
	delete(b.waiting, alertID)
	b.mu.Unlock()
}

// Pending reports how many alerts are awaiting a decision.
func (b *Broker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.waiting)
}
