package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tradingview-alert-bot/internal/alert"
	"tradingview-alert-bot/internal/broker"
	"tradingview-alert-bot/internal/config"
	"tradingview-alert-bot/internal/ledger"
	"tradingview-alert-bot/internal/metrics"
	"tradingview-alert-bot/internal/models"
	"tradingview-alert-bot/internal/notify"
	"tradingview-alert-bot/internal/risk"
	"tradingview-alert-bot/internal/router"
	"tradingview-alert-bot/internal/store"
)

// SubmitResult is the webhook-facing outcome of an admission.
type SubmitResult struct {
	AlertID   string `json:"alert_id"`
	Duplicate bool   `json:"duplicate"`
}

// Engine drives each alert through the fixed stage order: admission, first
// risk check, human confirmation, second risk check, order routing, ledger
// record, notification. Alerts run independently; one failing never affects
// another.
type Engine struct {
	logger   *zap.Logger
	cfg      *config.Config
	store    store.Storage
	ledger   *ledger.Ledger
	gate     *risk.Gate
	broker   *broker.Broker
	router   *router.Router
	notifier notify.Notifier

	StartTime time.Time

	ctx context.Context
	wg  sync.WaitGroup
}

// NewEngine wires the pipeline components together.
func NewEngine(logger *zap.Logger, cfg *config.Config, st store.Storage, led *ledger.Ledger, gate *risk.Gate, brk *broker.Broker, rtr *router.Router, notifier notify.Notifier) *Engine {
	return &Engine{
		logger:    logger.Named("pipeline"),
		cfg:       cfg,
		store:     st,
		ledger:    led,
		gate:      gate,
		broker:    brk,
		router:    rtr,
		notifier:  notifier,
		StartTime: time.Now(),
	}
}

// Start binds the engine to its lifecycle context. Alert goroutines spawned
// by Submit observe this context, not the inbound request's.
func (e *Engine) Start(ctx context.Context) {
	e.ctx = ctx
	e.logger.Info("Pipeline engine started",
		zap.Bool("paper_mode", e.router.PaperMode()),
		zap.Float64("drawdown_percent", e.cfg.Trading.DrawdownPercent),
	)
}

// Wait blocks until all in-flight alert lifecycles finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Router exposes the order router for status reporting.
func (e *Engine) Router() *router.Router { return e.router }

// Ledger exposes the ledger for status reporting.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Config exposes the loaded configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// Submit admits a validated payload. A duplicate fingerprint returns the
// original alert id with no side effects. New alerts start their lifecycle
// on a dedicated goroutine and the call returns immediately.
func (e *Engine) Submit(raw []byte, p *alert.Payload) (*SubmitResult, error) {
	p.Normalize()
	fingerprint := alert.Fingerprint(p)

	rec, isNew, err := e.store.Admit(e.ctx, fingerprint, raw, p)
	if err != nil {
		metrics.AlertsAdmitted.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if !isNew {
		metrics.AlertsAdmitted.WithLabelValues("duplicate").Inc()
		e.logger.Info("Duplicate alert ignored",
			zap.String("alert_id", rec.AlertID),
			zap.String("fingerprint", fingerprint),
		)
		return &SubmitResult{AlertID: rec.AlertID, Duplicate: true}, nil
	}

	metrics.AlertsAdmitted.WithLabelValues("admitted").Inc()
	e.logger.Info("Alert admitted",
		zap.String("alert_id", rec.AlertID),
		zap.String("symbol", rec.Symbol),
		zap.String("side", rec.Side),
	)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(rec)
	}()

	return &SubmitResult{AlertID: rec.AlertID}, nil
}

// Decide forwards an operator decision to the confirmation broker. When the
// broker no longer tracks the alert the durable record decides the answer: a
// settled alert reports "already decided" instead of silently succeeding
// twice.
func (e *Engine) Decide(alertID string, confirm bool) broker.Resolution {
	d := broker.DecisionCancelled
	if confirm {
		d = broker.DecisionConfirmed
	}
	res := e.broker.Resolve(alertID, d)
	if res != broker.ResolutionUnknownAlert {
		return res
	}
	rec, err := e.store.GetByAlertID(e.ctx, alertID)
	if err != nil {
		return broker.ResolutionUnknownAlert
	}
	if rec.IsTerminal() || rec.Status == models.AlertStatusConfirmed {
		return broker.ResolutionAlreadyDecided
	}
	return broker.ResolutionUnknownAlert
}

// run executes one alert's lifecycle end to end.
func (e *Engine) run(a *models.Alert) {
	l := e.logger.With(zap.String("alert_id", a.AlertID), zap.String("symbol", a.Symbol))

	// First risk check, before spending a human decision on a dead alert.
	state, err := e.accountState()
	if err != nil {
		e.settle(a, models.AlertStatusError, fmt.Sprintf("account state read failed: %v", err), nil)
		return
	}
	size, block := e.gate.CheckAndSize(a, state)
	if block != nil {
		l.Warn("Alert blocked before confirmation", zap.String("reason", block.Reason))
		e.settle(a, models.AlertStatusBlocked, block.Reason, nil)
		return
	}

	// Open the decision surface before the operator hears about the alert,
	// so a decision racing the notification lands instead of getting a 404.
	e.broker.Register(a.AlertID)
	metrics.PendingDecisions.Set(float64(e.broker.Pending()))

	if err := e.notifier.NotifyPending(e.ctx, a, size.Units); err != nil {
		l.Warn("Pending notification failed, alert still awaits decision", zap.Error(err))
	}

	decision := e.broker.Await(e.ctx, a.AlertID)
	metrics.PendingDecisions.Set(float64(e.broker.Pending()))

	switch decision {
	case broker.DecisionCancelled:
		e.settle(a, models.AlertStatusCancelled, "", nil)
		return
	case broker.DecisionExpired:
		l.Info("Alert expired without a decision")
		e.settle(a, models.AlertStatusExpired, "", nil)
		return
	}

	if err := e.store.UpdateStatus(e.ctx, a.AlertID, models.AlertStatusConfirmed, ""); err != nil {
		l.Error("Failed to mark alert confirmed", zap.Error(err))
		e.settle(a, models.AlertStatusError, fmt.Sprintf("status update failed: %v", err), nil)
		return
	}
	a.Status = models.AlertStatusConfirmed

	// Second risk check: drawdown state may have moved while the human
	// decided. A block here cancels the alert even though the first check
	// passed.
	state, err = e.accountState()
	if err != nil {
		e.settle(a, models.AlertStatusError, fmt.Sprintf("account state read failed: %v", err), nil)
		return
	}
	size, block = e.gate.CheckAndSize(a, state)
	if block != nil {
		l.Warn("Alert blocked after confirmation", zap.String("reason", block.Reason))
		e.settle(a, models.AlertStatusBlocked, block.Reason, nil)
		return
	}

	// Once dispatch begins the alert's fate belongs to the venue response.
	trade, execErr := e.router.Execute(e.ctx, a, size)
	if trade != nil {
		if err := e.ledger.RecordTrade(e.ctx, trade); err != nil {
			l.Error("Failed to record trade", zap.Error(err))
		}
		metrics.OrdersRouted.WithLabelValues(trade.Venue, trade.Status).Inc()
	}

	if execErr != nil {
		e.settle(a, models.AlertStatusError, execErr.Error(), trade)
		return
	}
	e.settle(a, models.AlertStatusExecuted, "", trade)
}

// settle moves the alert to its terminal status and emits exactly one
// outcome notification. A transition refused because the alert already
// settled stays silent so that no terminal state notifies twice.
func (e *Engine) settle(a *models.Alert, status, reason string, trade *models.Trade) {
	if err := e.store.UpdateStatus(e.ctx, a.AlertID, status, reason); err != nil {
		if errors.Is(err, store.ErrTerminalState) {
			e.logger.Debug("Alert already settled", zap.String("alert_id", a.AlertID))
			return
		}
		e.logger.Error("Failed to persist terminal status",
			zap.String("alert_id", a.AlertID),
			zap.String("status", status),
			zap.Error(err),
		)
	}
	a.Status = status
	a.BlockReason = reason

	metrics.AlertsSettled.WithLabelValues(status).Inc()
	if err := e.notifier.NotifyOutcome(e.ctx, a, trade); err != nil {
		e.logger.Warn("Outcome notification failed",
			zap.String("alert_id", a.AlertID),
			zap.Error(err),
		)
	}
}

// accountState assembles the freshest account view for a gate invocation.
func (e *Engine) accountState() (risk.AccountState, error) {
	pnl, err := e.ledger.DailyRealizedPnL(e.ctx, e.ledger.Today())
	if err != nil {
		return risk.AccountState{}, err
	}
	metrics.DailyRealizedPnL.Set(pnl)

	return risk.AccountState{
		Equity:                e.cfg.Trading.Equity,
		RiskFraction:          e.cfg.Trading.RiskPercent / 100,
		DrawdownLimitFraction: e.cfg.Trading.DrawdownPercent / 100,
		DailyRealizedPnL:      pnl,
	}, nil
}
