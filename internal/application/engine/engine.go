package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/parimut/internal/domain"
	"github.com/alejandrodnm/parimut/internal/ports"
)

// Engine es el motor de settlement: valida precondiciones contra los
// registros, calcula con la aritmética pura del dominio y le ordena al
// ledger la mutación atómica. No tiene estado propio ni threads — cada
// operación es una transacción del caller, aplicada entera o nada.
type Engine struct {
	ledger ports.Ledger
	clock  ports.Clock
	sinks  []ports.EventSink
}

// New crea el motor. Los sinks reciben los eventos confirmados; un sink
// que falla se loguea y no afecta a la operación.
func New(ledger ports.Ledger, clock ports.Clock, sinks ...ports.EventSink) *Engine {
	return &Engine{ledger: ledger, clock: clock, sinks: sinks}
}

// CreateMarketRequest son los parámetros de creación de un mercado.
type CreateMarketRequest struct {
	Question  string
	Authority string
	Resolver  string
	CloseTime time.Time
	FeeBps    uint32
}

// CreateMarket valida los parámetros y persiste el mercado nuevo con sus
// tres vaults a cero.
func (e *Engine) CreateMarket(ctx context.Context, req CreateMarketRequest) (domain.Market, error) {
	m, err := domain.NewMarket(uuid.NewString(), req.Question, req.Authority,
		req.Resolver, req.CloseTime, req.FeeBps, e.clock.Now())
	if err != nil {
		return domain.Market{}, fmt.Errorf("engine.CreateMarket: %w", err)
	}

	if err := e.ledger.CreateMarket(ctx, m); err != nil {
		return domain.Market{}, fmt.Errorf("engine.CreateMarket: %w", err)
	}

	slog.Info("market created",
		"market", m.ID,
		"close_time", m.CloseTime,
		"fee_bps", m.FeeBps,
		"resolver", m.Resolver,
	)
	return m, nil
}

// Deposit acredita valor externo en la cuenta de un principal.
func (e *Engine) Deposit(ctx context.Context, owner string, amount uint64) error {
	if owner == "" || amount == 0 {
		return fmt.Errorf("engine.Deposit: empty owner or zero amount: %w", domain.ErrInvalidInput)
	}
	if err := e.ledger.Deposit(ctx, owner, amount); err != nil {
		return fmt.Errorf("engine.Deposit: %w", err)
	}
	return nil
}

// Stake apuesta amount al lado dado. Crea la posición del staker en el
// primer stake (lazy init) y acumula en los siguientes; las posiciones
// YES y NO de un mismo owner nunca netean.
func (e *Engine) Stake(ctx context.Context, marketID string, side domain.Outcome, amount uint64, staker string) (domain.Position, error) {
	m, err := e.ledger.GetMarket(ctx, marketID)
	if err != nil {
		return domain.Position{}, fmt.Errorf("engine.Stake: %w", err)
	}

	if err := m.AcceptsStake(e.clock.Now()); err != nil {
		return domain.Position{}, fmt.Errorf("engine.Stake: %w", err)
	}
	if err := m.AddStake(side, amount); err != nil {
		return domain.Position{}, fmt.Errorf("engine.Stake: %w", err)
	}

	p, err := e.ledger.GetPosition(ctx, marketID, staker, side)
	if err != nil {
		if !isNotFound(err) {
			return domain.Position{}, fmt.Errorf("engine.Stake: %w", err)
		}
		p = domain.NewPosition(marketID, staker, side)
	}
	if err := p.Accumulate(amount); err != nil {
		return domain.Position{}, fmt.Errorf("engine.Stake: %w", err)
	}

	ev, err := e.ledger.ApplyStake(ctx, m, p, amount)
	if err != nil {
		return domain.Position{}, fmt.Errorf("engine.Stake: %w", err)
	}
	e.fanout(ctx, ev)

	slog.Debug("stake placed",
		"market", marketID,
		"owner", staker,
		"side", side.String(),
		"amount", amount,
		"position_total", p.Amount,
	)
	return p, nil
}

// CloseMarket cierra un mercado vencido. Permissionless.
func (e *Engine) CloseMarket(ctx context.Context, marketID string) error {
	m, err := e.ledger.GetMarket(ctx, marketID)
	if err != nil {
		return fmt.Errorf("engine.CloseMarket: %w", err)
	}
	if err := m.Close(e.clock.Now()); err != nil {
		return fmt.Errorf("engine.CloseMarket: %w", err)
	}
	if err := e.ledger.ApplyClose(ctx, m); err != nil {
		return fmt.Errorf("engine.CloseMarket: %w", err)
	}

	slog.Info("market closed", "market", marketID)
	return nil
}

// ResolveMarket fija el outcome. Solo el resolver; Unset resuelve como void.
func (e *Engine) ResolveMarket(ctx context.Context, marketID string, winner domain.Outcome, caller string) error {
	m, err := e.ledger.GetMarket(ctx, marketID)
	if err != nil {
		return fmt.Errorf("engine.ResolveMarket: %w", err)
	}
	if err := m.Resolve(winner, caller); err != nil {
		return fmt.Errorf("engine.ResolveMarket: %w", err)
	}

	ev, err := e.ledger.ApplyResolve(ctx, m)
	if err != nil {
		return fmt.Errorf("engine.ResolveMarket: %w", err)
	}
	e.fanout(ctx, ev)

	slog.Info("market resolved", "market", marketID, "winner", winner.String())
	return nil
}

// Claim liquida la posición (marketID, caller, side): payout proporcional
// si el lado ganó, reembolso exacto si la resolución fue void. Exactamente
// una vez por posición.
func (e *Engine) Claim(ctx context.Context, marketID string, side domain.Outcome, caller string) (domain.Settlement, error) {
	m, err := e.ledger.GetMarket(ctx, marketID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("engine.Claim: %w", err)
	}
	p, err := e.ledger.GetPosition(ctx, marketID, caller, side)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("engine.Claim: %w", err)
	}

	if err := p.Authorize(caller, m.ID); err != nil {
		return domain.Settlement{}, fmt.Errorf("engine.Claim: %w", err)
	}
	s, err := domain.Settle(m, p)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("engine.Claim: %w", err)
	}

	ev, err := e.ledger.ApplyClaim(ctx, m, p, s)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("engine.Claim: %w", err)
	}
	e.fanout(ctx, ev)

	slog.Info("position claimed",
		"market", marketID,
		"owner", caller,
		"payout", s.Payout,
		"fee", s.Fee,
		"refund", s.Refund,
	)
	return s, nil
}

// WithdrawFee retira fees acumulados hacia la authority. Sin gate de ciclo
// de vida: el fee vault solo recibe valor vía claims decisivos, así que una
// retirada prematura falla por saldo, no por estado.
func (e *Engine) WithdrawFee(ctx context.Context, marketID string, amount uint64, caller string) error {
	m, err := e.ledger.GetMarket(ctx, marketID)
	if err != nil {
		return fmt.Errorf("engine.WithdrawFee: %w", err)
	}
	if caller != m.Authority {
		return fmt.Errorf("engine.WithdrawFee: caller %q is not the authority: %w", caller, domain.ErrUnauthorized)
	}
	if amount == 0 {
		return fmt.Errorf("engine.WithdrawFee: zero amount: %w", domain.ErrInvalidInput)
	}

	if err := e.ledger.WithdrawFee(ctx, marketID, m.Authority, amount); err != nil {
		return fmt.Errorf("engine.WithdrawFee: %w", err)
	}

	slog.Info("fees withdrawn", "market", marketID, "amount", amount)
	return nil
}

// GetMarket devuelve el mercado por ID.
func (e *Engine) GetMarket(ctx context.Context, marketID string) (domain.Market, error) {
	return e.ledger.GetMarket(ctx, marketID)
}

// ListMarkets devuelve todos los mercados.
func (e *Engine) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	return e.ledger.ListMarkets(ctx)
}

// Events devuelve el log de un mercado a partir del cursor dado.
func (e *Engine) Events(ctx context.Context, marketID string, afterSeq int64) ([]domain.Event, error) {
	return e.ledger.Events(ctx, marketID, afterSeq)
}

// fanout entrega el evento confirmado a los sinks. Best-effort: el log
// durable ya está en el ledger.
func (e *Engine) fanout(ctx context.Context, ev domain.Event) {
	for _, sink := range e.sinks {
		if err := sink.Emit(ctx, ev); err != nil {
			slog.Warn("event sink failed", "kind", ev.Kind, "seq", ev.Seq, "err", err)
		}
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
