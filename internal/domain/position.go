package domain

import "fmt"

// Position es la apuesta acumulada de un owner en un lado de un mercado.
// Clave lógica: (market, owner, side) — un owner puede tener posición YES y
// posición NO a la vez, cada una acumula por separado y nunca netean.
//
// Claimed es one-way: una vez true, la posición no vuelve a mover valor.
// Amount queda como histórico, no como saldo vivo.
type Position struct {
	MarketID string
	Owner    string
	Side     Outcome
	Amount   uint64
	Claimed  bool
}

// NewPosition crea la posición vacía de un primer stake (lazy init).
func NewPosition(marketID, owner string, side Outcome) Position {
	return Position{
		MarketID: marketID,
		Owner:    owner,
		Side:     side,
	}
}

// Accumulate suma un stake al acumulado de la posición.
func (p *Position) Accumulate(amount uint64) error {
	total, err := CheckedAdd(p.Amount, amount)
	if err != nil {
		return fmt.Errorf("domain.Position.Accumulate: %w", err)
	}
	p.Amount = total
	return nil
}

// Authorize valida los precondiciones de claim que dependen de la posición:
// no reclamada, caller == owner, y cross-check contra el mercado reclamado.
// El guard definitivo contra doble claim vive en la transacción del ledger;
// esto solo corta temprano la ruta obvia.
func (p Position) Authorize(caller, marketID string) error {
	if p.Claimed {
		return fmt.Errorf("domain.Position.Authorize: %w", ErrAlreadyClaimed)
	}
	if caller != p.Owner {
		return fmt.Errorf("domain.Position.Authorize: caller %q is not the owner: %w", caller, ErrUnauthorized)
	}
	if p.MarketID != marketID {
		return fmt.Errorf("domain.Position.Authorize: position belongs to market %s: %w", p.MarketID, ErrMismatch)
	}
	return nil
}
