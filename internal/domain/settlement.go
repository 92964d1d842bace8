package domain

import (
	"fmt"
	"math/big"
)

// feeDenominator convierte basis points en fracción: fee = pot × bps / 10_000.
const feeDenominator = 10_000

// Settlement es el resultado del cálculo de un claim sobre una posición.
//
// Para un outcome decisivo:
//
//	pot           = total_yes + total_no
//	fee_total     = ⌊pot × fee_bps / 10000⌋
//	distributable = pot − fee_total
//	Payout        = ⌊distributable × amount / winner_total⌋
//	Fee           = ⌊fee_total × amount / winner_total⌋
//
// Payout y Fee se calculan de forma independiente sobre el mismo ratio
// amount/winner_total, así que su suma nunca excede la parte proporcional
// del pot. El residuo de redondeo queda en el vault ganador como slack del
// protocolo — nunca negativo, nunca perdido.
//
// Para un outcome void (Unset), Refund es true y Payout == amount, sin fee.
type Settlement struct {
	Payout uint64
	Fee    uint64
	Refund bool
}

// Settle calcula el payout de una posición contra un mercado resuelto.
// Los productos intermedios se calculan con precisión arbitraria y se
// estrechan a uint64 con un cast comprobado (ErrOverflow si no cabe).
func Settle(m Market, p Position) (Settlement, error) {
	if m.Status != StatusResolved {
		return Settlement{}, fmt.Errorf("domain.Settle: status %s: %w", m.Status, ErrInvalidStatus)
	}

	// Void → reembolso exacto del stake, sin fee.
	if m.Winner == OutcomeUnset {
		return Settlement{Payout: p.Amount, Refund: true}, nil
	}

	if p.Side != m.Winner {
		return Settlement{}, fmt.Errorf("domain.Settle: position side %s, winner %s: %w", p.Side, m.Winner, ErrNotWinner)
	}

	pot := new(big.Int).Add(
		new(big.Int).SetUint64(m.TotalYes),
		new(big.Int).SetUint64(m.TotalNo),
	)
	if pot.Sign() == 0 {
		return Settlement{}, fmt.Errorf("domain.Settle: pot is zero: %w", ErrEmptyPot)
	}

	// Inalcanzable si pot > 0 y esta posición existe, pero el guard de la
	// división por cero se mantiene igualmente.
	winnerTotal := m.SideTotal(m.Winner)
	if winnerTotal == 0 {
		return Settlement{}, fmt.Errorf("domain.Settle: winner total is zero: %w", ErrEmptyPot)
	}

	feeTotal := new(big.Int).Mul(pot, big.NewInt(int64(m.FeeBps)))
	feeTotal.Quo(feeTotal, big.NewInt(feeDenominator))
	distributable := new(big.Int).Sub(pot, feeTotal)

	amount := new(big.Int).SetUint64(p.Amount)
	winner := new(big.Int).SetUint64(winnerTotal)

	payout, err := narrowQuotient(new(big.Int).Mul(distributable, amount), winner)
	if err != nil {
		return Settlement{}, fmt.Errorf("domain.Settle: payout: %w", err)
	}
	fee, err := narrowQuotient(new(big.Int).Mul(feeTotal, amount), winner)
	if err != nil {
		return Settlement{}, fmt.Errorf("domain.Settle: fee: %w", err)
	}

	return Settlement{Payout: payout, Fee: fee}, nil
}

// narrowQuotient divide con floor y estrecha el resultado a uint64.
func narrowQuotient(num, den *big.Int) (uint64, error) {
	q := num.Quo(num, den)
	if !q.IsUint64() {
		return 0, ErrOverflow
	}
	return q.Uint64(), nil
}
