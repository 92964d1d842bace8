package domain

import (
	"fmt"
	"math/bits"
	"time"
)

// Límites del protocolo. Se fijan al crear el mercado y nunca cambian después.
const (
	// MaxQuestionLen es la longitud máxima de la pregunta del mercado.
	MaxQuestionLen = 160
	// MaxFeeBps es el fee máximo permitido: 1000 bps = 10%.
	MaxFeeBps = 1000
	// MinStake es la apuesta mínima en unidades nativas. Evita que la
	// aritmética de payout por unidad degenere con importes minúsculos.
	MinStake = 50_000
	// MinCloseMargin es el margen mínimo entre la creación y el cierre.
	MinCloseMargin = 60 * time.Second
)

// Status es el estado del ciclo de vida de un mercado.
// Transiciones estrictamente hacia delante: Open → Closed → Resolved.
type Status uint8

const (
	StatusOpen Status = iota
	StatusClosed
	StatusResolved
)

// String devuelve el nombre legible del estado.
func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusResolved:
		return "resolved"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Outcome es uno de los dos lados del mercado, o Unset.
// Antes de resolver, Unset no significa nada; después de resolver,
// Unset es una resolución válida: void/no contest → modo reembolso.
type Outcome uint8

const (
	OutcomeUnset Outcome = iota
	OutcomeYes
	OutcomeNo
)

// String devuelve el nombre legible del outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeUnset:
		return "unset"
	case OutcomeYes:
		return "yes"
	case OutcomeNo:
		return "no"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// IsSide devuelve true si el outcome es un lado apostable (Yes o No).
func (o Outcome) IsSide() bool {
	return o == OutcomeYes || o == OutcomeNo
}

// SideIndex devuelve el índice determinista del lado: 1 = Yes, 2 = No.
// Se usa en la derivación de direcciones de posiciones.
func (o Outcome) SideIndex() uint8 {
	return uint8(o)
}

// ParseOutcome convierte un string ("yes"|"no"|"unset") en Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "yes":
		return OutcomeYes, nil
	case "no":
		return OutcomeNo, nil
	case "unset", "void":
		return OutcomeUnset, nil
	}
	return OutcomeUnset, fmt.Errorf("domain.ParseOutcome: %q: %w", s, ErrInvalidInput)
}

// Market es un mercado de predicción binario con sus vaults, deadline y resolver.
//
// Invariantes:
//   - TotalYes/TotalNo igualan la suma de las posiciones no reembolsadas de cada lado.
//   - FeeBps es inmutable tras la creación.
//   - Winner solo tiene significado cuando Status == StatusResolved.
type Market struct {
	ID        string
	Question  string
	Authority string // único permiso: retirar fees
	Resolver  string // único permiso: fijar el outcome
	Status    Status
	FeeBps    uint32
	CloseTime time.Time
	Winner    Outcome
	TotalYes  uint64
	TotalNo   uint64
	CreatedAt time.Time
}

// NewMarket valida los parámetros de creación y devuelve el mercado en estado Open.
func NewMarket(id, question, authority, resolver string, closeTime time.Time, feeBps uint32, now time.Time) (Market, error) {
	if len(question) > MaxQuestionLen {
		return Market{}, fmt.Errorf("domain.NewMarket: question exceeds %d chars: %w", MaxQuestionLen, ErrInvalidInput)
	}
	if feeBps > MaxFeeBps {
		return Market{}, fmt.Errorf("domain.NewMarket: fee %d bps exceeds max %d: %w", feeBps, MaxFeeBps, ErrInvalidInput)
	}
	if !closeTime.After(now.Add(MinCloseMargin)) {
		return Market{}, fmt.Errorf("domain.NewMarket: close time must be at least %s ahead: %w", MinCloseMargin, ErrInvalidInput)
	}
	if resolver == "" {
		return Market{}, fmt.Errorf("domain.NewMarket: empty resolver: %w", ErrInvalidInput)
	}

	return Market{
		ID:        id,
		Question:  question,
		Authority: authority,
		Resolver:  resolver,
		Status:    StatusOpen,
		FeeBps:    feeBps,
		CloseTime: closeTime,
		Winner:    OutcomeUnset,
		CreatedAt: now,
	}, nil
}

// Close transiciona Open → Closed. Permissionless: cualquiera puede cerrar un
// mercado vencido. Una segunda llamada falla en vez de no-op — el caller debe
// interpretar ErrInvalidStatus como "ya cerrado".
func (m *Market) Close(now time.Time) error {
	if m.Status != StatusOpen {
		return fmt.Errorf("domain.Market.Close: status %s: %w", m.Status, ErrInvalidStatus)
	}
	if now.Before(m.CloseTime) {
		return fmt.Errorf("domain.Market.Close: closes at %s: %w", m.CloseTime.Format(time.RFC3339), ErrTooEarly)
	}
	m.Status = StatusClosed
	return nil
}

// Resolve transiciona Closed → Resolved y fija el winner. Solo el resolver.
// OutcomeUnset es una resolución válida (void) y activa el modo reembolso en claim.
func (m *Market) Resolve(winner Outcome, caller string) error {
	if m.Status != StatusClosed {
		return fmt.Errorf("domain.Market.Resolve: status %s: %w", m.Status, ErrInvalidStatus)
	}
	if caller != m.Resolver {
		return fmt.Errorf("domain.Market.Resolve: caller %q is not the resolver: %w", caller, ErrUnauthorized)
	}
	if winner > OutcomeNo {
		return fmt.Errorf("domain.Market.Resolve: winner %d: %w", winner, ErrInvalidInput)
	}
	m.Winner = winner
	m.Status = StatusResolved
	return nil
}

// AcceptsStake comprueba que el mercado admite apuestas en el instante dado.
// El gate temporal aplica aunque nadie haya llamado a Close todavía.
func (m *Market) AcceptsStake(now time.Time) error {
	if m.Status != StatusOpen {
		return fmt.Errorf("domain.Market.AcceptsStake: status %s: %w", m.Status, ErrInvalidStatus)
	}
	if !now.Before(m.CloseTime) {
		return fmt.Errorf("domain.Market.AcceptsStake: past close time: %w", ErrExpired)
	}
	return nil
}

// AddStake valida la apuesta e incrementa el total del lado correspondiente.
func (m *Market) AddStake(side Outcome, amount uint64) error {
	if !side.IsSide() {
		return fmt.Errorf("domain.Market.AddStake: side %s: %w", side, ErrInvalidInput)
	}
	if amount < MinStake {
		return fmt.Errorf("domain.Market.AddStake: amount %d below min stake %d: %w", amount, MinStake, ErrInvalidInput)
	}

	if side == OutcomeYes {
		total, err := CheckedAdd(m.TotalYes, amount)
		if err != nil {
			return fmt.Errorf("domain.Market.AddStake: total_yes: %w", err)
		}
		m.TotalYes = total
	} else {
		total, err := CheckedAdd(m.TotalNo, amount)
		if err != nil {
			return fmt.Errorf("domain.Market.AddStake: total_no: %w", err)
		}
		m.TotalNo = total
	}
	return nil
}

// SideTotal devuelve el total acumulado del lado dado.
func (m Market) SideTotal(side Outcome) uint64 {
	if side == OutcomeYes {
		return m.TotalYes
	}
	return m.TotalNo
}

// CheckedAdd suma dos uint64 fallando con ErrOverflow si el resultado no cabe.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// TruncateQuestion trunca la pregunta a maxLen caracteres para listados.
// Si la pregunta está vacía usa el prefijo del ID como fallback.
func TruncateQuestion(question, marketID string, maxLen int) string {
	q := question
	if q == "" {
		if len(marketID) > 8 {
			q = marketID[:8] + "..."
		} else {
			q = marketID
		}
	}
	if len(q) > maxLen {
		q = q[:maxLen-3] + "..."
	}
	return q
}
