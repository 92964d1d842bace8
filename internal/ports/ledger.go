package ports

import (
	"context"

	"github.com/alejandrodnm/parimut/internal/domain"
)

// Ledger es el colaborador de almacenamiento durable del host: guarda
// mercados, posiciones, vaults y cuentas, y aplica la mutación de cada
// operación como una única transacción atómica (se aplica entera o nada).
type Ledger interface {
	// CreateMarket persiste el mercado y sus tres vaults a cero.
	CreateMarket(ctx context.Context, m domain.Market) error

	// GetMarket devuelve el mercado o domain.ErrNotFound.
	GetMarket(ctx context.Context, id string) (domain.Market, error)

	// ListMarkets devuelve todos los mercados, los más recientes primero.
	ListMarkets(ctx context.Context) ([]domain.Market, error)

	// GetPosition devuelve la posición (market, owner, side) o domain.ErrNotFound.
	GetPosition(ctx context.Context, marketID, owner string, side domain.Outcome) (domain.Position, error)

	// Deposit acredita valor externo en la cuenta de un principal.
	Deposit(ctx context.Context, owner string, amount uint64) error

	// AccountBalance devuelve el saldo de la cuenta (0 si no existe).
	AccountBalance(ctx context.Context, owner string) (uint64, error)

	// VaultBalance devuelve el saldo del vault del mercado y rol dados.
	VaultBalance(ctx context.Context, marketID string, role domain.VaultRole) (uint64, error)

	// ApplyStake mueve amount de la cuenta del staker al vault del lado,
	// acumula los totales del mercado y la posición de forma relativa
	// dentro de la transacción, y añade el evento Placed. Stakes
	// concurrentes sobre el mismo mercado nunca se pierden incrementos.
	ApplyStake(ctx context.Context, m domain.Market, p domain.Position, amount uint64) (domain.Event, error)

	// ApplyClose persiste la transición Open → Closed. Condicional sobre el
	// estado: domain.ErrInvalidStatus si otro close ganó la carrera.
	ApplyClose(ctx context.Context, m domain.Market) error

	// ApplyResolve persiste la transición Closed → Resolved (condicional,
	// como ApplyClose) y añade el evento Resolved. Si el outcome es
	// decisivo consolida el pot en el vault ganador; los claims
	// posteriores salen solo de ahí.
	ApplyResolve(ctx context.Context, m domain.Market) (domain.Event, error)

	// ApplyClaim marca la posición como reclamada (guard transaccional:
	// domain.ErrAlreadyClaimed si otro claim ganó la carrera), mueve el
	// payout al owner y el fee al fee vault, y añade el evento Claimed.
	// Para reembolsos (s.Refund) el valor sale del vault YES si cubre el
	// importe, si no del vault NO.
	ApplyClaim(ctx context.Context, m domain.Market, p domain.Position, s domain.Settlement) (domain.Event, error)

	// WithdrawFee mueve amount del fee vault a la cuenta de la authority.
	WithdrawFee(ctx context.Context, marketID, authority string, amount uint64) error

	// Events devuelve las entradas del log con seq > afterSeq, en orden.
	Events(ctx context.Context, marketID string, afterSeq int64) ([]domain.Event, error)

	// Close cierra la conexión al almacenamiento limpiamente.
	Close() error
}
