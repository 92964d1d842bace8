package storage_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alejandrodnm/parimut/internal/adapters/storage"
	"github.com/alejandrodnm/parimut/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newLedger(t *testing.T) *storage.SQLiteLedger {
	t.Helper()
	l, err := storage.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func makeMarket(t *testing.T, id string) domain.Market {
	t.Helper()
	m, err := domain.NewMarket(id, "Will X happen?", "alice", "oracle",
		baseTime.Add(time.Hour), 500, baseTime)
	require.NoError(t, err)
	return m
}

func TestSQLiteLedger_CreateAndGetMarket(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	m := makeMarket(t, "mkt-1")
	require.NoError(t, l.CreateMarket(ctx, m))

	got, err := l.GetMarket(ctx, "mkt-1")
	require.NoError(t, err)
	assert.Equal(t, m.Question, got.Question)
	assert.Equal(t, domain.StatusOpen, got.Status)
	assert.Equal(t, uint32(500), got.FeeBps)
	assert.True(t, got.CloseTime.Equal(m.CloseTime))

	// Los tres vaults nacen a cero
	for _, role := range []domain.VaultRole{domain.VaultYes, domain.VaultNo, domain.VaultFee} {
		balance, err := l.VaultBalance(ctx, "mkt-1", role)
		require.NoError(t, err)
		assert.Zero(t, balance)
	}

	// Duplicado
	err = l.CreateMarket(ctx, m)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	// Inexistente
	_, err = l.GetMarket(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteLedger_DepositAndBalance(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	balance, err := l.AccountBalance(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, balance)

	require.NoError(t, l.Deposit(ctx, "bob", 300_000))
	require.NoError(t, l.Deposit(ctx, "bob", 200_000))

	balance, err = l.AccountBalance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), balance)
}

func applyStake(t *testing.T, l *storage.SQLiteLedger, m *domain.Market, owner string, side domain.Outcome, amount uint64) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, m.AddStake(side, amount))
	p, err := l.GetPosition(ctx, m.ID, owner, side)
	if err != nil {
		require.ErrorIs(t, err, domain.ErrNotFound)
		p = domain.NewPosition(m.ID, owner, side)
	}
	require.NoError(t, p.Accumulate(amount))

	ev, err := l.ApplyStake(ctx, *m, p, amount)
	require.NoError(t, err)
	assert.Equal(t, domain.EventPlaced, ev.Kind)
	assert.Positive(t, ev.Seq)
}

func TestSQLiteLedger_ApplyStake(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	m := makeMarket(t, "mkt-1")
	require.NoError(t, l.CreateMarket(ctx, m))
	require.NoError(t, l.Deposit(ctx, "bob", 1_000_000))

	applyStake(t, l, &m, "bob", domain.OutcomeYes, 300_000)
	applyStake(t, l, &m, "bob", domain.OutcomeYes, 200_000)
	applyStake(t, l, &m, "bob", domain.OutcomeNo, 100_000)

	// El valor se movió cuenta → vaults
	balance, err := l.AccountBalance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(400_000), balance)

	yes, err := l.VaultBalance(ctx, "mkt-1", domain.VaultYes)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), yes)

	no, err := l.VaultBalance(ctx, "mkt-1", domain.VaultNo)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), no)

	// La posición YES acumuló, la NO es independiente
	p, err := l.GetPosition(ctx, "mkt-1", "bob", domain.OutcomeYes)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), p.Amount)
	assert.False(t, p.Claimed)

	p, err = l.GetPosition(ctx, "mkt-1", "bob", domain.OutcomeNo)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), p.Amount)

	// Los totales persistieron
	got, err := l.GetMarket(ctx, "mkt-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), got.TotalYes)
	assert.Equal(t, uint64(100_000), got.TotalNo)
}

func TestSQLiteLedger_ApplyStake_InsufficientFunds(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	m := makeMarket(t, "mkt-1")
	require.NoError(t, l.CreateMarket(ctx, m))
	require.NoError(t, l.Deposit(ctx, "bob", 100_000))

	require.NoError(t, m.AddStake(domain.OutcomeYes, 200_000))
	p := domain.NewPosition(m.ID, "bob", domain.OutcomeYes)
	require.NoError(t, p.Accumulate(200_000))

	_, err := l.ApplyStake(ctx, m, p, 200_000)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// Rollback completo: nada se movió, no hay evento
	balance, err := l.AccountBalance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), balance)

	events, err := l.Events(ctx, "mkt-1", 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSQLiteLedger_ApplyStake_StaleSnapshotsAccumulate(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	m := makeMarket(t, "mkt-1")
	require.NoError(t, l.CreateMarket(ctx, m))
	require.NoError(t, l.Deposit(ctx, "bob", 400_000))

	// Dos stakes aplicados desde la MISMA lectura del mercado y la posición,
	// sin releer entre medias: la acumulación es relativa dentro de la
	// transacción, así que el segundo no pisa el incremento del primero.
	stale := m
	p := domain.NewPosition(m.ID, "bob", domain.OutcomeYes)
	require.NoError(t, p.Accumulate(100_000))

	_, err := l.ApplyStake(ctx, stale, p, 100_000)
	require.NoError(t, err)
	_, err = l.ApplyStake(ctx, stale, p, 100_000)
	require.NoError(t, err)

	got, err := l.GetMarket(ctx, "mkt-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(200_000), got.TotalYes)

	pos, err := l.GetPosition(ctx, "mkt-1", "bob", domain.OutcomeYes)
	require.NoError(t, err)
	assert.Equal(t, uint64(200_000), pos.Amount)

	yes, err := l.VaultBalance(ctx, "mkt-1", domain.VaultYes)
	require.NoError(t, err)
	assert.Equal(t, uint64(200_000), yes, "totales y vault no pueden desincronizarse")
}

func TestSQLiteLedger_ApplyStake_TotalsCeiling(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	m := makeMarket(t, "mkt-1")
	require.NoError(t, l.CreateMarket(ctx, m))
	require.NoError(t, l.Deposit(ctx, "bob", uint64(math.MaxInt64)))
	require.NoError(t, l.Deposit(ctx, "carol", domain.MinStake))

	p := domain.NewPosition(m.ID, "bob", domain.OutcomeYes)
	require.NoError(t, p.Accumulate(uint64(math.MaxInt64)))
	_, err := l.ApplyStake(ctx, m, p, uint64(math.MaxInt64))
	require.NoError(t, err)

	// El siguiente incremento excedería el techo de la columna: el guard
	// dentro del UPDATE corta y toda la transacción hace rollback.
	p2 := domain.NewPosition(m.ID, "carol", domain.OutcomeYes)
	require.NoError(t, p2.Accumulate(domain.MinStake))
	_, err = l.ApplyStake(ctx, m, p2, domain.MinStake)
	assert.ErrorIs(t, err, domain.ErrOverflow)

	balance, err := l.AccountBalance(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, uint64(domain.MinStake), balance)
}

func TestSQLiteLedger_ApplyClose_StatusGuard(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	m := makeMarket(t, "mkt-1")
	require.NoError(t, l.CreateMarket(ctx, m))
	require.NoError(t, m.Close(baseTime.Add(2*time.Hour)))

	require.NoError(t, l.ApplyClose(ctx, m))

	// Segunda aplicación del mismo registro cerrado: el UPDATE condicional
	// no toca filas — dos closes en carrera no pueden tener éxito ambos.
	err := l.ApplyClose(ctx, m)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	require.NoError(t, m.Resolve(domain.OutcomeYes, "oracle"))
	_, err = l.ApplyResolve(ctx, m)
	require.NoError(t, err)

	_, err = l.ApplyResolve(ctx, m)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	// La resolución perdedora de la carrera no dejó evento
	events, err := l.Events(ctx, "mkt-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventResolved, events[0].Kind)
}

func TestSQLiteLedger_ApplyClaim_DoubleClaimGuard(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	m := makeMarket(t, "mkt-1")
	require.NoError(t, l.CreateMarket(ctx, m))
	require.NoError(t, l.Deposit(ctx, "bob", 500_000))
	applyStake(t, l, &m, "bob", domain.OutcomeYes, 500_000)

	require.NoError(t, m.Close(baseTime.Add(2*time.Hour)))
	require.NoError(t, l.ApplyClose(ctx, m))
	require.NoError(t, m.Resolve(domain.OutcomeYes, "oracle"))
	_, err := l.ApplyResolve(ctx, m)
	require.NoError(t, err)

	p, err := l.GetPosition(ctx, "mkt-1", "bob", domain.OutcomeYes)
	require.NoError(t, err)
	s, err := domain.Settle(m, p)
	require.NoError(t, err)

	ev, err := l.ApplyClaim(ctx, m, p, s)
	require.NoError(t, err)
	assert.Equal(t, domain.EventClaimed, ev.Kind)
	assert.Equal(t, s.Payout, ev.Amount)

	// Segundo claim contra la misma posición: el guard transaccional corta
	_, err = l.ApplyClaim(ctx, m, p, s)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	balance, err := l.AccountBalance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, s.Payout, balance)
}

func TestSQLiteLedger_ApplyClaim_RefundAnyVault(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	m := makeMarket(t, "mkt-1")
	require.NoError(t, l.CreateMarket(ctx, m))
	require.NoError(t, l.Deposit(ctx, "bob", 100_000))
	require.NoError(t, l.Deposit(ctx, "carol", 400_000))

	applyStake(t, l, &m, "bob", domain.OutcomeYes, 100_000)
	applyStake(t, l, &m, "carol", domain.OutcomeNo, 400_000)

	require.NoError(t, m.Close(baseTime.Add(2*time.Hour)))
	require.NoError(t, l.ApplyClose(ctx, m))
	require.NoError(t, m.Resolve(domain.OutcomeUnset, "oracle"))
	_, err := l.ApplyResolve(ctx, m)
	require.NoError(t, err)

	// El reembolso de carol (400k) no cabe en el vault YES (100k):
	// sale del vault NO, replicando el comportamiento de referencia.
	p, err := l.GetPosition(ctx, "mkt-1", "carol", domain.OutcomeNo)
	require.NoError(t, err)
	s, err := domain.Settle(m, p)
	require.NoError(t, err)
	require.True(t, s.Refund)

	_, err = l.ApplyClaim(ctx, m, p, s)
	require.NoError(t, err)

	no, err := l.VaultBalance(ctx, "mkt-1", domain.VaultNo)
	require.NoError(t, err)
	assert.Zero(t, no)

	yes, err := l.VaultBalance(ctx, "mkt-1", domain.VaultYes)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), yes)

	// El reembolso de bob (100k) sí cabe en el YES y sale de ahí.
	p, err = l.GetPosition(ctx, "mkt-1", "bob", domain.OutcomeYes)
	require.NoError(t, err)
	s, err = domain.Settle(m, p)
	require.NoError(t, err)

	_, err = l.ApplyClaim(ctx, m, p, s)
	require.NoError(t, err)

	yes, err = l.VaultBalance(ctx, "mkt-1", domain.VaultYes)
	require.NoError(t, err)
	assert.Zero(t, yes)
}

func TestSQLiteLedger_WithdrawFee(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	m := makeMarket(t, "mkt-1")
	require.NoError(t, l.CreateMarket(ctx, m))

	// Fee vault vacío: la retirada falla sin mover nada
	err := l.WithdrawFee(ctx, "mkt-1", "alice", 1_000)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestSQLiteLedger_EventsOrderedAndCursored(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	m := makeMarket(t, "mkt-1")
	require.NoError(t, l.CreateMarket(ctx, m))
	require.NoError(t, l.Deposit(ctx, "bob", 1_000_000))

	applyStake(t, l, &m, "bob", domain.OutcomeYes, 100_000)
	applyStake(t, l, &m, "bob", domain.OutcomeYes, 100_000)
	applyStake(t, l, &m, "bob", domain.OutcomeNo, 100_000)

	events, err := l.Events(ctx, "mkt-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Less(t, events[0].Seq, events[1].Seq)
	assert.Less(t, events[1].Seq, events[2].Seq)

	// Los timestamps persisten y se recuperan, nunca el zero value
	for _, ev := range events {
		assert.False(t, ev.At.IsZero())
		assert.WithinDuration(t, time.Now().UTC(), ev.At, time.Minute)
	}

	// Cursor: solo lo posterior
	tail, err := l.Events(ctx, "mkt-1", events[1].Seq)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, events[2].Seq, tail[0].Seq)
}
