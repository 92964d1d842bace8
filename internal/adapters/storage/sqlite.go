package storage

// sqlite.go — ledger durable del protocolo.
//
// Estrategia:
//   - Una conexión única (SQLite es single-writer): cada operación del
//     settlement es UNA transacción SQL — se aplica entera o nada, que es
//     exactamente la atomicidad que el motor asume del host.
//   - `markets` y `positions` son los registros lógicos; `vaults` y
//     `accounts` custodian el valor; `events` es el log append-only.
//   - El guard contra doble claim es un UPDATE condicional sobre la fila
//     de la posición dentro de la misma transacción que mueve el valor.
//   - Ningún registro se borra: "destrucción" es lógica (claimed/status).

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/alejandrodnm/parimut/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Registro de mercado: configuración, totales y ciclo de vida
CREATE TABLE IF NOT EXISTS markets (
    id         TEXT PRIMARY KEY,
    question   TEXT    NOT NULL,
    authority  TEXT    NOT NULL,
    resolver   TEXT    NOT NULL,
    status     INTEGER NOT NULL DEFAULT 0,
    fee_bps    INTEGER NOT NULL DEFAULT 0,
    close_time TEXT    NOT NULL,
    winner     INTEGER NOT NULL DEFAULT 0,
    total_yes  INTEGER NOT NULL DEFAULT 0,
    total_no   INTEGER NOT NULL DEFAULT 0,
    created_at TEXT    NOT NULL
);

-- Una fila por (market, owner, side); addr es la dirección derivada
CREATE TABLE IF NOT EXISTS positions (
    addr      TEXT PRIMARY KEY,
    market_id TEXT    NOT NULL,
    owner     TEXT    NOT NULL,
    side      INTEGER NOT NULL,
    amount    INTEGER NOT NULL DEFAULT 0,
    claimed   INTEGER NOT NULL DEFAULT 0
);

-- Tres vaults por mercado: vault_yes, vault_no, fee_vault
CREATE TABLE IF NOT EXISTS vaults (
    addr      TEXT PRIMARY KEY,
    market_id TEXT    NOT NULL,
    role      INTEGER NOT NULL,
    balance   INTEGER NOT NULL DEFAULT 0
);

-- Cuentas de los principals (valor fuera de los vaults)
CREATE TABLE IF NOT EXISTS accounts (
    owner   TEXT PRIMARY KEY,
    balance INTEGER NOT NULL DEFAULT 0
);

-- Log append-only, ordenado por seq de emisión
CREATE TABLE IF NOT EXISTS events (
    seq       INTEGER PRIMARY KEY AUTOINCREMENT,
    market_id TEXT    NOT NULL,
    kind      TEXT    NOT NULL,
    owner     TEXT    NOT NULL DEFAULT '',
    side      INTEGER NOT NULL DEFAULT 0,
    amount    INTEGER NOT NULL DEFAULT 0,
    at        TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_market ON positions(market_id);
CREATE INDEX IF NOT EXISTS idx_vaults_market    ON vaults(market_id);
CREATE INDEX IF NOT EXISTS idx_events_market    ON events(market_id, seq);
`

// SQLiteLedger implementa ports.Ledger usando SQLite (pure Go, sin CGo).
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger abre (o crea) la base de datos en la ruta dada y aplica
// el schema.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteLedger: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteLedger: apply schema: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

// CreateMarket persiste el mercado y crea sus tres vaults a cero.
func (l *SQLiteLedger) CreateMarket(ctx context.Context, m domain.Market) error {
	totalYes, err := storeAmount(m.TotalYes)
	if err != nil {
		return fmt.Errorf("storage.CreateMarket: total_yes: %w", err)
	}
	totalNo, err := storeAmount(m.TotalNo)
	if err != nil {
		return fmt.Errorf("storage.CreateMarket: total_no: %w", err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.CreateMarket: begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM markets WHERE id = ?`, m.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("storage.CreateMarket: check %s: %w", m.ID, err)
	}
	if exists > 0 {
		return fmt.Errorf("storage.CreateMarket: market %s: %w", m.ID, domain.ErrAlreadyExists)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO markets
			(id, question, authority, resolver, status, fee_bps, close_time,
			 winner, total_yes, total_no, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Question, m.Authority, m.Resolver, m.Status, m.FeeBps,
		formatTime(m.CloseTime), m.Winner, totalYes, totalNo, formatTime(m.CreatedAt),
	); err != nil {
		return fmt.Errorf("storage.CreateMarket: insert %s: %w", m.ID, err)
	}

	for _, role := range []domain.VaultRole{domain.VaultYes, domain.VaultNo, domain.VaultFee} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vaults (addr, market_id, role, balance) VALUES (?, ?, ?, 0)`,
			domain.VaultAddress(role, m.ID), m.ID, role,
		); err != nil {
			return fmt.Errorf("storage.CreateMarket: init %s: %w", role, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.CreateMarket: commit: %w", err)
	}
	return nil
}

// GetMarket devuelve el mercado por ID.
func (l *SQLiteLedger) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, question, authority, resolver, status, fee_bps, close_time,
		       winner, total_yes, total_no, created_at
		FROM markets WHERE id = ?`, id)

	m, err := scanMarket(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Market{}, fmt.Errorf("storage.GetMarket: %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Market{}, fmt.Errorf("storage.GetMarket: %s: %w", id, err)
	}
	return m, nil
}

// ListMarkets devuelve todos los mercados, los más recientes primero.
func (l *SQLiteLedger) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, question, authority, resolver, status, fee_bps, close_time,
		       winner, total_yes, total_no, created_at
		FROM markets ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListMarkets: query: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("storage.ListMarkets: scan row: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// GetPosition devuelve la posición (market, owner, side).
func (l *SQLiteLedger) GetPosition(ctx context.Context, marketID, owner string, side domain.Outcome) (domain.Position, error) {
	addr := domain.PositionAddress(marketID, owner, side)

	var p domain.Position
	var amount int64
	var claimed int
	err := l.db.QueryRowContext(ctx,
		`SELECT market_id, owner, side, amount, claimed FROM positions WHERE addr = ?`, addr,
	).Scan(&p.MarketID, &p.Owner, &p.Side, &amount, &claimed)
	if err == sql.ErrNoRows {
		return domain.Position{}, fmt.Errorf("storage.GetPosition: %s: %w", addr, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("storage.GetPosition: %s: %w", addr, err)
	}

	p.Amount = uint64(amount)
	p.Claimed = claimed == 1
	return p, nil
}

// Deposit acredita valor externo en la cuenta del principal.
func (l *SQLiteLedger) Deposit(ctx context.Context, owner string, amount uint64) error {
	amt, err := storeAmount(amount)
	if err != nil {
		return fmt.Errorf("storage.Deposit: %w", err)
	}
	if _, err := l.db.ExecContext(ctx, `
		INSERT INTO accounts (owner, balance) VALUES (?, ?)
		ON CONFLICT(owner) DO UPDATE SET balance = balance + excluded.balance`,
		owner, amt,
	); err != nil {
		return fmt.Errorf("storage.Deposit: credit %s: %w", owner, err)
	}
	return nil
}

// AccountBalance devuelve el saldo de la cuenta, 0 si no existe.
func (l *SQLiteLedger) AccountBalance(ctx context.Context, owner string) (uint64, error) {
	var balance int64
	err := l.db.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT balance FROM accounts WHERE owner = ?), 0)`, owner,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("storage.AccountBalance: %s: %w", owner, err)
	}
	return uint64(balance), nil
}

// VaultBalance devuelve el saldo del vault del mercado y rol dados.
func (l *SQLiteLedger) VaultBalance(ctx context.Context, marketID string, role domain.VaultRole) (uint64, error) {
	addr := domain.VaultAddress(role, marketID)
	var balance int64
	err := l.db.QueryRowContext(ctx,
		`SELECT balance FROM vaults WHERE addr = ?`, addr,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("storage.VaultBalance: %s: %w", addr, domain.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("storage.VaultBalance: %s: %w", addr, err)
	}
	return uint64(balance), nil
}

// ApplyStake aplica en una transacción: débito de la cuenta del staker,
// crédito al vault del lado, acumulación de totales y posición, y evento
// Placed. Los totales y la posición se acumulan de forma RELATIVA en SQL
// (total = total + delta), no como valores absolutos leídos antes: dos
// stakes concurrentes nunca se pisan el incremento.
func (l *SQLiteLedger) ApplyStake(ctx context.Context, m domain.Market, p domain.Position, amount uint64) (domain.Event, error) {
	amt, err := storeAmount(amount)
	if err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyStake: amount: %w", err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyStake: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := debitAccount(ctx, tx, p.Owner, amt); err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyStake: %w", err)
	}

	// El techo de int64 se comprueba dentro del mismo UPDATE: si el total
	// acumulado no cabe, ninguna fila se toca y todo hace rollback. Va
	// antes del crédito al vault: el saldo del vault de un lado nunca
	// supera el total de ese lado, así que este guard lo cubre también.
	yesDelta, noDelta := amt, int64(0)
	if p.Side == domain.OutcomeNo {
		yesDelta, noDelta = 0, amt
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE markets SET total_yes = total_yes + ?, total_no = total_no + ?
		WHERE id = ? AND total_yes <= ? AND total_no <= ?`,
		yesDelta, noDelta, m.ID, math.MaxInt64-yesDelta, math.MaxInt64-noDelta)
	if err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyStake: accumulate totals: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyStake: accumulate totals: %w", err)
	} else if n == 0 {
		return domain.Event{}, fmt.Errorf("storage.ApplyStake: totals for %s: %w", m.ID, domain.ErrOverflow)
	}

	if err := creditVault(ctx, tx, domain.VaultAddress(domain.VaultForSide(p.Side), m.ID), amt); err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyStake: %w", err)
	}

	// Lazy init: primera apuesta crea la fila, las siguientes acumulan.
	res, err = tx.ExecContext(ctx, `
		INSERT INTO positions (addr, market_id, owner, side, amount, claimed)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT(addr) DO UPDATE SET amount = positions.amount + excluded.amount
		WHERE positions.amount <= ?`,
		domain.PositionAddress(m.ID, p.Owner, p.Side), m.ID, p.Owner, p.Side, amt,
		int64(math.MaxInt64)-amt,
	)
	if err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyStake: upsert position: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyStake: upsert position: %w", err)
	} else if n == 0 {
		return domain.Event{}, fmt.Errorf("storage.ApplyStake: position amount: %w", domain.ErrOverflow)
	}

	ev := domain.Event{
		MarketID: m.ID,
		Kind:     domain.EventPlaced,
		Owner:    p.Owner,
		Side:     p.Side,
		Amount:   amount,
		At:       time.Now().UTC(),
	}
	if ev.Seq, err = appendEvent(ctx, tx, ev, amt); err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyStake: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyStake: commit: %w", err)
	}
	return ev, nil
}

// ApplyClose persiste la transición Open → Closed. El UPDATE es condicional
// sobre el estado actual: si otro close ganó la carrera entre la lectura del
// engine y esta escritura, no toca filas y devuelve ErrInvalidStatus.
func (l *SQLiteLedger) ApplyClose(ctx context.Context, m domain.Market) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE markets SET status = ? WHERE id = ? AND status = ?`,
		m.Status, m.ID, domain.StatusOpen)
	if err != nil {
		return fmt.Errorf("storage.ApplyClose: %s: %w", m.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("storage.ApplyClose: %s: %w", m.ID, err)
	} else if n == 0 {
		return fmt.Errorf("storage.ApplyClose: %s: %w", m.ID, domain.ErrInvalidStatus)
	}
	return nil
}

// ApplyResolve persiste la transición Closed → Resolved y el evento Resolved.
//
// En un outcome decisivo consolida el pot: el saldo del vault perdedor pasa
// al vault ganador en la misma transacción. A partir de aquí todos los
// payouts y fees salen de un único vault, el perdedor queda a cero y nunca
// vuelve a moverse. En un void no se consolida nada: los reembolsos tiran
// de ambos vaults.
func (l *SQLiteLedger) ApplyResolve(ctx context.Context, m domain.Market) (domain.Event, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyResolve: begin tx: %w", err)
	}
	defer tx.Rollback()

	// Mismo guard condicional que ApplyClose: solo resuelve desde Closed.
	res, err := tx.ExecContext(ctx,
		`UPDATE markets SET status = ?, winner = ? WHERE id = ? AND status = ?`,
		m.Status, m.Winner, m.ID, domain.StatusClosed)
	if err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyResolve: update %s: %w", m.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyResolve: update %s: %w", m.ID, err)
	} else if n == 0 {
		return domain.Event{}, fmt.Errorf("storage.ApplyResolve: %s: %w", m.ID, domain.ErrInvalidStatus)
	}

	if m.Winner.IsSide() {
		loser := domain.OutcomeNo
		if m.Winner == domain.OutcomeNo {
			loser = domain.OutcomeYes
		}
		loserAddr := domain.VaultAddress(domain.VaultForSide(loser), m.ID)

		var loserBalance int64
		if err := tx.QueryRowContext(ctx,
			`SELECT balance FROM vaults WHERE addr = ?`, loserAddr,
		).Scan(&loserBalance); err != nil {
			return domain.Event{}, fmt.Errorf("storage.ApplyResolve: read vault: %w", err)
		}
		if loserBalance > 0 {
			if err := debitVault(ctx, tx, loserAddr, loserBalance); err != nil {
				return domain.Event{}, fmt.Errorf("storage.ApplyResolve: consolidate pot: %w", err)
			}
			winnerAddr := domain.VaultAddress(domain.VaultForSide(m.Winner), m.ID)
			if err := creditVault(ctx, tx, winnerAddr, loserBalance); err != nil {
				return domain.Event{}, fmt.Errorf("storage.ApplyResolve: consolidate pot: %w", err)
			}
		}
	}

	ev := domain.Event{
		MarketID: m.ID,
		Kind:     domain.EventResolved,
		Side:     m.Winner,
		At:       time.Now().UTC(),
	}
	if ev.Seq, err = appendEvent(ctx, tx, ev, 0); err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyResolve: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyResolve: commit: %w", err)
	}
	return ev, nil
}

// ApplyClaim ejecuta el claim completo en una transacción. El flip del flag
// claimed es el guard de single-writer: si otra transacción ya reclamó la
// posición, el UPDATE condicional no toca filas y todo hace rollback.
func (l *SQLiteLedger) ApplyClaim(ctx context.Context, m domain.Market, p domain.Position, s domain.Settlement) (domain.Event, error) {
	payout, err := storeAmount(s.Payout)
	if err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyClaim: payout: %w", err)
	}
	fee, err := storeAmount(s.Fee)
	if err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyClaim: fee: %w", err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyClaim: begin tx: %w", err)
	}
	defer tx.Rollback()

	addr := domain.PositionAddress(m.ID, p.Owner, p.Side)
	res, err := tx.ExecContext(ctx,
		`UPDATE positions SET claimed = 1 WHERE addr = ? AND claimed = 0`, addr)
	if err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyClaim: mark claimed: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyClaim: rows affected: %w", err)
	} else if n == 0 {
		return domain.Event{}, fmt.Errorf("storage.ApplyClaim: %s: %w", addr, domain.ErrAlreadyClaimed)
	}

	if s.Refund {
		// Comportamiento de referencia: el reembolso sale del vault YES si
		// puede cubrirlo, si no del NO. La conservación entre ambos vaults
		// garantiza que uno de los dos tiene los fondos.
		source := domain.VaultAddress(domain.VaultYes, m.ID)
		var yesBalance int64
		if err := tx.QueryRowContext(ctx,
			`SELECT balance FROM vaults WHERE addr = ?`, source,
		).Scan(&yesBalance); err != nil {
			return domain.Event{}, fmt.Errorf("storage.ApplyClaim: read vault: %w", err)
		}
		if yesBalance < payout {
			source = domain.VaultAddress(domain.VaultNo, m.ID)
		}
		if err := debitVault(ctx, tx, source, payout); err != nil {
			return domain.Event{}, fmt.Errorf("storage.ApplyClaim: refund: %w", err)
		}
		if err := creditAccount(ctx, tx, p.Owner, payout); err != nil {
			return domain.Event{}, fmt.Errorf("storage.ApplyClaim: refund: %w", err)
		}
	} else {
		// Decisivo: payout y fee salen solo del vault ganador; el vault
		// perdedor nunca se toca.
		source := domain.VaultAddress(domain.VaultForSide(m.Winner), m.ID)
		if err := debitVault(ctx, tx, source, payout); err != nil {
			return domain.Event{}, fmt.Errorf("storage.ApplyClaim: payout: %w", err)
		}
		if err := creditAccount(ctx, tx, p.Owner, payout); err != nil {
			return domain.Event{}, fmt.Errorf("storage.ApplyClaim: payout: %w", err)
		}
		if fee > 0 {
			if err := debitVault(ctx, tx, source, fee); err != nil {
				return domain.Event{}, fmt.Errorf("storage.ApplyClaim: fee: %w", err)
			}
			if err := creditVault(ctx, tx, domain.VaultAddress(domain.VaultFee, m.ID), fee); err != nil {
				return domain.Event{}, fmt.Errorf("storage.ApplyClaim: fee: %w", err)
			}
		}
	}

	ev := domain.Event{
		MarketID: m.ID,
		Kind:     domain.EventClaimed,
		Owner:    p.Owner,
		Side:     p.Side,
		Amount:   s.Payout,
		At:       time.Now().UTC(),
	}
	if ev.Seq, err = appendEvent(ctx, tx, ev, payout); err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyClaim: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Event{}, fmt.Errorf("storage.ApplyClaim: commit: %w", err)
	}
	return ev, nil
}

// WithdrawFee mueve amount del fee vault a la cuenta de la authority.
func (l *SQLiteLedger) WithdrawFee(ctx context.Context, marketID, authority string, amount uint64) error {
	amt, err := storeAmount(amount)
	if err != nil {
		return fmt.Errorf("storage.WithdrawFee: %w", err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.WithdrawFee: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := debitVault(ctx, tx, domain.VaultAddress(domain.VaultFee, marketID), amt); err != nil {
		return fmt.Errorf("storage.WithdrawFee: %w", err)
	}
	if err := creditAccount(ctx, tx, authority, amt); err != nil {
		return fmt.Errorf("storage.WithdrawFee: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.WithdrawFee: commit: %w", err)
	}
	return nil
}

// Events devuelve las entradas del log con seq > afterSeq, en orden.
func (l *SQLiteLedger) Events(ctx context.Context, marketID string, afterSeq int64) ([]domain.Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT seq, market_id, kind, owner, side, amount, at
		FROM events WHERE market_id = ? AND seq > ? ORDER BY seq`,
		marketID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("storage.Events: query: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var amount int64
		var at string
		if err := rows.Scan(&e.Seq, &e.MarketID, &e.Kind, &e.Owner, &e.Side, &amount, &at); err != nil {
			return nil, fmt.Errorf("storage.Events: scan row: %w", err)
		}
		e.Amount = uint64(amount)
		if e.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("storage.Events: parse at: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// --- helpers internos ---

// storeAmount estrecha un importe a int64 (columna INTEGER de SQLite).
func storeAmount(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, domain.ErrOverflow
	}
	return int64(v), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// scanMarket mapea una fila de markets a domain.Market.
func scanMarket(scan func(dest ...any) error) (domain.Market, error) {
	var m domain.Market
	var totalYes, totalNo int64
	var closeTime, createdAt string

	if err := scan(
		&m.ID, &m.Question, &m.Authority, &m.Resolver, &m.Status, &m.FeeBps,
		&closeTime, &m.Winner, &totalYes, &totalNo, &createdAt,
	); err != nil {
		return domain.Market{}, err
	}

	m.TotalYes = uint64(totalYes)
	m.TotalNo = uint64(totalNo)

	var err error
	if m.CloseTime, err = time.Parse(time.RFC3339Nano, closeTime); err != nil {
		return domain.Market{}, fmt.Errorf("parse close_time: %w", err)
	}
	if m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return domain.Market{}, fmt.Errorf("parse created_at: %w", err)
	}
	return m, nil
}

// debitAccount resta saldo con guard de fondos: si la cuenta no existe o no
// cubre el importe, el UPDATE no toca filas.
func debitAccount(ctx context.Context, tx *sql.Tx, owner string, amount int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - ? WHERE owner = ? AND balance >= ?`,
		amount, owner, amount)
	if err != nil {
		return fmt.Errorf("debit account %s: %w", owner, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("debit account %s: %w", owner, err)
	} else if n == 0 {
		return fmt.Errorf("debit account %s: %w", owner, domain.ErrInsufficientFunds)
	}
	return nil
}

func creditAccount(ctx context.Context, tx *sql.Tx, owner string, amount int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (owner, balance) VALUES (?, ?)
		ON CONFLICT(owner) DO UPDATE SET balance = balance + excluded.balance`,
		owner, amount,
	); err != nil {
		return fmt.Errorf("credit account %s: %w", owner, err)
	}
	return nil
}

func debitVault(ctx context.Context, tx *sql.Tx, addr string, amount int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE vaults SET balance = balance - ? WHERE addr = ? AND balance >= ?`,
		amount, addr, amount)
	if err != nil {
		return fmt.Errorf("debit vault %s: %w", addr, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("debit vault %s: %w", addr, err)
	} else if n == 0 {
		return fmt.Errorf("debit vault %s: %w", addr, domain.ErrInsufficientFunds)
	}
	return nil
}

func creditVault(ctx context.Context, tx *sql.Tx, addr string, amount int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE vaults SET balance = balance + ? WHERE addr = ?`, amount, addr)
	if err != nil {
		return fmt.Errorf("credit vault %s: %w", addr, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("credit vault %s: %w", addr, err)
	} else if n == 0 {
		return fmt.Errorf("credit vault %s: %w", addr, domain.ErrNotFound)
	}
	return nil
}

// appendEvent inserta la entrada del log y devuelve el seq asignado.
func appendEvent(ctx context.Context, tx *sql.Tx, e domain.Event, amount int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO events (market_id, kind, owner, side, amount, at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.MarketID, string(e.Kind), e.Owner, e.Side, amount, formatTime(e.At))
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	return seq, nil
}
