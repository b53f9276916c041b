package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/snekaaa/banya-check/internal/domain"
)

// PostgresStore implements Store using PostgreSQL through pgx.
//
// Numeric columns are read back as text and parsed into decimals so no
// precision is lost between the database and the sum-check.
type PostgresStore struct {
	pool *pgxpool.Pool
}

type pgQueryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		venue TEXT NOT NULL DEFAULT '',
		visit_date TEXT NOT NULL DEFAULT '',
		visit_time TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		admin_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS participants (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		avatar_ref TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS session_participants (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		participant_id TEXT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
		attendance TEXT NOT NULL DEFAULT 'going',
		role TEXT NOT NULL DEFAULT 'member',
		selection_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		has_payment BOOLEAN NOT NULL DEFAULT FALSE,
		joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (session_id, participant_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_participants_participant ON session_participants (participant_id)`,
	`CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		unit_price NUMERIC(14, 2) NOT NULL,
		total_quantity NUMERIC(14, 4) NOT NULL,
		is_common BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_session ON items (session_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS selections (
		item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		participant_id TEXT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
		quantity NUMERIC(14, 4) NOT NULL CHECK (quantity > 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (item_id, participant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		participant_id TEXT NOT NULL,
		amount NUMERIC(14, 2) NOT NULL,
		proof_ref TEXT NOT NULL DEFAULT '',
		confirmed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		FOREIGN KEY (session_id, participant_id) REFERENCES session_participants (session_id, participant_id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_session ON payments (session_id, participant_id)`,
}

// NewPostgresStore connects to PostgreSQL and runs migrations.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	for _, m := range postgresMigrations {
		stmt := strings.TrimSpace(m)
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, stmt)
		}
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, title, venue, visit_date, visit_time, status, admin_id, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		session.ID, session.Title, session.Venue, session.Date, session.Time, session.Status, session.AdminID, session.CreatedAt)
	return err
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return getPostgresSession(ctx, s.pool, sessionID, "")
}

func getPostgresSession(ctx context.Context, q pgQueryer, sessionID, lock string) (*domain.Session, error) {
	var session domain.Session
	err := scanSession(q.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions s WHERE s.id = $1`+lock, sessionID), &session)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *PostgresStore) UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) (bool, error) {
	return pgAffected(s.pool.Exec(ctx, `UPDATE sessions SET status = $1 WHERE id = $2`, status, sessionID))
}

func (s *PostgresStore) ListParticipantSessions(ctx context.Context, participantID string) ([]domain.ParticipantSession, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+`, sp.attendance, sp.role
		FROM session_participants sp JOIN sessions s ON s.id = sp.session_id
		WHERE sp.participant_id = $1
		ORDER BY s.created_at DESC`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ParticipantSession
	for rows.Next() {
		var ps domain.ParticipantSession
		if err := scanSession(rows, &ps.Session, &ps.Attendance, &ps.Role); err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertParticipant(ctx context.Context, p *domain.Participant) (*domain.Participant, error) {
	var out domain.Participant
	err := s.pool.QueryRow(ctx,
		`INSERT INTO participants AS p (id, external_id, username, first_name, last_name, avatar_ref, color, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (external_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			avatar_ref = CASE WHEN EXCLUDED.avatar_ref = '' THEN p.avatar_ref ELSE EXCLUDED.avatar_ref END
		RETURNING `+participantColumns,
		p.ID, p.ExternalID, p.Username, p.FirstName, p.LastName, p.AvatarRef, p.Color, p.CreatedAt).Scan(participantDest(&out)...)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *PostgresStore) GetParticipant(ctx context.Context, participantID string) (*domain.Participant, error) {
	return s.getParticipant(ctx, `p.id = $1`, participantID)
}

func (s *PostgresStore) GetParticipantByExternalID(ctx context.Context, externalID string) (*domain.Participant, error) {
	return s.getParticipant(ctx, `p.external_id = $1`, externalID)
}

func (s *PostgresStore) getParticipant(ctx context.Context, where, arg string) (*domain.Participant, error) {
	var p domain.Participant
	err := s.pool.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM participants p WHERE `+where, arg).Scan(participantDest(&p)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) EnrollParticipant(ctx context.Context, e *domain.Enrollment) (bool, error) {
	return pgAffected(s.pool.Exec(ctx,
		`INSERT INTO session_participants (session_id, participant_id, attendance, role, selection_confirmed, has_payment, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, participant_id) DO NOTHING`,
		e.SessionID, e.ParticipantID, e.Attendance, e.Role, e.SelectionConfirmed, e.HasPayment, e.JoinedAt))
}

func (s *PostgresStore) GetEnrollment(ctx context.Context, sessionID, participantID string) (*domain.Enrollment, error) {
	return getPostgresEnrollment(ctx, s.pool, sessionID, participantID)
}

func getPostgresEnrollment(ctx context.Context, q pgQueryer, sessionID, participantID string) (*domain.Enrollment, error) {
	var e domain.Enrollment
	err := q.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM session_participants sp WHERE sp.session_id = $1 AND sp.participant_id = $2`,
		sessionID, participantID).Scan(enrollmentDest(&e)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) SetAttendance(ctx context.Context, sessionID, participantID string, status domain.AttendanceStatus) (bool, error) {
	return pgAffected(s.pool.Exec(ctx,
		`UPDATE session_participants SET attendance = $1 WHERE session_id = $2 AND participant_id = $3`,
		status, sessionID, participantID))
}

func (s *PostgresStore) SetSelectionConfirmed(ctx context.Context, sessionID, participantID string, confirmed bool) (bool, error) {
	return pgAffected(s.pool.Exec(ctx,
		`UPDATE session_participants SET selection_confirmed = $1 WHERE session_id = $2 AND participant_id = $3`,
		confirmed, sessionID, participantID))
}

func (s *PostgresStore) ListRoster(ctx context.Context, sessionID string) ([]domain.RosterEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+enrollmentColumns+`, `+participantColumns+`
		FROM session_participants sp JOIN participants p ON p.id = sp.participant_id
		WHERE sp.session_id = $1
		ORDER BY sp.joined_at, p.id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RosterEntry
	for rows.Next() {
		var r domain.RosterEntry
		dest := append(enrollmentDest(&r.Enrollment), participantDest(&r.Participant)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateItems(ctx context.Context, items []domain.Item) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, item := range items {
		if _, err := tx.Exec(ctx,
			`INSERT INTO items (id, session_id, name, unit_price, total_quantity, is_common, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.ID, item.SessionID, item.Name, item.UnitPrice.String(), item.TotalQuantity.String(), item.IsCommon, item.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert item %s: %w", item.ID, err)
		}
	}
	return tx.Commit(ctx)
}

const pgItemColumns = `i.id, i.session_id, i.name, i.unit_price::text, i.total_quantity::text, i.is_common, i.created_at`

func scanPostgresItem(row rowScanner, item *domain.Item) error {
	var price, qty string
	if err := row.Scan(&item.ID, &item.SessionID, &item.Name, &price, &qty, &item.IsCommon, &item.CreatedAt); err != nil {
		return err
	}
	var err error
	if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return fmt.Errorf("invalid unit_price %q: %w", price, err)
	}
	if item.TotalQuantity, err = decimal.NewFromString(qty); err != nil {
		return fmt.Errorf("invalid total_quantity %q: %w", qty, err)
	}
	return nil
}

func (s *PostgresStore) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	return getPostgresItem(ctx, s.pool, itemID, "")
}

func getPostgresItem(ctx context.Context, q pgQueryer, itemID, lock string) (*domain.Item, error) {
	var item domain.Item
	err := scanPostgresItem(q.QueryRow(ctx, `SELECT `+pgItemColumns+` FROM items i WHERE i.id = $1`+lock, itemID), &item)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *PostgresStore) ListItems(ctx context.Context, sessionID string) ([]domain.Item, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgItemColumns+` FROM items i WHERE i.session_id = $1 ORDER BY i.created_at, i.id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Item
	for rows.Next() {
		var item domain.Item
		if err := scanPostgresItem(rows, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteItem(ctx context.Context, itemID string) (bool, error) {
	return pgAffected(s.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, itemID))
}

func (s *PostgresStore) ListSelections(ctx context.Context, sessionID string) ([]domain.Selection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sel.item_id, sel.participant_id, sel.quantity::text, sel.updated_at
		FROM selections sel JOIN items i ON i.id = sel.item_id
		WHERE i.session_id = $1
		ORDER BY sel.updated_at, sel.item_id, sel.participant_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Selection
	for rows.Next() {
		var sel domain.Selection
		var qty string
		if err := rows.Scan(&sel.ItemID, &sel.ParticipantID, &qty, &sel.UpdatedAt); err != nil {
			return nil, err
		}
		if sel.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("invalid quantity %q: %w", qty, err)
		}
		out = append(out, sel)
	}
	return out, rows.Err()
}

// ClaimSelection locks the item row, so concurrent claims on one item
// queue behind each other while they sum and write.
func (s *PostgresStore) ClaimSelection(ctx context.Context, claim Claim, guard Guard) (*ClaimResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	state, err := loadPostgresMutationState(ctx, tx, claim.ItemID, claim.ParticipantID)
	if err != nil {
		return nil, err
	}
	if err := runGuard(guard, *state); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx,
		`SELECT quantity::text FROM selections WHERE item_id = $1 AND participant_id <> $2`,
		claim.ItemID, claim.ParticipantID)
	if err != nil {
		return nil, err
	}
	others, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (decimal.Decimal, error) {
		var qty string
		if err := row.Scan(&qty); err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(qty)
	})
	if err != nil {
		return nil, err
	}

	remaining, err := checkClaim(state.Item, others, claim.Quantity)
	if err != nil {
		return nil, err
	}

	sel := domain.Selection{
		ItemID:        claim.ItemID,
		ParticipantID: claim.ParticipantID,
		Quantity:      claim.Quantity,
		UpdatedAt:     time.Now().UTC(),
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO selections (item_id, participant_id, quantity, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (item_id, participant_id) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at`,
		sel.ItemID, sel.ParticipantID, sel.Quantity.String(), sel.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to upsert selection: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return &ClaimResult{Item: state.Item, Selection: sel, Remaining: remaining}, nil
}

func (s *PostgresStore) ReleaseSelection(ctx context.Context, itemID, participantID string, guard Guard) (*ReleaseResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	state, err := loadPostgresMutationState(ctx, tx, itemID, participantID)
	if err != nil {
		return nil, err
	}
	if err := runGuard(guard, *state); err != nil {
		return nil, err
	}

	released, err := pgAffected(tx.Exec(ctx,
		`DELETE FROM selections WHERE item_id = $1 AND participant_id = $2`, itemID, participantID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit release: %w", err)
	}
	return &ReleaseResult{Item: state.Item, Released: released}, nil
}

func loadPostgresMutationState(ctx context.Context, q pgQueryer, itemID, participantID string) (*MutationState, error) {
	item, err := getPostgresItem(ctx, q, itemID, " FOR UPDATE")
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrItemNotFound
	}
	session, err := getPostgresSession(ctx, q, item.SessionID, " FOR SHARE")
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	enrollment, err := getPostgresEnrollment(ctx, q, item.SessionID, participantID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, domain.ErrNotEnrolled
	}
	return &MutationState{Session: *session, Item: *item, Enrollment: *enrollment}, nil
}

func (s *PostgresStore) RecordPayment(ctx context.Context, p *domain.Payment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ok, err := pgAffected(tx.Exec(ctx,
		`UPDATE session_participants SET has_payment = TRUE WHERE session_id = $1 AND participant_id = $2`,
		p.SessionID, p.ParticipantID))
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotEnrolled
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO payments (id, session_id, participant_id, amount, proof_ref, confirmed_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.SessionID, p.ParticipantID, p.Amount.String(), p.ProofRef, p.ConfirmedAt); err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return tx.Commit(ctx)
}

const pgPaymentColumns = `id, session_id, participant_id, amount::text, proof_ref, confirmed_at`

func scanPostgresPayment(row rowScanner, p *domain.Payment) error {
	var amount string
	if err := row.Scan(&p.ID, &p.SessionID, &p.ParticipantID, &amount, &p.ProofRef, &p.ConfirmedAt); err != nil {
		return err
	}
	var err error
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return nil
}

func (s *PostgresStore) ListPayments(ctx context.Context, sessionID, participantID string) ([]domain.Payment, error) {
	query := `SELECT ` + pgPaymentColumns + ` FROM payments WHERE session_id = $1`
	args := []any{sessionID}
	if participantID != "" {
		query += ` AND participant_id = $2`
		args = append(args, participantID)
	}
	query += ` ORDER BY confirmed_at, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := scanPostgresPayment(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AttachPaymentProof(ctx context.Context, paymentID, proofRef string) (*domain.Payment, error) {
	var p domain.Payment
	err := scanPostgresPayment(s.pool.QueryRow(ctx,
		`UPDATE payments SET proof_ref = $1 WHERE id = $2 RETURNING `+pgPaymentColumns, proofRef, paymentID), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func pgAffected(tag pgconn.CommandTag, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
