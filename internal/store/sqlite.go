package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/snekaaa/banya-check/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

type sqlQueryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	memory := dsn == ":memory:" || strings.Contains(dsn, "mode=memory")

	db, err := sql.Open("sqlite3", sqliteDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if memory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// sqliteDSN adds the connection options every store connection needs:
// foreign keys for cascades, and IMMEDIATE transactions so concurrent
// claims take the write lock before reading the quantities they check.
// Shared cache is dropped: its table locks fail with SQLITE_LOCKED at once
// instead of waiting out the busy timeout.
func sqliteDSN(dsn string) string {
	base, query, _ := strings.Cut(dsn, "?")

	var kept []string
	for _, p := range strings.Split(query, "&") {
		if p == "" || strings.EqualFold(p, "cache=shared") {
			continue
		}
		kept = append(kept, p)
	}

	params := []string{"_foreign_keys=1", "_txlock=immediate", "_busy_timeout=5000"}
	for _, p := range params {
		key := p[:strings.IndexByte(p, '=')+1]
		if hasParam(kept, key) {
			continue
		}
		kept = append(kept, p)
	}
	return base + "?" + strings.Join(kept, "&")
}

func hasParam(params []string, key string) bool {
	for _, p := range params {
		if strings.HasPrefix(p, key) {
			return true
		}
	}
	return false
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			venue TEXT NOT NULL DEFAULT '',
			visit_date TEXT NOT NULL DEFAULT '',
			visit_time TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'draft',
			admin_id TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS participants (
			id TEXT PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			avatar_ref TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS session_participants (
			session_id TEXT NOT NULL,
			participant_id TEXT NOT NULL,
			attendance TEXT NOT NULL DEFAULT 'going',
			role TEXT NOT NULL DEFAULT 'member',
			selection_confirmed INTEGER NOT NULL DEFAULT 0,
			has_payment INTEGER NOT NULL DEFAULT 0,
			joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (session_id, participant_id),
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE,
			FOREIGN KEY (participant_id) REFERENCES participants(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_participants_participant ON session_participants(participant_id)`,
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			name TEXT NOT NULL,
			unit_price TEXT NOT NULL,
			total_quantity TEXT NOT NULL,
			is_common INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_session ON items(session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS selections (
			item_id TEXT NOT NULL,
			participant_id TEXT NOT NULL,
			quantity TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (item_id, participant_id),
			FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE,
			FOREIGN KEY (participant_id) REFERENCES participants(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			participant_id TEXT NOT NULL,
			amount TEXT NOT NULL,
			proof_ref TEXT NOT NULL DEFAULT '',
			confirmed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id, participant_id) REFERENCES session_participants(session_id, participant_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_session ON payments(session_id, participant_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession creates a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, venue, visit_date, visit_time, status, admin_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Title, session.Venue, session.Date, session.Time, session.Status, session.AdminID, session.CreatedAt)
	return err
}

const sessionColumns = `s.id, s.title, s.venue, s.visit_date, s.visit_time, s.status, s.admin_id, s.created_at`

func scanSession(row rowScanner, session *domain.Session, extra ...any) error {
	dest := append([]any{&session.ID, &session.Title, &session.Venue, &session.Date, &session.Time,
		&session.Status, &session.AdminID, &session.CreatedAt}, extra...)
	return row.Scan(dest...)
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return getSQLiteSession(ctx, s.db, sessionID)
}

func getSQLiteSession(ctx context.Context, q sqlQueryer, sessionID string) (*domain.Session, error) {
	var session domain.Session
	err := scanSession(q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?`, sessionID), &session)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateSessionStatus changes a session's lifecycle state.
func (s *SQLiteStore) UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) (bool, error) {
	return affected(s.db.ExecContext(ctx, `UPDATE sessions SET status = ? WHERE id = ?`, status, sessionID))
}

// ListParticipantSessions lists the sessions a participant is enrolled in, newest first.
func (s *SQLiteStore) ListParticipantSessions(ctx context.Context, participantID string) ([]domain.ParticipantSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+`, sp.attendance, sp.role
		FROM session_participants sp JOIN sessions s ON s.id = sp.session_id
		WHERE sp.participant_id = ?
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

// UpsertParticipant inserts a participant or refreshes the profile of the
// one with the same external ID. Color and ID of an existing row are kept.
func (s *SQLiteStore) UpsertParticipant(ctx context.Context, p *domain.Participant) (*domain.Participant, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO participants (id, external_id, username, first_name, last_name, avatar_ref, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			avatar_ref = CASE WHEN excluded.avatar_ref = '' THEN participants.avatar_ref ELSE excluded.avatar_ref END`,
		p.ID, p.ExternalID, p.Username, p.FirstName, p.LastName, p.AvatarRef, p.Color, p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s.GetParticipantByExternalID(ctx, p.ExternalID)
}

const participantColumns = `p.id, p.external_id, p.username, p.first_name, p.last_name, p.avatar_ref, p.color, p.created_at`

func participantDest(p *domain.Participant) []any {
	return []any{&p.ID, &p.ExternalID, &p.Username, &p.FirstName, &p.LastName, &p.AvatarRef, &p.Color, &p.CreatedAt}
}

// GetParticipant retrieves a participant by ID.
func (s *SQLiteStore) GetParticipant(ctx context.Context, participantID string) (*domain.Participant, error) {
	return s.getParticipant(ctx, `p.id = ?`, participantID)
}

// GetParticipantByExternalID retrieves a participant by chat identity.
func (s *SQLiteStore) GetParticipantByExternalID(ctx context.Context, externalID string) (*domain.Participant, error) {
	return s.getParticipant(ctx, `p.external_id = ?`, externalID)
}

func (s *SQLiteStore) getParticipant(ctx context.Context, where string, arg string) (*domain.Participant, error) {
	var p domain.Participant
	err := s.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants p WHERE `+where, arg).Scan(participantDest(&p)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// EnrollParticipant adds a participant to a session. It reports false when
// the participant was already enrolled; the existing row is left untouched.
func (s *SQLiteStore) EnrollParticipant(ctx context.Context, e *domain.Enrollment) (bool, error) {
	return affected(s.db.ExecContext(ctx,
		`INSERT INTO session_participants (session_id, participant_id, attendance, role, selection_confirmed, has_payment, joined_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, participant_id) DO NOTHING`,
		e.SessionID, e.ParticipantID, e.Attendance, e.Role, e.SelectionConfirmed, e.HasPayment, e.JoinedAt))
}

const enrollmentColumns = `sp.session_id, sp.participant_id, sp.attendance, sp.role, sp.selection_confirmed, sp.has_payment, sp.joined_at`

func enrollmentDest(e *domain.Enrollment) []any {
	return []any{&e.SessionID, &e.ParticipantID, &e.Attendance, &e.Role, &e.SelectionConfirmed, &e.HasPayment, &e.JoinedAt}
}

// GetEnrollment retrieves a session participant row.
func (s *SQLiteStore) GetEnrollment(ctx context.Context, sessionID, participantID string) (*domain.Enrollment, error) {
	return getSQLiteEnrollment(ctx, s.db, sessionID, participantID)
}

func getSQLiteEnrollment(ctx context.Context, q sqlQueryer, sessionID, participantID string) (*domain.Enrollment, error) {
	var e domain.Enrollment
	err := q.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM session_participants sp WHERE sp.session_id = ? AND sp.participant_id = ?`,
		sessionID, participantID).Scan(enrollmentDest(&e)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// SetAttendance updates a participant's attendance in a session.
func (s *SQLiteStore) SetAttendance(ctx context.Context, sessionID, participantID string, status domain.AttendanceStatus) (bool, error) {
	return affected(s.db.ExecContext(ctx,
		`UPDATE session_participants SET attendance = ? WHERE session_id = ? AND participant_id = ?`,
		status, sessionID, participantID))
}

// SetSelectionConfirmed sets or clears a participant's confirmation flag.
func (s *SQLiteStore) SetSelectionConfirmed(ctx context.Context, sessionID, participantID string, confirmed bool) (bool, error) {
	return affected(s.db.ExecContext(ctx,
		`UPDATE session_participants SET selection_confirmed = ? WHERE session_id = ? AND participant_id = ?`,
		confirmed, sessionID, participantID))
}

// ListRoster lists a session's enrollments with their participants, in join order.
func (s *SQLiteStore) ListRoster(ctx context.Context, sessionID string) ([]domain.RosterEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+enrollmentColumns+`, `+participantColumns+`
		FROM session_participants sp JOIN participants p ON p.id = sp.participant_id
		WHERE sp.session_id = ?
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

// CreateItems inserts items in one transaction.
func (s *SQLiteStore) CreateItems(ctx context.Context, items []domain.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO items (id, session_id, name, unit_price, total_quantity, is_common, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.SessionID, item.Name, item.UnitPrice.String(), item.TotalQuantity.String(), item.IsCommon, item.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert item %s: %w", item.ID, err)
		}
	}
	return tx.Commit()
}

const itemColumns = `i.id, i.session_id, i.name, i.unit_price, i.total_quantity, i.is_common, i.created_at`

func itemDest(i *domain.Item) []any {
	return []any{&i.ID, &i.SessionID, &i.Name, &i.UnitPrice, &i.TotalQuantity, &i.IsCommon, &i.CreatedAt}
}

// GetItem retrieves an item by ID.
func (s *SQLiteStore) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	return getSQLiteItem(ctx, s.db, itemID)
}

func getSQLiteItem(ctx context.Context, q sqlQueryer, itemID string) (*domain.Item, error) {
	var item domain.Item
	err := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items i WHERE i.id = ?`, itemID).Scan(itemDest(&item)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItems lists a session's items in creation order.
func (s *SQLiteStore) ListItems(ctx context.Context, sessionID string) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items i WHERE i.session_id = ? ORDER BY i.created_at, i.id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Item
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(itemDest(&item)...); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// DeleteItem removes an item; its selections go with it.
func (s *SQLiteStore) DeleteItem(ctx context.Context, itemID string) (bool, error) {
	return affected(s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, itemID))
}

// ListSelections lists every selection on a session's items.
func (s *SQLiteStore) ListSelections(ctx context.Context, sessionID string) ([]domain.Selection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sel.item_id, sel.participant_id, sel.quantity, sel.updated_at
		FROM selections sel JOIN items i ON i.id = sel.item_id
		WHERE i.session_id = ?
		ORDER BY sel.updated_at, sel.item_id, sel.participant_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Selection
	for rows.Next() {
		var sel domain.Selection
		if err := rows.Scan(&sel.ItemID, &sel.ParticipantID, &sel.Quantity, &sel.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, rows.Err()
}

// ClaimSelection sets a participant's quantity of an item, replacing any
// earlier claim. The quantities of the other participants are summed and
// checked against the item's total inside the same transaction as the write.
func (s *SQLiteStore) ClaimSelection(ctx context.Context, claim Claim, guard Guard) (*ClaimResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	state, err := loadSQLiteMutationState(ctx, tx, claim.ItemID, claim.ParticipantID)
	if err != nil {
		return nil, err
	}
	if err := runGuard(guard, *state); err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT quantity FROM selections WHERE item_id = ? AND participant_id <> ?`,
		claim.ItemID, claim.ParticipantID)
	if err != nil {
		return nil, err
	}
	var others []decimal.Decimal
	for rows.Next() {
		var q decimal.Decimal
		if err := rows.Scan(&q); err != nil {
			rows.Close()
			return nil, err
		}
		others = append(others, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
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
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO selections (item_id, participant_id, quantity, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(item_id, participant_id) DO UPDATE SET quantity = excluded.quantity, updated_at = excluded.updated_at`,
		sel.ItemID, sel.ParticipantID, sel.Quantity.String(), sel.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to upsert selection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return &ClaimResult{Item: state.Item, Selection: sel, Remaining: remaining}, nil
}

// ReleaseSelection deletes a participant's claim on an item if there is one.
func (s *SQLiteStore) ReleaseSelection(ctx context.Context, itemID, participantID string, guard Guard) (*ReleaseResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	state, err := loadSQLiteMutationState(ctx, tx, itemID, participantID)
	if err != nil {
		return nil, err
	}
	if err := runGuard(guard, *state); err != nil {
		return nil, err
	}

	released, err := affected(tx.ExecContext(ctx,
		`DELETE FROM selections WHERE item_id = ? AND participant_id = ?`, itemID, participantID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit release: %w", err)
	}
	return &ReleaseResult{Item: state.Item, Released: released}, nil
}

func loadSQLiteMutationState(ctx context.Context, q sqlQueryer, itemID, participantID string) (*MutationState, error) {
	item, err := getSQLiteItem(ctx, q, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrItemNotFound
	}
	session, err := getSQLiteSession(ctx, q, item.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	enrollment, err := getSQLiteEnrollment(ctx, q, item.SessionID, participantID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, domain.ErrNotEnrolled
	}
	return &MutationState{Session: *session, Item: *item, Enrollment: *enrollment}, nil
}

// RecordPayment stores a payment and marks the participant as paid.
func (s *SQLiteStore) RecordPayment(ctx context.Context, p *domain.Payment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ok, err := affected(tx.ExecContext(ctx,
		`UPDATE session_participants SET has_payment = 1 WHERE session_id = ? AND participant_id = ?`,
		p.SessionID, p.ParticipantID))
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotEnrolled
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO payments (id, session_id, participant_id, amount, proof_ref, confirmed_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.SessionID, p.ParticipantID, p.Amount.String(), p.ProofRef, p.ConfirmedAt); err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return tx.Commit()
}

const paymentColumns = `id, session_id, participant_id, amount, proof_ref, confirmed_at`

func paymentDest(p *domain.Payment) []any {
	return []any{&p.ID, &p.SessionID, &p.ParticipantID, &p.Amount, &p.ProofRef, &p.ConfirmedAt}
}

// ListPayments lists a session's payments, optionally for one participant.
func (s *SQLiteStore) ListPayments(ctx context.Context, sessionID, participantID string) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE session_id = ?`
	args := []any{sessionID}
	if participantID != "" {
		query += ` AND participant_id = ?`
		args = append(args, participantID)
	}
	query += ` ORDER BY confirmed_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(paymentDest(&p)...); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AttachPaymentProof sets the proof reference of a payment.
func (s *SQLiteStore) AttachPaymentProof(ctx context.Context, paymentID, proofRef string) (*domain.Payment, error) {
	ok, err := affected(s.db.ExecContext(ctx, `UPDATE payments SET proof_ref = ? WHERE id = ?`, proofRef, paymentID))
	if err != nil || !ok {
		return nil, err
	}
	var p domain.Payment
	if err := s.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`, paymentID).Scan(paymentDest(&p)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
