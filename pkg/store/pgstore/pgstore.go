// Package pgstore is the Postgres-backed Petition Store (C3). Its CAS runs
// in a serializable transaction that locks the row with SELECT ... FOR
// UPDATE, checks the current state against the expected one, and only
// then issues the UPDATE, so exactly one concurrent caller observes
// success.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
	"github.com/archon-governance/three-fates/pkg/statemachine"
	"github.com/archon-governance/three-fates/pkg/store"
)

// Store is a Postgres-backed PetitionStore.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// New constructs a Store over an already-connected *sql.DB. The schema is
// expected to be present (see migrations/0001_petitions.sql).
func New(db *sql.DB, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(log.Writer(), "[PetitionStore] ", log.LstdFlags)
	}
	return &Store{db: db, logger: logger}
}

func (s *Store) Save(ctx context.Context, p *domain.Petition) error {
	var submitterID any
	if p.SubmitterID != nil {
		submitterID = *p.SubmitterID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO petitions
			(id, type, text, state, content_hash, realm, submitter_id,
			 co_signer_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID, p.Type, p.Text, p.State, p.ContentHash[:], p.Realm, submitterID,
		p.CoSignerCount, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return petitionerr.New(petitionerr.KindAlreadyExists, "petition already exists")
		}
		return petitionerr.Wrap(petitionerr.KindTransient, "failed to save petition", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*domain.Petition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, text, state, content_hash, realm, submitter_id,
		       co_signer_count, fate_reason,
		       escalation_source, escalated_at, escalated_to_realm,
		       adopted_as_motion_id, adopted_at, adopted_by_king_id,
		       created_at, updated_at
		FROM petitions WHERE id = $1
	`, id)
	p, err := scanPetition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, petitionerr.Wrap(petitionerr.KindTransient, "failed to load petition", err)
	}
	return p, nil
}

func (s *Store) ListByState(ctx context.Context, state statemachine.State, limit, offset int) ([]*domain.Petition, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM petitions WHERE state = $1`, state).Scan(&total); err != nil {
		return nil, 0, petitionerr.Wrap(petitionerr.KindTransient, "failed to count petitions", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, text, state, content_hash, realm, submitter_id,
		       co_signer_count, fate_reason,
		       escalation_source, escalated_at, escalated_to_realm,
		       adopted_as_motion_id, adopted_at, adopted_by_king_id,
		       created_at, updated_at
		FROM petitions WHERE state = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, state, limit, offset)
	if err != nil {
		return nil, 0, petitionerr.Wrap(petitionerr.KindTransient, "failed to list petitions", err)
	}
	defer rows.Close()

	var out []*domain.Petition
	for rows.Next() {
		p, err := scanPetition(rows)
		if err != nil {
			return nil, 0, petitionerr.Wrap(petitionerr.KindTransient, "failed to scan petition", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (s *Store) UpdateState(ctx context.Context, id uuid.UUID, state statemachine.State) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE petitions SET state = $1, updated_at = $2 WHERE id = $3`,
		state, time.Now().UTC(), id)
	if err != nil {
		return petitionerr.Wrap(petitionerr.KindTransient, "failed to update petition state", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return petitionerr.New(petitionerr.KindNotFound, "petition not found")
	}
	return nil
}

// AssignFateCAS implements spec.md §4.4's ordered semantics. The state
// check and the escalation-triple COALESCE write happen inside a single
// serializable transaction so a concurrent AssignFateCAS on the same
// petition can never observe a half-applied write.
func (s *Store) AssignFateCAS(ctx context.Context, id uuid.UUID, expected, newState statemachine.State,
	escalationSource *domain.EscalationSource, escalatedToRealm *string, fateReason *string) (*domain.Petition, error) {

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, petitionerr.Wrap(petitionerr.KindTransient, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, type, text, state, content_hash, realm, submitter_id,
		       co_signer_count, fate_reason,
		       escalation_source, escalated_at, escalated_to_realm,
		       adopted_as_motion_id, adopted_at, adopted_by_king_id,
		       created_at, updated_at
		FROM petitions WHERE id = $1 FOR UPDATE
	`, id)
	p, err := scanPetition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, petitionerr.New(petitionerr.KindNotFound, "petition not found")
	}
	if err != nil {
		return nil, petitionerr.Wrap(petitionerr.KindTransient, "failed to load petition", err)
	}

	if statemachine.IsTerminal(p.State) {
		return nil, petitionerr.New(petitionerr.KindAlreadyFated, "petition has already reached a terminal state")
	}
	if err := statemachine.Validate(p.State, newState); err != nil {
		return nil, err
	}
	if p.State != expected {
		return nil, petitionerr.New(petitionerr.KindConcurrentModification,
			"petition state changed since it was read; re-read and retry")
	}

	now := time.Now().UTC()
	p.State = newState
	p.UpdatedAt = now
	if statemachine.IsTerminal(newState) {
		p.FateReason = fateReason
	}

	if newState == statemachine.StateEscalated && p.EscalationSource == nil && escalationSource != nil {
		p.EscalationSource = escalationSource
		p.EscalatedAt = &now
		p.EscalatedToRealm = escalatedToRealm

		_, err = tx.ExecContext(ctx, `
			UPDATE petitions
			SET state = $1, updated_at = $2, fate_reason = $3,
			    escalation_source = COALESCE(escalation_source, $4),
			    escalated_at = COALESCE(escalated_at, $5),
			    escalated_to_realm = COALESCE(escalated_to_realm, $6)
			WHERE id = $7
		`, newState, now, fateReason, *escalationSource, now, escalatedToRealm, id)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE petitions SET state = $1, updated_at = $2, fate_reason = $3 WHERE id = $4`,
			newState, now, fateReason, id)
	}
	if err != nil {
		return nil, petitionerr.Wrap(petitionerr.KindTransient, "failed to write fate transition", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, petitionerr.Wrap(petitionerr.KindTransient, "failed to commit fate transition", err)
	}
	return p, nil
}

func (s *Store) MarkAdopted(ctx context.Context, id uuid.UUID, motionID, kingID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE petitions
		SET adopted_as_motion_id = $1, adopted_at = $2, adopted_by_king_id = $3
		WHERE id = $4 AND adopted_as_motion_id IS NULL
	`, motionID, time.Now().UTC(), kingID, id)
	if err != nil {
		return petitionerr.Wrap(petitionerr.KindTransient, "failed to mark adoption", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return petitionerr.New(petitionerr.KindAlreadyExists, "petition already adopted or not found")
	}
	return nil
}

func (s *Store) FindByState(ctx context.Context, state statemachine.State, receivedBefore *time.Time) ([]*domain.Petition, error) {
	query := `
		SELECT id, type, text, state, content_hash, realm, submitter_id,
		       co_signer_count, fate_reason,
		       escalation_source, escalated_at, escalated_to_realm,
		       adopted_as_motion_id, adopted_at, adopted_by_king_id,
		       created_at, updated_at
		FROM petitions WHERE state = $1`
	args := []any{state}
	if receivedBefore != nil {
		query += ` AND created_at < $2`
		args = append(args, *receivedBefore)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, petitionerr.Wrap(petitionerr.KindTransient, "failed to scan for orphans", err)
	}
	defer rows.Close()

	var out []*domain.Petition
	for rows.Next() {
		p, err := scanPetition(rows)
		if err != nil {
			return nil, petitionerr.Wrap(petitionerr.KindTransient, "failed to scan petition", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetQueueDepth(ctx context.Context, state *statemachine.State) (int, error) {
	var count int
	var err error
	if state == nil {
		err = s.db.QueryRowContext(ctx, `SELECT count(*) FROM petitions`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT count(*) FROM petitions WHERE state = $1`, *state).Scan(&count)
	}
	if err != nil {
		return 0, petitionerr.Wrap(petitionerr.KindTransient, "failed to count petitions", err)
	}
	return count, nil
}

// ListEscalatedByRealm backs the Escalation Queue (C12). The partial index
// idx_petitions_escalated_realm (WHERE state = 'ESCALATED') covers this
// query's filter and ordering columns.
func (s *Store) ListEscalatedByRealm(ctx context.Context, realm string, after *store.EscalationCursor, limit int) ([]*domain.Petition, error) {
	query := `
		SELECT id, type, text, state, content_hash, realm, submitter_id,
		       co_signer_count, fate_reason,
		       escalation_source, escalated_at, escalated_to_realm,
		       adopted_as_motion_id, adopted_at, adopted_by_king_id,
		       created_at, updated_at
		FROM petitions
		WHERE state = 'ESCALATED' AND escalated_to_realm = $1`
	args := []any{realm}
	if after != nil {
		query += ` AND (escalated_at, id) > ($2, $3)`
		args = append(args, after.EscalatedAt, after.PetitionID)
	}
	query += ` ORDER BY escalated_at ASC, id ASC LIMIT ` + fmt.Sprintf("$%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, petitionerr.Wrap(petitionerr.KindTransient, "failed to query escalation queue", err)
	}
	defer rows.Close()

	var out []*domain.Petition
	for rows.Next() {
		p, err := scanPetition(rows)
		if err != nil {
			return nil, petitionerr.Wrap(petitionerr.KindTransient, "failed to scan petition", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// rowScanner abstracts over *sql.Row and *sql.Rows, both of which expose
// Scan with an identical signature.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPetition(row rowScanner) (*domain.Petition, error) {
	var p domain.Petition
	var contentHash []byte
	var submitterID, adoptedByKingID uuid.NullUUID
	var fateReason, escalatedToRealm sql.NullString
	var escalationSource sql.NullString
	var escalatedAt, adoptedAt sql.NullTime
	var adoptedAsMotionID uuid.NullUUID

	if err := row.Scan(
		&p.ID, &p.Type, &p.Text, &p.State, &contentHash, &p.Realm, &submitterID,
		&p.CoSignerCount, &fateReason,
		&escalationSource, &escalatedAt, &escalatedToRealm,
		&adoptedAsMotionID, &adoptedAt, &adoptedByKingID,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	copy(p.ContentHash[:], contentHash)
	if submitterID.Valid {
		id := submitterID.UUID
		p.SubmitterID = &id
	}
	if fateReason.Valid {
		p.FateReason = &fateReason.String
	}
	if escalationSource.Valid {
		src := domain.EscalationSource(escalationSource.String)
		p.EscalationSource = &src
	}
	if escalatedAt.Valid {
		p.EscalatedAt = &escalatedAt.Time
	}
	if escalatedToRealm.Valid {
		p.EscalatedToRealm = &escalatedToRealm.String
	}
	if adoptedAsMotionID.Valid {
		id := adoptedAsMotionID.UUID
		p.AdoptedAsMotionID = &id
	}
	if adoptedAt.Valid {
		p.AdoptedAt = &adoptedAt.Time
	}
	if adoptedByKingID.Valid {
		id := adoptedByKingID.UUID
		p.AdoptedByKingID = &id
	}

	return &p, nil
}

// CoSign records actorID's co-signature in a serializable transaction so a
// concurrent double-submit from the same actor can never double-count.
func (s *Store) CoSign(ctx context.Context, id uuid.UUID, actorID int64) (*domain.Petition, bool, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, false, petitionerr.Wrap(petitionerr.KindTransient, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, type, text, state, content_hash, realm, submitter_id,
		       co_signer_count, fate_reason,
		       escalation_source, escalated_at, escalated_to_realm,
		       adopted_as_motion_id, adopted_at, adopted_by_king_id,
		       created_at, updated_at
		FROM petitions WHERE id = $1 FOR UPDATE
	`, id)
	p, err := scanPetition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, petitionerr.New(petitionerr.KindNotFound, "petition not found")
	}
	if err != nil {
		return nil, false, petitionerr.Wrap(petitionerr.KindTransient, "failed to load petition", err)
	}
	if statemachine.IsTerminal(p.State) {
		return nil, false, petitionerr.New(petitionerr.KindAlreadyFated, "petition has already reached a terminal state")
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO co_signers (petition_id, actor_id) VALUES ($1, $2)`, id, actorID)
	if isUniqueViolation(err) {
		return p, true, nil
	}
	if err != nil {
		return nil, false, petitionerr.Wrap(petitionerr.KindTransient, "failed to record co-signature", err)
	}

	now := time.Now().UTC()
	p.CoSignerCount++
	p.UpdatedAt = now
	if _, err := tx.ExecContext(ctx, `
		UPDATE petitions SET co_signer_count = co_signer_count + 1, updated_at = $1 WHERE id = $2
	`, now, id); err != nil {
		return nil, false, petitionerr.Wrap(petitionerr.KindTransient, "failed to update co-signer count", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, petitionerr.Wrap(petitionerr.KindTransient, "failed to commit co-signature", err)
	}
	return p, false, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	// 23505 (unique_violation) is the specific code within the 23
	// (integrity_constraint_violation) SQLSTATE class.
	return pqErr.Code.Class() == "23" && pqErr.Code == "23505"
}
