package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
)

// AcknowledgmentStore is a Postgres-backed store.AcknowledgmentStore.
type AcknowledgmentStore struct {
	db *sql.DB
}

// NewAcknowledgmentStore constructs a store backed by db.
func NewAcknowledgmentStore(db *sql.DB) *AcknowledgmentStore {
	return &AcknowledgmentStore{db: db}
}

func (s *AcknowledgmentStore) Save(ctx context.Context, a *domain.Acknowledgment) error {
	var referencePetitionID, kingID any
	if a.ReferencePetitionID != nil {
		referencePetitionID = *a.ReferencePetitionID
	}
	if a.AcknowledgedByKingID != nil {
		kingID = *a.AcknowledgedByKingID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO acknowledgments
			(id, petition_id, reason_code, rationale, reference_petition_id,
			 acknowledging_archon_ids, acknowledged_by_king_id, acknowledged_at, witness_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.PetitionID, string(a.ReasonCode), a.Rationale, referencePetitionID,
		pq.Array(a.AcknowledgingArchonIDs), kingID, a.AcknowledgedAt, a.WitnessHash[:])
	if err != nil {
		if isUniqueViolation(err) {
			return petitionerr.New(petitionerr.KindAlreadyExists, "acknowledgment already exists for petition")
		}
		return petitionerr.Wrap(petitionerr.KindTransient, "failed to save acknowledgment", err)
	}
	return nil
}

func (s *AcknowledgmentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Acknowledgment, error) {
	return s.scanOne(ctx, `WHERE id = $1`, id)
}

func (s *AcknowledgmentStore) GetByPetitionID(ctx context.Context, petitionID uuid.UUID) (*domain.Acknowledgment, error) {
	return s.scanOne(ctx, `WHERE petition_id = $1`, petitionID)
}

func (s *AcknowledgmentStore) scanOne(ctx context.Context, where string, arg any) (*domain.Acknowledgment, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, petition_id, reason_code, rationale, reference_petition_id,
		       acknowledging_archon_ids, acknowledged_by_king_id, acknowledged_at, witness_hash
		FROM acknowledgments %s
	`, where), arg)

	var (
		a                    domain.Acknowledgment
		reasonCode           string
		rationale            sql.NullString
		referencePetitionID  uuid.NullUUID
		acknowledgedByKingID uuid.NullUUID
		witnessHash          []byte
	)
	err := row.Scan(&a.ID, &a.PetitionID, &reasonCode, &rationale, &referencePetitionID,
		pq.Array(&a.AcknowledgingArchonIDs), &acknowledgedByKingID, &a.AcknowledgedAt, &witnessHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, petitionerr.Wrap(petitionerr.KindTransient, "failed to load acknowledgment", err)
	}

	a.ReasonCode = domain.AcknowledgmentReasonCode(reasonCode)
	if rationale.Valid {
		a.Rationale = &rationale.String
	}
	if referencePetitionID.Valid {
		id := referencePetitionID.UUID
		a.ReferencePetitionID = &id
	}
	if acknowledgedByKingID.Valid {
		id := acknowledgedByKingID.UUID
		a.AcknowledgedByKingID = &id
	}
	copy(a.WitnessHash[:], witnessHash)
	return &a, nil
}
