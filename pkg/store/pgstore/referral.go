package pgstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
)

// ReferralStore is a Postgres-backed store.ReferralStore.
type ReferralStore struct {
	db *sql.DB
}

// NewReferralStore constructs a store backed by db.
func NewReferralStore(db *sql.DB) *ReferralStore {
	return &ReferralStore{db: db}
}

func (s *ReferralStore) Save(ctx context.Context, r *domain.Referral) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO referrals (id, petition_id, realm_id, deadline, created_at, status, witness_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.PetitionID, r.RealmID, r.Deadline, r.CreatedAt, string(r.Status), r.WitnessHash[:])
	if err != nil {
		if isUniqueViolation(err) {
			return petitionerr.New(petitionerr.KindAlreadyExists, "referral already exists for petition")
		}
		return petitionerr.Wrap(petitionerr.KindTransient, "failed to save referral", err)
	}
	return nil
}

func (s *ReferralStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Referral, error) {
	return s.scanOne(ctx, `WHERE id = $1`, id)
}

func (s *ReferralStore) GetByPetitionID(ctx context.Context, petitionID uuid.UUID) (*domain.Referral, error) {
	return s.scanOne(ctx, `WHERE petition_id = $1`, petitionID)
}

func (s *ReferralStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ReferralStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE referrals SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return petitionerr.Wrap(petitionerr.KindTransient, "failed to update referral status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return petitionerr.Wrap(petitionerr.KindTransient, "failed to confirm referral status update", err)
	}
	if n == 0 {
		return petitionerr.New(petitionerr.KindNotFound, "referral not found")
	}
	return nil
}

func (s *ReferralStore) scanOne(ctx context.Context, where string, arg any) (*domain.Referral, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, petition_id, realm_id, deadline, created_at, status, witness_hash
		FROM referrals `+where, arg)

	var (
		r           domain.Referral
		status      string
		witnessHash []byte
	)
	err := row.Scan(&r.ID, &r.PetitionID, &r.RealmID, &r.Deadline, &r.CreatedAt, &status, &witnessHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, petitionerr.Wrap(petitionerr.KindTransient, "failed to load referral", err)
	}
	r.Status = domain.ReferralStatus(status)
	copy(r.WitnessHash[:], witnessHash)
	return &r, nil
}
