package petition

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/haltgate"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
	"github.com/archon-governance/three-fates/pkg/store"
)

// CoSignResult is the Co-Sign operation's outcome.
type CoSignResult struct {
	CoSignerCount    int
	AlreadySigned    bool
	EscalationResult *EscalationResult // non-nil only when this co-signature crossed the threshold
}

// CoSignService backs the HTTP surface's POST /v1/petitions/{id}/cosign
// endpoint: it records a co-signature and, when that co-signature crosses
// the type's auto-escalation threshold, delegates straight to the
// Auto-Escalation Executor rather than leaving the caller to poll.
type CoSignService struct {
	Store      store.PetitionStore
	Escalation *AutoEscalationExecutor
	Halt       *haltgate.Gate
	Logger     *log.Logger
}

// NewCoSignService constructs a CoSignService. logger may be nil.
func NewCoSignService(st store.PetitionStore, esc *AutoEscalationExecutor, halt *haltgate.Gate, logger *log.Logger) *CoSignService {
	if logger == nil {
		logger = log.New(log.Writer(), "[CoSignService] ", log.LstdFlags)
	}
	return &CoSignService{Store: st, Escalation: esc, Halt: halt, Logger: logger}
}

// CoSign records actorID's co-signature on petitionID.
func (s *CoSignService) CoSign(ctx context.Context, petitionID uuid.UUID, actorID int64) (*CoSignResult, error) {
	if s.Halt != nil && s.Halt.IsHalted() {
		return nil, petitionerr.New(petitionerr.KindSystemHalted, "system halted: "+s.Halt.Reason())
	}

	p, alreadySigned, err := s.Store.CoSign(ctx, petitionID, actorID)
	if err != nil {
		return nil, err
	}
	result := &CoSignResult{CoSignerCount: p.CoSignerCount, AlreadySigned: alreadySigned}
	if alreadySigned {
		return result, nil
	}

	check := CheckThreshold(p.Type, p.CoSignerCount)
	if !check.Reached {
		return result, nil
	}

	escResult, err := s.Escalation.Execute(ctx, petitionID, "co_signer", p.CoSignerCount, *check.Threshold, nil, nil)
	if err != nil {
		s.Logger.Printf("auto-escalation after co-sign threshold failed for petition %s: %v", petitionID, err)
		return result, nil
	}
	result.EscalationResult = escResult
	return result, nil
}
