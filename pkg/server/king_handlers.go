package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/petition"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
	"github.com/archon-governance/three-fates/pkg/statemachine"
	"github.com/archon-governance/three-fates/pkg/store"
)

// KingHandlers serves the King-facing HTTP surface: the realm-scoped
// escalation queue, decision packages, and King acknowledgments.
type KingHandlers struct {
	Store   store.PetitionStore
	Queue   *petition.EscalationQueue
	AckExec *petition.AcknowledgmentExecutor
	Logger  *log.Logger
}

// NewKingHandlers constructs a KingHandlers. logger may be nil.
func NewKingHandlers(st store.PetitionStore, queue *petition.EscalationQueue, ackExec *petition.AcknowledgmentExecutor, logger *log.Logger) *KingHandlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[KingHandlers] ", log.LstdFlags)
	}
	return &KingHandlers{Store: st, Queue: queue, AckExec: ackExec, Logger: logger}
}

type queueItemResponse struct {
	PetitionID       uuid.UUID               `json:"petition_id"`
	PetitionType     domain.PetitionType     `json:"petition_type"`
	EscalationSource domain.EscalationSource `json:"escalation_source"`
	CoSignerCount    int                     `json:"co_signer_count"`
	EscalatedAt      string                  `json:"escalated_at"`
}

// HandleGetQueue handles GET /v1/kings/{king_id}/escalations?limit=&cursor=.
// The realm a King acts in is carried as a query parameter in this
// minimal surface; a full deployment would resolve it from the King's
// session/identity instead.
func (h *KingHandlers) HandleGetQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, petitionerr.New(petitionerr.KindValidation, "only GET is allowed"))
		return
	}

	realm := r.URL.Query().Get("realm")
	if realm == "" {
		writeErr(w, petitionerr.New(petitionerr.KindValidation, "realm query parameter is required"))
		return
	}
	cursor := r.URL.Query().Get("cursor")
	limit := parseIntQuery(r, "limit", petition.DefaultQueueLimit)

	page, err := h.Queue.GetQueue(r.Context(), realm, cursor, limit)
	if err != nil {
		writeErr(w, err)
		return
	}

	items := make([]queueItemResponse, len(page.Items))
	for i, item := range page.Items {
		items[i] = queueItemResponse{
			PetitionID:       item.PetitionID,
			PetitionType:     item.PetitionType,
			EscalationSource: item.EscalationSource,
			CoSignerCount:    item.CoSignerCount,
			EscalatedAt:      item.EscalatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":       items,
		"next_cursor": page.NextCursor,
		"has_more":    page.HasMore,
	})
}

// HandleGetDecisionPackage handles GET /v1/kings/escalations/{petition_id}.
func (h *KingHandlers) HandleGetDecisionPackage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, petitionerr.New(petitionerr.KindValidation, "only GET is allowed"))
		return
	}
	id, err := parsePathID(r.URL.Path, "/v1/kings/escalations/")
	if err != nil {
		writeErr(w, err)
		return
	}

	p, err := h.Store.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if p == nil {
		writeErr(w, petitionerr.New(petitionerr.KindNotFound, "petition not found"))
		return
	}
	if p.State != statemachine.StateEscalated {
		writeErr(w, petitionerr.New(petitionerr.KindInvalidTransition, "petition is not escalated"))
		return
	}

	realm := r.URL.Query().Get("realm")
	if realm != "" && (p.EscalatedToRealm == nil || *p.EscalatedToRealm != realm) {
		writeErr(w, petitionerr.New(petitionerr.KindRealmMismatch, "petition escalated to a different realm"))
		return
	}

	writeJSON(w, http.StatusOK, toPetitionResponse(p))
}

type kingAcknowledgeRequest struct {
	KingID    uuid.UUID                       `json:"king_id"`
	Reason    domain.AcknowledgmentReasonCode `json:"reason"`
	Rationale string                           `json:"rationale"`
	Realm     string                           `json:"realm"`
}

// HandleAcknowledge handles POST /v1/kings/escalations/{petition_id}/acknowledge.
func (h *KingHandlers) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, petitionerr.New(petitionerr.KindValidation, "only POST is allowed"))
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/kings/escalations/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[1] != "acknowledge" {
		writeErr(w, petitionerr.New(petitionerr.KindValidation, "invalid endpoint path"))
		return
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		writeErr(w, petitionerr.New(petitionerr.KindValidation, "invalid petition id"))
		return
	}

	var req kingAcknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, petitionerr.New(petitionerr.KindValidation, "invalid request body"))
		return
	}

	ack, err := h.AckExec.ExecuteKingAcknowledge(r.Context(), id, req.KingID, req.Reason, req.Rationale, req.Realm)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"acknowledgment_id": ack.ID,
		"petition_id":       ack.PetitionID,
		"reason_code":       ack.ReasonCode,
	})
}
