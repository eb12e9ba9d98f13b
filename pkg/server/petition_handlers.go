package server

import (
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/petition"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
	"github.com/archon-governance/three-fates/pkg/store"
)

// PetitionHandlers serves the submitter-facing HTTP surface: submit,
// co-sign, status read, and withdraw.
type PetitionHandlers struct {
	Store      store.PetitionStore
	Submission *petition.SubmissionService
	CoSign     *petition.CoSignService
	Logger     *log.Logger
}

// NewPetitionHandlers constructs a PetitionHandlers. logger may be nil.
func NewPetitionHandlers(st store.PetitionStore, submission *petition.SubmissionService, cosign *petition.CoSignService, logger *log.Logger) *PetitionHandlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[PetitionHandlers] ", log.LstdFlags)
	}
	return &PetitionHandlers{Store: st, Submission: submission, CoSign: cosign, Logger: logger}
}

type submitPetitionRequest struct {
	Type              domain.PetitionType `json:"type"`
	Text              string              `json:"text"`
	Realm             string              `json:"realm"`
	SubmitterID       *uuid.UUID          `json:"submitter_id,omitempty"`
	NotificationPrefs map[string]any      `json:"notification_preferences,omitempty"`
}

type petitionResponse struct {
	PetitionID  uuid.UUID           `json:"petition_id"`
	State       string              `json:"state"`
	Type        domain.PetitionType `json:"type"`
	ContentHash string              `json:"content_hash"`
	Realm       string              `json:"realm"`
	CreatedAt   time.Time           `json:"created_at"`
}

func toPetitionResponse(p *domain.Petition) petitionResponse {
	return petitionResponse{
		PetitionID:  p.ID,
		State:       string(p.State),
		Type:        p.Type,
		ContentHash: hex.EncodeToString(p.ContentHash[:]),
		Realm:       p.Realm,
		CreatedAt:   p.CreatedAt,
	}
}

// HandleSubmit handles POST /v1/petitions.
func (h *PetitionHandlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, petitionerr.New(petitionerr.KindValidation, "only POST is allowed"))
		return
	}

	var req submitPetitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, petitionerr.New(petitionerr.KindValidation, "invalid request body"))
		return
	}

	p, err := h.Submission.SubmitPetition(r.Context(), req.Type, req.Text, req.Realm, req.SubmitterID, req.NotificationPrefs)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPetitionResponse(p))
}

// HandleGet handles GET /v1/petitions/{id}.
func (h *PetitionHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, petitionerr.New(petitionerr.KindValidation, "only GET is allowed"))
		return
	}
	id, err := parsePathID(r.URL.Path, "/v1/petitions/")
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
	writeJSON(w, http.StatusOK, toPetitionResponse(p))
}

type coSignRequest struct {
	ActorID int64 `json:"actor_id"`
}

// HandleCoSign handles POST /v1/petitions/{id}/cosign.
func (h *PetitionHandlers) HandleCoSign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, petitionerr.New(petitionerr.KindValidation, "only POST is allowed"))
		return
	}
	id, err := parsePathID(r.URL.Path, "/v1/petitions/")
	if err != nil {
		writeErr(w, err)
		return
	}

	var req coSignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, petitionerr.New(petitionerr.KindValidation, "invalid request body"))
		return
	}

	result, err := h.CoSign.CoSign(r.Context(), id, req.ActorID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if result.AlreadySigned {
		writeErr(w, petitionerr.New(petitionerr.KindAlreadyExists, "actor has already co-signed this petition"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"petition_id":     id,
		"co_signer_count": result.CoSignerCount,
		"escalated":       result.EscalationResult != nil && result.EscalationResult.Triggered,
	})
}

type withdrawRequest struct {
	RequesterID uuid.UUID `json:"requester_id"`
	Reason      *string   `json:"reason,omitempty"`
}

// HandleWithdraw handles POST /v1/petitions/{id}/withdraw.
func (h *PetitionHandlers) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, petitionerr.New(petitionerr.KindValidation, "only POST is allowed"))
		return
	}
	id, err := parsePathID(r.URL.Path, "/v1/petitions/")
	if err != nil {
		writeErr(w, err)
		return
	}

	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, petitionerr.New(petitionerr.KindValidation, "invalid request body"))
		return
	}

	p, err := h.Submission.WithdrawPetition(r.Context(), id, req.RequesterID, req.Reason)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPetitionResponse(p))
}

// parsePathID extracts and validates the UUID trailing prefix in path,
// stopping at the next "/" (so "/v1/petitions/{id}/cosign" also resolves).
func parsePathID(path, prefix string) (uuid.UUID, error) {
	rest := strings.TrimPrefix(path, prefix)
	idStr := strings.Split(rest, "/")[0]
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.UUID{}, petitionerr.New(petitionerr.KindValidation, "invalid petition id")
	}
	return id, nil
}

func parseIntQuery(r *http.Request, name string, defaultVal int) int {
	valStr := r.URL.Query().Get(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}
