package petition

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/haltgate"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
	"github.com/archon-governance/three-fates/pkg/store"
)

// DefaultQueueLimit and MaxQueueLimit bound the Escalation Queue's page
// size (spec.md §4.12).
const (
	DefaultQueueLimit = 20
	MaxQueueLimit     = 100
)

// EscalationQueueItem is one page entry.
type EscalationQueueItem struct {
	PetitionID       uuid.UUID
	PetitionType     domain.PetitionType
	EscalationSource domain.EscalationSource
	CoSignerCount    int
	EscalatedAt      time.Time
}

// EscalationQueuePage is the paginated result of GetQueue.
type EscalationQueuePage struct {
	Items      []EscalationQueueItem
	NextCursor string // "" when HasMore is false
	HasMore    bool
}

// EscalationQueue is the Escalation Queue (C12): a realm-scoped, FIFO,
// keyset-paginated view of escalated petitions for Kings.
type EscalationQueue struct {
	Store store.PetitionStore
	Halt  *haltgate.Gate
}

// NewEscalationQueue constructs an EscalationQueue.
func NewEscalationQueue(st store.PetitionStore, halt *haltgate.Gate) *EscalationQueue {
	return &EscalationQueue{Store: st, Halt: halt}
}

// GetQueue implements spec.md §4.12's get_queue. The halt gate is checked
// even for this read, per the Open Question decision in SPEC_FULL.md §9
// to keep the Python original's behavior of refusing all access during
// halt, not just writes.
func (q *EscalationQueue) GetQueue(ctx context.Context, realmID string, cursor string, limit int) (*EscalationQueuePage, error) {
	if q.Halt != nil && q.Halt.IsHalted() {
		return nil, petitionerr.New(petitionerr.KindSystemHalted, "system halted: "+q.Halt.Reason())
	}

	if limit == 0 {
		limit = DefaultQueueLimit
	}
	if limit < 1 || limit > MaxQueueLimit {
		return nil, petitionerr.New(petitionerr.KindValidation,
			"limit must be between 1 and 100")
	}

	var after *store.EscalationCursor
	if cursor != "" {
		parsed, err := ParseCursor(cursor)
		if err != nil {
			return nil, err
		}
		after = parsed
	}

	rows, err := q.Store.ListEscalatedByRealm(ctx, realmID, after, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	items := make([]EscalationQueueItem, len(rows))
	for i, p := range rows {
		item := EscalationQueueItem{
			PetitionID:    p.ID,
			PetitionType:  p.Type,
			CoSignerCount: p.CoSignerCount,
		}
		if p.EscalationSource != nil {
			item.EscalationSource = *p.EscalationSource
		}
		if p.EscalatedAt != nil {
			item.EscalatedAt = *p.EscalatedAt
		}
		items[i] = item
	}

	page := &EscalationQueuePage{Items: items, HasMore: hasMore}
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		page.NextCursor = BuildCursor(last.EscalatedAt, last.PetitionID)
	}
	return page, nil
}

// BuildCursor encodes a keyset cursor as base64("<iso_timestamp>:<petition_id>").
func BuildCursor(t time.Time, id uuid.UUID) string {
	raw := t.UTC().Format(time.RFC3339Nano) + ":" + id.String()
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// ParseCursor decodes a cursor produced by BuildCursor. Malformed input
// returns a KindValidation error ("invalid cursor").
func ParseCursor(cursor string) (*store.EscalationCursor, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return nil, petitionerr.New(petitionerr.KindValidation, "invalid cursor")
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return nil, petitionerr.New(petitionerr.KindValidation, "invalid cursor")
	}
	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, petitionerr.New(petitionerr.KindValidation, "invalid cursor")
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, petitionerr.New(petitionerr.KindValidation, "invalid cursor")
	}
	return &store.EscalationCursor{EscalatedAt: t, PetitionID: id}, nil
}
