package domain

import "time"

// DraftStatus enumerates the review lifecycle of a draft.
type DraftStatus string

const (
	DraftStatusPending  DraftStatus = "PENDING"
	DraftStatusApproved DraftStatus = "APPROVED"
	DraftStatusRejected DraftStatus = "REJECTED"
)

// Valid reports whether s is a known status.
func (s DraftStatus) Valid() bool {
	switch s {
	case DraftStatusPending, DraftStatusApproved, DraftStatusRejected:
		return true
	}
	return false
}

// ReviewAction is the operator disposition sent to the backend.
type ReviewAction string

const (
	ReviewActionApprove ReviewAction = "APPROVE"
	ReviewActionReject  ReviewAction = "REJECT"
)

// RegenerationTarget selects which field of a draft is regenerated.
type RegenerationTarget string

const (
	RegenerateContext RegenerationTarget = "CONTEXT"
	RegenerateMessage RegenerationTarget = "MESSAGE"
)

// Valid reports whether t is a known target.
func (t RegenerationTarget) Valid() bool {
	return t == RegenerateContext || t == RegenerateMessage
}

// DraftRecord is one customer conversation under review.
type DraftRecord struct {
	ID                string
	CustomerName      string
	ContextSummary    string
	DraftMessage      string
	FinalMessage      *string
	Status            DraftStatus
	ProcessedAt       *time.Time
	ReceivedOn        *string
	SatisfactionScore *int
	ConversationRef   *string
}

// IsPending reports whether the draft still awaits a decision.
func (d DraftRecord) IsPending() bool {
	return d.Status == DraftStatusPending
}

// HasConversation reports whether a chat transcript can be fetched for the draft.
func (d DraftRecord) HasConversation() bool {
	return d.ConversationRef != nil && *d.ConversationRef != ""
}

// Clone returns a deep copy so callers never share pointer fields with the store.
func (d DraftRecord) Clone() DraftRecord {
	out := d
	if d.FinalMessage != nil {
		v := *d.FinalMessage
		out.FinalMessage = &v
	}
	if d.ProcessedAt != nil {
		v := *d.ProcessedAt
		out.ProcessedAt = &v
	}
	if d.ReceivedOn != nil {
		v := *d.ReceivedOn
		out.ReceivedOn = &v
	}
	if d.SatisfactionScore != nil {
		v := *d.SatisfactionScore
		out.SatisfactionScore = &v
	}
	if d.ConversationRef != nil {
		v := *d.ConversationRef
		out.ConversationRef = &v
	}
	return out
}

// DraftPatch is a partial update applied to a stored draft. Nil fields are left untouched.
type DraftPatch struct {
	Status         *DraftStatus
	ProcessedAt    *time.Time
	DraftMessage   *string
	ContextSummary *string
}

// Apply returns d with the patch applied.
func (p DraftPatch) Apply(d DraftRecord) DraftRecord {
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.ProcessedAt != nil {
		ts := *p.ProcessedAt
		d.ProcessedAt = &ts
	}
	if p.DraftMessage != nil {
		d.DraftMessage = *p.DraftMessage
	}
	if p.ContextSummary != nil {
		d.ContextSummary = *p.ContextSummary
	}
	return d
}

// OperationKind names an asynchronous operation tracked per draft.
type OperationKind string

const (
	OperationApprove           OperationKind = "approve"
	OperationReject            OperationKind = "reject"
	OperationRegenerateContext OperationKind = "regenerate_context"
	OperationRegenerateMessage OperationKind = "regenerate_message"
)

// OperationForTarget maps a regeneration target to its flag.
func OperationForTarget(t RegenerationTarget) OperationKind {
	if t == RegenerateContext {
		return OperationRegenerateContext
	}
	return OperationRegenerateMessage
}
