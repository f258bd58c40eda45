// Package domain defines the persistence models for certificate requests and
// users. These types are mapped with GORM and form the core data layer of the
// certificate-request backend.
package domain

import (
	"encoding/json"
	"time"
)

// RequestStatus enumerates the lifecycle states of a certificate request.
// PENDING and IN_PROGRESS are live states; COMPLETED and FAILED are terminal.
type RequestStatus string

const (
	// StatusPending is the initial state of every request created from an
	// inbound channel event.
	StatusPending RequestStatus = "PENDING"
	// StatusInProgress marks a request whose document generation has started.
	StatusInProgress RequestStatus = "IN_PROGRESS"
	// StatusCompleted is terminal; the document was produced.
	StatusCompleted RequestStatus = "COMPLETED"
	// StatusFailed records a failed generation attempt. Failing again is
	// allowed (the error message is overwritten), completing is not.
	StatusFailed RequestStatus = "FAILED"
)

// IsTerminal reports whether no further status transition is legal.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanBeProcessed reports whether a completion transition may start from this
// status. FAILED is deliberately excluded: a failed request must be failed
// again or re-created, never silently completed.
func (s RequestStatus) CanBeProcessed() bool {
	return s == StatusPending || s == StatusInProgress
}

// CertificateRequest is the unit of work tracked by the lifecycle engine.
// A request is created anonymously from a messaging-channel event and may be
// attributed to a user later, once the requester identifies themselves.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - ChannelIdentifier: phone-like identifier of the originating conversation.
//     Not unique; several requests can share it before identification.
//   - CertificateType: requested document category (free-form, required).
//   - RequesterName / RequesterDocument: optional, may be filled before or
//     after the requester is identified.
//   - RequesterUserID: weak reference to the internal user; lookup only, no
//     cascade. Once set it is never cleared by the engine.
//   - RequestPayload: opaque structured data supplied at creation.
//   - InteractionTranscript: ordered log of the originating conversation,
//     immutable after creation.
//   - Status: lifecycle state, mutated only through the named transitions.
//   - DocumentPath / CompletionReason: set by the completion transition only.
//   - ErrorMessage: set by the failure transition only.
//   - SearchText: folded copy of the searchable fields (lowercased,
//     diacritics stripped), maintained on every write so searches match
//     accented stored values. Never serialized.
//   - DocumentSentAt: delivery confirmation timestamp, independent of status.
//   - ProcessingStartedAt / ProcessingEndedAt: bracket the IN_PROGRESS window.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type CertificateRequest struct {
	ID                    string          `json:"id"                 gorm:"type:char(36);primaryKey"`
	ChannelIdentifier     string          `json:"channel_identifier" gorm:"type:varchar(32);not null;index:idx_channel_requests"`
	CertificateType       string          `json:"certificate_type"   gorm:"type:varchar(128);not null"`
	RequesterName         string          `json:"requester_name,omitempty"     gorm:"type:varchar(255)"`
	RequesterDocument     string          `json:"requester_document,omitempty" gorm:"type:varchar(32)"`
	RequesterUserID       *string         `json:"requester_user_id"  gorm:"type:char(36);index"`
	RequestPayload        json.RawMessage `json:"request_payload,omitempty"        gorm:"type:text"`
	InteractionTranscript json.RawMessage `json:"interaction_transcript,omitempty" gorm:"type:text"`
	Status                RequestStatus   `json:"status"             gorm:"type:varchar(16);not null;default:'PENDING';index;check:status IN ('PENDING','IN_PROGRESS','COMPLETED','FAILED')"`
	DocumentPath          *string         `json:"document_path,omitempty"     gorm:"type:varchar(512)"`
	CompletionReason      *string         `json:"completion_reason,omitempty" gorm:"type:text"`
	ErrorMessage          *string         `json:"error_message,omitempty"     gorm:"type:text"`
	SearchText            string          `json:"-"                  gorm:"type:text"`
	DocumentSentAt        *time.Time      `json:"document_sent_at,omitempty"`
	ProcessingStartedAt   *time.Time      `json:"processing_started_at,omitempty"`
	ProcessingEndedAt     *time.Time      `json:"processing_ended_at,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// TableName returns the database table name for CertificateRequest.
func (CertificateRequest) TableName() string { return "certificate_requests" }

// User is the minimal shape of an internal identity consumed by the
// assignment correlator. The engine only reads users; it never creates or
// mutates them. IdentificationNumber is stored normalized (digits only) so
// lookups are invariant to formatting in the source channel.
type User struct {
	ID                   string    `json:"id"                    gorm:"type:char(36);primaryKey"`
	DisplayName          string    `json:"display_name"          gorm:"type:varchar(255);not null"`
	Email                string    `json:"email"                 gorm:"type:varchar(255);not null"`
	IdentificationNumber string    `json:"identification_number" gorm:"type:varchar(32);not null;uniqueIndex:ux_users_identification"`
	PositionID           *string   `json:"position_id,omitempty" gorm:"type:char(36)"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }
