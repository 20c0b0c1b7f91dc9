package entity

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type LeadStatus string

const (
	StatusHot           LeadStatus = "hot"
	StatusWarm          LeadStatus = "warm"
	StatusCold          LeadStatus = "cold"
	StatusUninterested  LeadStatus = "uninterested"
	StatusQualified     LeadStatus = "qualified"
	StatusUnqualified   LeadStatus = "unqualified"
	StatusCalled        LeadStatus = "called"
	StatusTexted        LeadStatus = "texted"
	StatusInterested    LeadStatus = "interested"
	StatusNotInterested LeadStatus = "not_interested"
)

// LeadStatuses lists every status a lead can hold.
var LeadStatuses = []LeadStatus{
	StatusHot, StatusWarm, StatusCold, StatusUninterested, StatusQualified,
	StatusUnqualified, StatusCalled, StatusTexted, StatusInterested, StatusNotInterested,
}

// QualificationStatuses is the subset an external qualifying workflow may report.
var QualificationStatuses = []LeadStatus{StatusHot, StatusWarm, StatusCold, StatusUninterested}

func (s LeadStatus) Valid() bool {
	for _, v := range LeadStatuses {
		if v == s {
			return true
		}
	}
	return false
}

type LeadType string

const (
	LeadTypeInbound  LeadType = "inbound"
	LeadTypeOutbound LeadType = "outbound"
)

type SourceChannel string

const (
	ChannelColdCall      SourceChannel = "cold_call"
	ChannelInboundCall   SourceChannel = "inbound_call"
	ChannelWebForm       SourceChannel = "web_form"
	ChannelEmailCampaign SourceChannel = "email_campaign"
	ChannelManual        SourceChannel = "manual"
	ChannelOther         SourceChannel = "other"
)

// DefaultSourceChannel returns the channel a new lead of the given type starts with.
// The pair is only aligned at creation; later edits may diverge freely.
func DefaultSourceChannel(t LeadType) SourceChannel {
	if t == LeadTypeInbound {
		return ChannelInboundCall
	}
	return ChannelColdCall
}

type CallResult string

const (
	CallResultAppointmentBooked CallResult = "appointment_booked"
	CallResultUnsuccessful      CallResult = "unsuccessful"
)

// Lead is a prospect owned by one user. Empty Email, Phone, SourceChannel,
// CallResult and Transcript are stored as NULL and encoded as null.
type Lead struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	Phone         string         `json:"phone"`
	Status        LeadStatus     `json:"status"`
	LeadType      LeadType       `json:"lead_type"`
	SourceChannel SourceChannel  `json:"source_channel"`
	CallResult    CallResult     `json:"call_result"`
	Qualified     bool           `json:"qualified"`
	Transcript    string         `json:"transcript"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (l Lead) MarshalJSON() ([]byte, error) {
	type plain Lead
	return json.Marshal(struct {
		plain
		Email         *string        `json:"email"`
		Phone         *string        `json:"phone"`
		SourceChannel *SourceChannel `json:"source_channel"`
		CallResult    *CallResult    `json:"call_result"`
		Transcript    *string        `json:"transcript"`
	}{
		plain:         plain(l),
		Email:         nullable(l.Email),
		Phone:         nullable(l.Phone),
		SourceChannel: nullable(l.SourceChannel),
		CallResult:    nullable(l.CallResult),
		Transcript:    nullable(l.Transcript),
	})
}

func nullable[S ~string](s S) *S {
	if s == "" {
		return nil
	}
	return &s
}

func NewLead(userID, name string, leadType LeadType) (*Lead, error) {
	if leadType == "" {
		leadType = LeadTypeOutbound
	}

	now := time.Now().UTC()
	lead := &Lead{
		ID:            uuid.New().String(),
		UserID:        userID,
		Name:          strings.TrimSpace(name),
		Status:        StatusCold,
		LeadType:      leadType,
		SourceChannel: DefaultSourceChannel(leadType),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := lead.Validate(); err != nil {
		return nil, err
	}
	return lead, nil
}

func (l *Lead) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return errors.New("name is required")
	}
	if !l.Status.Valid() {
		return errors.New("status is invalid")
	}
	if l.LeadType != LeadTypeInbound && l.LeadType != LeadTypeOutbound {
		return errors.New("lead_type must be inbound or outbound")
	}
	return nil
}

func (l Lead) RecordID() string   { return l.ID }
func (l Lead) OwnerID() string    { return l.UserID }
func (l Lead) Created() time.Time { return l.CreatedAt }
func (l Lead) Version() time.Time { return l.UpdatedAt }

// LeadPatch carries the columns an update touches. Nil fields are left alone.
type LeadPatch struct {
	Name          *string
	Email         *string
	Phone         *string
	Status        *LeadStatus
	LeadType      *LeadType
	SourceChannel *SourceChannel
	CallResult    *CallResult
	Qualified     *bool
	Transcript    *string
	Metadata      map[string]any
	UpdatedAt     time.Time
}

type LeadQuery struct {
	UserID   string
	LeadType LeadType
}

type LeadRepositoryInterface interface {
	Create(ctx context.Context, lead *Lead) error
	FindByID(ctx context.Context, id string) (*Lead, error)
	// Update applies the patch and returns the post-image, or ErrNotFound.
	Update(ctx context.Context, id string, patch LeadPatch) (*Lead, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q LeadQuery) ([]Lead, error)
}
