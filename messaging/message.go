// Package messaging defines the processing messages exchanged between
// arbiter modules and the broker abstraction that carries them. Messages are
// immutable once constructed except for their processing status; causal
// correlation between a request and its reply is expressed through
// ParentMessageID.
package messaging

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arbiterhq/arbiter/registry"
)

// MessageType classifies a processing message.
type MessageType string

const (
	MessageTypeRecommendation MessageType = "recommendation"
	MessageTypeDecision       MessageType = "decision"
	MessageTypeAction         MessageType = "action"
	MessageTypeInfo           MessageType = "info"
	MessageTypeWarning        MessageType = "warning"
	MessageTypeError          MessageType = "error"
	MessageTypeStatusUpdate   MessageType = "status_update"
)

// ProcessingStatus is the lifecycle status of a message. Exactly one status
// holds at a time; only the owning component writes it.
type ProcessingStatus string

const (
	StatusPending          ProcessingStatus = "pending"
	StatusInProgress       ProcessingStatus = "in_progress"
	StatusCompleted        ProcessingStatus = "completed"
	StatusFailed           ProcessingStatus = "failed"
	StatusAwaitingDecision ProcessingStatus = "awaiting_decision"
	StatusRequiresAction   ProcessingStatus = "requires_action"
)

// ProcessingMessage is the unit of communication between modules.
type ProcessingMessage struct {
	MessageID        string                     `json:"message_id"`
	Timestamp        time.Time                  `json:"timestamp"`
	Source           registry.ModuleIdentifier  `json:"source"`
	Target           *registry.ModuleIdentifier `json:"target,omitempty"`
	Type             MessageType                `json:"type"`
	Content          map[string]interface{}     `json:"content,omitempty"`
	ParentMessageID  string                     `json:"parent_message_id,omitempty"`
	RequiresResponse bool                       `json:"requires_response,omitempty"`
	Metadata         map[string]interface{}     `json:"metadata,omitempty"`

	statusMu sync.Mutex
	status   ProcessingStatus
}

// NewMessage creates a pending message of the given type from a source.
func NewMessage(source registry.ModuleIdentifier, msgType MessageType) *ProcessingMessage {
	return &ProcessingMessage{
		MessageID: uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		Type:      msgType,
		Content:   make(map[string]interface{}),
		Metadata:  make(map[string]interface{}),
		status:    StatusPending,
	}
}

// WithTarget sets the routing target and returns the message for chaining
// during construction.
func (m *ProcessingMessage) WithTarget(target registry.ModuleIdentifier) *ProcessingMessage {
	m.Target = &target
	return m
}

// Reply constructs a response message whose parent is this message; the
// reply targets the original source.
func (m *ProcessingMessage) Reply(source registry.ModuleIdentifier, msgType MessageType) *ProcessingMessage {
	reply := NewMessage(source, msgType)
	reply.ParentMessageID = m.MessageID
	target := m.Source
	reply.Target = &target
	return reply
}

// Status returns the current processing status.
func (m *ProcessingMessage) Status() ProcessingStatus {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	return m.status
}

// SetStatus updates the processing status. This is the only field that may
// change after construction.
func (m *ProcessingMessage) SetStatus(status ProcessingStatus) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	m.status = status
}

// wireMessage mirrors ProcessingMessage for JSON transport; the status field
// needs explicit handling because of its mutex guard.
type wireMessage struct {
	MessageID        string                     `json:"message_id"`
	Timestamp        time.Time                  `json:"timestamp"`
	Source           registry.ModuleIdentifier  `json:"source"`
	Target           *registry.ModuleIdentifier `json:"target,omitempty"`
	Type             MessageType                `json:"type"`
	Content          map[string]interface{}     `json:"content,omitempty"`
	Status           ProcessingStatus           `json:"status"`
	ParentMessageID  string                     `json:"parent_message_id,omitempty"`
	RequiresResponse bool                       `json:"requires_response,omitempty"`
	Metadata         map[string]interface{}     `json:"metadata,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m *ProcessingMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{
		MessageID:        m.MessageID,
		Timestamp:        m.Timestamp,
		Source:           m.Source,
		Target:           m.Target,
		Type:             m.Type,
		Content:          m.Content,
		Status:           m.Status(),
		ParentMessageID:  m.ParentMessageID,
		RequiresResponse: m.RequiresResponse,
		Metadata:         m.Metadata,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *ProcessingMessage) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.MessageID = w.MessageID
	m.Timestamp = w.Timestamp
	m.Source = w.Source
	m.Target = w.Target
	m.Type = w.Type
	m.Content = w.Content
	m.ParentMessageID = w.ParentMessageID
	m.RequiresResponse = w.RequiresResponse
	m.Metadata = w.Metadata
	m.status = w.Status
	if m.status == "" {
		m.status = StatusPending
	}
	return nil
}

// ParseMessage deserializes a JSON-encoded processing message.
func ParseMessage(data []byte) (*ProcessingMessage, error) {
	var msg ProcessingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SetContent replaces the message content from a typed payload struct.
// Part of message construction; not safe after the message is published.
func (m *ProcessingMessage) SetContent(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &m.Content)
}

// decodeContent unpacks the generic content map into a typed payload.
func (m *ProcessingMessage) decodeContent(target interface{}) error {
	data, err := json.Marshal(m.Content)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// RecommendationPayload is the content of a recommendation message.
type RecommendationPayload struct {
	PipelineID  string            `json:"pipeline_id"`
	UserID      string            `json:"user_id,omitempty"`
	ContextType string            `json:"context_type,omitempty"`
	Items       []RecommendedItem `json:"items,omitempty"`
	StagedAt    string            `json:"staged_at,omitempty"` // staging handle when items are offloaded
}

// RecommendedItem is one ranked entry inside a recommendation payload.
type RecommendedItem struct {
	ItemID        string  `json:"item_id"`
	CombinedScore float64 `json:"combined_score"`
	Category      string  `json:"category,omitempty"`
}

// DecisionPayload is the content of a decision message.
type DecisionPayload struct {
	PipelineID string  `json:"pipeline_id"`
	ItemID     string  `json:"item_id"`
	Action     string  `json:"action,omitempty"`
	Score      float64 `json:"score"`
}

// ErrorPayload is the content of an error message.
type ErrorPayload struct {
	PipelineID  string   `json:"pipeline_id"`
	Reason      string   `json:"reason"`
	Issues      []string `json:"issues,omitempty"`
	Recoverable bool     `json:"recoverable"`
}

// StatusUpdatePayload is the content of a status update message.
type StatusUpdatePayload struct {
	PipelineID string           `json:"pipeline_id"`
	Status     ProcessingStatus `json:"status"`
	Detail     string           `json:"detail,omitempty"`
}

// GetRecommendationPayload extracts a RecommendationPayload from the message.
func (m *ProcessingMessage) GetRecommendationPayload() (*RecommendationPayload, error) {
	var p RecommendationPayload
	if err := m.decodeContent(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetDecisionPayload extracts a DecisionPayload from the message.
func (m *ProcessingMessage) GetDecisionPayload() (*DecisionPayload, error) {
	var p DecisionPayload
	if err := m.decodeContent(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetErrorPayload extracts an ErrorPayload from the message.
func (m *ProcessingMessage) GetErrorPayload() (*ErrorPayload, error) {
	var p ErrorPayload
	if err := m.decodeContent(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetStatusUpdatePayload extracts a StatusUpdatePayload from the message.
func (m *ProcessingMessage) GetStatusUpdatePayload() (*StatusUpdatePayload, error) {
	var p StatusUpdatePayload
	if err := m.decodeContent(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
