package types

import (
	"errors"
	"time"
)

// Validation errors
var (
	ErrEmptyEntityID       = errors.New("entity_id cannot be empty")
	ErrEmptyRelationshipID = errors.New("relationship id cannot be empty")
	ErrEmptyEndpoints      = errors.New("source_id and target_id cannot be empty")
	ErrEmptyVersionID      = errors.New("version_id cannot be empty")
	ErrUnknownKind         = errors.New("unknown record kind")
	ErrInvalidLimit        = errors.New("limit must be positive")
)

// Kind partitions version chains into entity and relationship histories.
type Kind string

const (
	// KindEntity identifies entity version chains.
	KindEntity Kind = "entities"
	// KindRelationship identifies relationship version chains.
	KindRelationship Kind = "relationships"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindEntity || k == KindRelationship
}

// TemporalMetadata stamps one recorded version of an entity or relationship.
type TemporalMetadata struct {
	VersionID         string    `json:"version_id" mapstructure:"version_id"`
	VersionTimestamp  time.Time `json:"version_timestamp" mapstructure:"version_timestamp"`
	PreviousVersionID string    `json:"previous_version_id,omitempty" mapstructure:"previous_version_id"`
	ChangeSource      string    `json:"change_source,omitempty" mapstructure:"change_source"`
	ChangeType        string    `json:"change_type,omitempty" mapstructure:"change_type"`
}

// Entity represents one version of a temporally tracked entity.
// EntityID is shared by every version of the same real-world thing.
type Entity struct {
	EntityID   string                 `json:"entity_id" mapstructure:"entity_id"`
	Labels     []string               `json:"labels,omitempty" mapstructure:"labels"`
	Properties map[string]interface{} `json:"properties,omitempty" mapstructure:"properties"`

	// Temporal fields
	ValidFrom time.Time  `json:"valid_from" mapstructure:"valid_from"`
	ValidTo   *time.Time `json:"valid_to,omitempty" mapstructure:"valid_to"`

	Temporal TemporalMetadata `json:"temporal_metadata" mapstructure:"temporal_metadata"`
}

// Validate checks if the Entity has all required fields set.
func (e *Entity) Validate() error {
	if e.EntityID == "" {
		return ErrEmptyEntityID
	}
	return nil
}

// Name returns the entity's name property, or "" when absent.
func (e *Entity) Name() string {
	if e.Properties == nil {
		return ""
	}
	if name, ok := e.Properties["name"].(string); ok {
		return name
	}
	return ""
}

// HasLabel reports whether the entity carries the given label.
func (e *Entity) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// ActiveAt reports whether the version's validity interval contains t.
// The interval is [ValidFrom, ValidTo); a nil ValidTo means still active.
func (e *Entity) ActiveAt(t time.Time) bool {
	if e.ValidFrom.After(t) {
		return false
	}
	return e.ValidTo == nil || e.ValidTo.After(t)
}

// Clone returns a deep copy of the entity. The tracker clones at its
// boundary so caller mutations never alias stored versions.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Labels != nil {
		clone.Labels = append([]string(nil), e.Labels...)
	}
	clone.Properties = cloneProperties(e.Properties)
	if e.ValidTo != nil {
		vt := *e.ValidTo
		clone.ValidTo = &vt
	}
	return &clone
}

// Relationship represents one version of a temporally tracked relationship.
// Relationships are versioned as whole records keyed by ID.
type Relationship struct {
	ID         string                 `json:"id" mapstructure:"id"`
	SourceID   string                 `json:"source_id" mapstructure:"source_id"`
	TargetID   string                 `json:"target_id" mapstructure:"target_id"`
	Type       string                 `json:"type" mapstructure:"type"`
	Properties map[string]interface{} `json:"properties,omitempty" mapstructure:"properties"`

	// Temporal fields
	ValidFrom time.Time  `json:"valid_from" mapstructure:"valid_from"`
	ValidTo   *time.Time `json:"valid_to,omitempty" mapstructure:"valid_to"`

	Temporal TemporalMetadata `json:"temporal_metadata" mapstructure:"temporal_metadata"`
}

// Validate checks if the Relationship has all required fields set.
func (r *Relationship) Validate() error {
	if r.ID == "" {
		return ErrEmptyRelationshipID
	}
	if r.SourceID == "" || r.TargetID == "" {
		return ErrEmptyEndpoints
	}
	return nil
}

// ActiveAt reports whether the version's validity interval contains t.
func (r *Relationship) ActiveAt(t time.Time) bool {
	if r.ValidFrom.After(t) {
		return false
	}
	return r.ValidTo == nil || r.ValidTo.After(t)
}

// Clone returns a deep copy of the relationship.
func (r *Relationship) Clone() *Relationship {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Properties = cloneProperties(r.Properties)
	if r.ValidTo != nil {
		vt := *r.ValidTo
		clone.ValidTo = &vt
	}
	return &clone
}

// Lifespan returns how long the version was (or has been) valid.
// Open-ended versions are measured against time.Now.
func (r *Relationship) Lifespan() time.Duration {
	end := time.Now().UTC()
	if r.ValidTo != nil {
		end = *r.ValidTo
	}
	if end.Before(r.ValidFrom) {
		return 0
	}
	return end.Sub(r.ValidFrom)
}

// VersionRecord is one immutable stored state of an entity or relationship.
// Exactly one of Entity or Relationship is set, matching Kind.
type VersionRecord struct {
	Kind         Kind          `json:"kind"`
	Entity       *Entity       `json:"entity,omitempty"`
	Relationship *Relationship `json:"relationship,omitempty"`
	Changes      *ChangeSet    `json:"changes,omitempty"`
}

// StableID returns the identifier shared across the record's version chain.
func (v *VersionRecord) StableID() string {
	switch v.Kind {
	case KindEntity:
		if v.Entity != nil {
			return v.Entity.EntityID
		}
	case KindRelationship:
		if v.Relationship != nil {
			return v.Relationship.ID
		}
	}
	return ""
}

// VersionID returns the identifier unique to this recorded state.
func (v *VersionRecord) VersionID() string {
	return v.meta().VersionID
}

// Timestamp returns when the version was recorded.
func (v *VersionRecord) Timestamp() time.Time {
	return v.meta().VersionTimestamp
}

// PreviousVersionID returns the prior link in the backward chain, or "".
func (v *VersionRecord) PreviousVersionID() string {
	return v.meta().PreviousVersionID
}

func (v *VersionRecord) meta() TemporalMetadata {
	switch v.Kind {
	case KindEntity:
		if v.Entity != nil {
			return v.Entity.Temporal
		}
	case KindRelationship:
		if v.Relationship != nil {
			return v.Relationship.Temporal
		}
	}
	return TemporalMetadata{}
}

// Validate checks record shape against its declared kind.
func (v *VersionRecord) Validate() error {
	switch v.Kind {
	case KindEntity:
		if v.Entity == nil {
			return ErrEmptyEntityID
		}
		return v.Entity.Validate()
	case KindRelationship:
		if v.Relationship == nil {
			return ErrEmptyRelationshipID
		}
		return v.Relationship.Validate()
	default:
		return ErrUnknownKind
	}
}

// Clone returns a deep copy of the record.
func (v *VersionRecord) Clone() *VersionRecord {
	if v == nil {
		return nil
	}
	return &VersionRecord{
		Kind:         v.Kind,
		Entity:       v.Entity.Clone(),
		Relationship: v.Relationship.Clone(),
		Changes:      v.Changes.Clone(),
	}
}

// cloneProperties deep-copies a property map, recursing into nested maps
// and slices. Scalars are copied by value.
func cloneProperties(props map[string]interface{}) map[string]interface{} {
	if props == nil {
		return nil
	}
	clone := make(map[string]interface{}, len(props))
	for k, v := range props {
		clone[k] = cloneValue(v)
	}
	return clone
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return cloneProperties(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case []float64:
		return append([]float64(nil), val...)
	default:
		return v
	}
}
