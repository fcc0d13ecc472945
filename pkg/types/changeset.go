package types

// PropertyStatus marks whether a property appeared, disappeared, or changed
// between two versions.
type PropertyStatus string

const (
	// PropertyAdded marks a property present only in the newer version.
	PropertyAdded PropertyStatus = "added"
	// PropertyRemoved marks a property present only in the older version.
	PropertyRemoved PropertyStatus = "removed"
	// PropertyChanged marks a property whose value differs between versions.
	PropertyChanged PropertyStatus = "changed"
)

// PropertyChange records one property's difference between two versions.
type PropertyChange struct {
	OldValue interface{}    `json:"old_value,omitempty"`
	NewValue interface{}    `json:"new_value,omitempty"`
	Status   PropertyStatus `json:"status,omitempty"`
}

// LabelChanges records label set differences between two entity versions.
type LabelChanges struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// Empty reports whether no label moved in either direction.
func (l *LabelChanges) Empty() bool {
	return l == nil || (len(l.Added) == 0 && len(l.Removed) == 0)
}

// EndpointChange records a relationship endpoint or type rewire.
type EndpointChange struct {
	OldSourceID string `json:"old_source_id,omitempty"`
	NewSourceID string `json:"new_source_id,omitempty"`
	OldTargetID string `json:"old_target_id,omitempty"`
	NewTargetID string `json:"new_target_id,omitempty"`
}

// ChangeSet is the structured diff between two versions of the same record.
// It is produced transiently by the change detector and embedded in the new
// version's metadata; it is never persisted on its own.
type ChangeSet struct {
	Labels     *LabelChanges              `json:"labels,omitempty"`
	Type       *PropertyChange            `json:"type,omitempty"`
	Endpoints  *EndpointChange            `json:"endpoints,omitempty"`
	Properties map[string]*PropertyChange `json:"properties,omitempty"`
}

// Empty reports whether the change set carries no significant difference.
// An empty change set means the tracker must not create a new version.
func (c *ChangeSet) Empty() bool {
	if c == nil {
		return true
	}
	return c.Labels.Empty() && c.Type == nil && c.Endpoints == nil && len(c.Properties) == 0
}

// Clone returns a deep copy of the change set.
func (c *ChangeSet) Clone() *ChangeSet {
	if c == nil {
		return nil
	}
	clone := &ChangeSet{}
	if c.Labels != nil {
		clone.Labels = &LabelChanges{
			Added:   append([]string(nil), c.Labels.Added...),
			Removed: append([]string(nil), c.Labels.Removed...),
		}
	}
	if c.Type != nil {
		t := *c.Type
		clone.Type = &t
	}
	if c.Endpoints != nil {
		e := *c.Endpoints
		clone.Endpoints = &e
	}
	if c.Properties != nil {
		clone.Properties = make(map[string]*PropertyChange, len(c.Properties))
		for k, v := range c.Properties {
			pc := *v
			clone.Properties[k] = &pc
		}
	}
	return clone
}
