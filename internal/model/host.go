package model

import (
	"database/sql/driver"
	"encoding/json"
	"reflect"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Host represents the host record stored in the database. Canonical facts,
// namespaced facts and tags live in jsonb columns so the reconciliation
// logic stays in one place instead of being spread over join tables.
type Host struct {
	ID             string         `json:"id" gorm:"type:uuid;primaryKey"`
	Account        string         `json:"account" gorm:"type:varchar(10);index;not null"`
	DisplayName    string         `json:"display_name" gorm:"type:varchar(200)"`
	CanonicalFacts CanonicalFacts `json:"canonical_facts" gorm:"type:jsonb"`
	Facts          FactNamespaces `json:"facts" gorm:"type:jsonb"`
	Tags           TagList        `json:"tags" gorm:"type:jsonb"`
	CreatedAt      time.Time      `json:"created" gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated" gorm:"autoUpdateTime"`
}

// BeforeCreate assigns the server-side host ID when the caller has not
// already reserved one.
func (h *Host) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	return nil
}

// FactNamespace is one named bucket of arbitrary key/value metadata.
type FactNamespace struct {
	Namespace string                 `json:"namespace"`
	Facts     map[string]interface{} `json:"facts"`
}

// FactNamespaces is an ordered sequence of namespace entries. Namespaces
// are unique within the sequence and insertion order is preserved; both
// are observable by clients.
type FactNamespaces []FactNamespace

// Value implements driver.Valuer.
func (f FactNamespaces) Value() (driver.Value, error) {
	if f == nil {
		return json.Marshal(FactNamespaces{})
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner.
func (f *FactNamespaces) Scan(value interface{}) error {
	return scanJSON(f, value)
}

// Get returns the fact mapping of the given namespace, or nil.
func (f FactNamespaces) Get(namespace string) map[string]interface{} {
	for _, ns := range f {
		if ns.Namespace == namespace {
			return ns.Facts
		}
	}
	return nil
}

// Replace replaces the namespace's mapping wholesale, appending the
// namespace when it does not exist yet. Returns true when the stored
// content changed.
func (f *FactNamespaces) Replace(namespace string, facts map[string]interface{}) bool {
	for i, ns := range *f {
		if ns.Namespace == namespace {
			if reflect.DeepEqual(ns.Facts, facts) {
				return false
			}
			(*f)[i].Facts = facts
			return true
		}
	}
	*f = append(*f, FactNamespace{Namespace: namespace, Facts: facts})
	return true
}

// Patch shallow-merges facts into an existing namespace, incoming keys
// overwriting matching ones. A namespace that is not present is left
// alone; Patch never creates namespaces. Returns true when the stored
// content changed.
func (f FactNamespaces) Patch(namespace string, facts map[string]interface{}) bool {
	for i, ns := range f {
		if ns.Namespace != namespace {
			continue
		}
		changed := false
		merged := make(map[string]interface{}, len(ns.Facts)+len(facts))
		for k, v := range ns.Facts {
			merged[k] = v
		}
		for k, v := range facts {
			if old, ok := merged[k]; !ok || !reflect.DeepEqual(old, v) {
				changed = true
			}
			merged[k] = v
		}
		if changed {
			f[i].Facts = merged
		}
		return changed
	}
	return false
}

// TagList is an ordered sequence of opaque tag strings. Tags are unique
// per host and keep their first-insertion order. Tag structure such as
// "namespace/key:value" is a producer convention, not enforced here.
type TagList []string

// Value implements driver.Valuer.
func (t TagList) Value() (driver.Value, error) {
	if t == nil {
		return json.Marshal(TagList{})
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner.
func (t *TagList) Scan(value interface{}) error {
	return scanJSON(t, value)
}

// Contains reports whether the tag is present.
func (t TagList) Contains(tag string) bool {
	for _, v := range t {
		if v == tag {
			return true
		}
	}
	return false
}

// ContainsAll reports whether every given tag is present.
func (t TagList) ContainsAll(tags []string) bool {
	for _, tag := range tags {
		if !t.Contains(tag) {
			return false
		}
	}
	return true
}

// ContainsAny reports whether at least one given tag is present.
func (t TagList) ContainsAny(tags []string) bool {
	for _, tag := range tags {
		if t.Contains(tag) {
			return true
		}
	}
	return false
}

// Add appends the tag unless it is already present. Returns true when
// the list changed.
func (t *TagList) Add(tag string) bool {
	if t.Contains(tag) {
		return false
	}
	*t = append(*t, tag)
	return true
}

// Remove removes the tag if present. Returns true when the list changed.
func (t *TagList) Remove(tag string) bool {
	for i, v := range *t {
		if v == tag {
			*t = append((*t)[:i], (*t)[i+1:]...)
			return true
		}
	}
	return false
}
