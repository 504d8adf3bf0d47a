package model

// HostSubmission is the inbound description of a machine handed to the
// reconciliation core. Optional fields use pointers or nil slices so that
// "absent" (leave the stored value untouched) stays distinguishable from
// "present but empty".
type HostSubmission struct {
	Account        string         `json:"account" validate:"required,max=10"`
	DisplayName    *string        `json:"display_name,omitempty" validate:"omitempty,max=200"`
	CanonicalFacts CanonicalFacts `json:"canonical_facts"`
	Facts          FactNamespaces `json:"facts,omitempty"`
	Tags           TagList        `json:"tags,omitempty"`
}
