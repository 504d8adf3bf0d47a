package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// CanonicalFacts is the fixed set of identity-bearing fields of a host.
// Pointer and slice fields distinguish absent (nil, leave untouched on
// merge) from present-but-empty, which the merge engine relies on.
// Stored as a single jsonb column on the hosts table.
type CanonicalFacts struct {
	InsightsID            *string  `json:"insights_id,omitempty"`
	RHELMachineID         *string  `json:"rhel_machine_id,omitempty"`
	SubscriptionManagerID *string  `json:"subscription_manager_id,omitempty"`
	SatelliteID           *string  `json:"satellite_id,omitempty"`
	BIOSUUID              *string  `json:"bios_uuid,omitempty"`
	FQDN                  *string  `json:"fqdn,omitempty"`
	IPAddresses           []string `json:"ip_addresses,omitempty"`
	MACAddresses          []string `json:"mac_addresses,omitempty"`
}

// IsEmpty reports whether no canonical fact is present at all.
func (cf CanonicalFacts) IsEmpty() bool {
	return cf.InsightsID == nil &&
		cf.RHELMachineID == nil &&
		cf.SubscriptionManagerID == nil &&
		cf.SatelliteID == nil &&
		cf.BIOSUUID == nil &&
		cf.FQDN == nil &&
		len(cf.IPAddresses) == 0 &&
		len(cf.MACAddresses) == 0
}

// SharesIdentityWith reports whether the two fact sets identify the same
// host: any single-valued fact present on both sides with an equal value,
// or any shared element of a multi-valued fact. Multi-valued facts
// deliberately match on overlap rather than full equality so that partial
// NIC or IP changes do not break identity.
func (cf CanonicalFacts) SharesIdentityWith(other CanonicalFacts) bool {
	if stringFactEqual(cf.InsightsID, other.InsightsID) ||
		stringFactEqual(cf.RHELMachineID, other.RHELMachineID) ||
		stringFactEqual(cf.SubscriptionManagerID, other.SubscriptionManagerID) ||
		stringFactEqual(cf.SatelliteID, other.SatelliteID) ||
		stringFactEqual(cf.BIOSUUID, other.BIOSUUID) ||
		stringFactEqual(cf.FQDN, other.FQDN) {
		return true
	}
	return listsOverlap(cf.IPAddresses, other.IPAddresses) ||
		listsOverlap(cf.MACAddresses, other.MACAddresses)
}

// Merge overwrites each fact present on the incoming set, last writer
// wins per field. Facts absent from the incoming set are left untouched,
// so a submission can add a newly learned fact without erasing known ones.
func (cf *CanonicalFacts) Merge(incoming CanonicalFacts) {
	if incoming.InsightsID != nil {
		cf.InsightsID = incoming.InsightsID
	}
	if incoming.RHELMachineID != nil {
		cf.RHELMachineID = incoming.RHELMachineID
	}
	if incoming.SubscriptionManagerID != nil {
		cf.SubscriptionManagerID = incoming.SubscriptionManagerID
	}
	if incoming.SatelliteID != nil {
		cf.SatelliteID = incoming.SatelliteID
	}
	if incoming.BIOSUUID != nil {
		cf.BIOSUUID = incoming.BIOSUUID
	}
	if incoming.FQDN != nil {
		cf.FQDN = incoming.FQDN
	}
	if incoming.IPAddresses != nil {
		cf.IPAddresses = incoming.IPAddresses
	}
	if incoming.MACAddresses != nil {
		cf.MACAddresses = incoming.MACAddresses
	}
}

// Value implements driver.Valuer, serializing the fact set to JSON.
func (cf CanonicalFacts) Value() (driver.Value, error) {
	return json.Marshal(cf)
}

// Scan implements sql.Scanner, deserializing the fact set from JSON.
func (cf *CanonicalFacts) Scan(value interface{}) error {
	return scanJSON(cf, value)
}

func stringFactEqual(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func listsOverlap(a, b []string) bool {
	for _, va := range a {
		for _, vb := range b {
			if va == vb {
				return true
			}
		}
	}
	return false
}

// scanJSON unmarshals a jsonb column value that drivers may hand over as
// either bytes or a string.
func scanJSON(dest interface{}, value interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
}
