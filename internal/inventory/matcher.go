package inventory

import (
	"github.com/vkrizan/insights-host-inventory/internal/model"

	"gorm.io/gorm"
)

// findExisting locates the single host of the account that the
// submission's canonical facts identify. The lookup is two-phase: gather
// every record sharing at least one canonical fact with the submission,
// then require the candidate set to collapse to one record. Two distinct
// candidates mean the submission bridges two known identities, which is
// surfaced as ErrAmbiguousIdentity rather than resolved silently.
//
// Fact overlap is evaluated in process rather than in SQL: the facts live
// in one jsonb column and the multi-valued overlap rule does not map onto
// portable operators. Read-only against the store.
func findExisting(tx *gorm.DB, account string, facts model.CanonicalFacts) (*model.Host, error) {
	var hosts []model.Host
	if err := tx.Where("account = ?", account).Order("created_at, id").Find(&hosts).Error; err != nil {
		return nil, err
	}

	var match *model.Host
	for i := range hosts {
		if !hosts[i].CanonicalFacts.SharesIdentityWith(facts) {
			continue
		}
		if match != nil {
			return nil, ErrAmbiguousIdentity
		}
		match = &hosts[i]
	}
	return match, nil
}
