package inventory

import (
	"errors"
	"time"

	"github.com/vkrizan/insights-host-inventory/internal/model"
	"github.com/vkrizan/insights-host-inventory/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PatchFacts shallow-merges facts into the target namespace of each
// referenced host, incoming keys overwriting matching ones. Hosts that do
// not carry the namespace are left unmodified; patching never creates
// namespaces. Unknown IDs are skipped. Returns the IDs of hosts whose
// stored content actually changed; only those get a fresh updated
// timestamp.
func (s *Service) PatchFacts(account string, ids []string, namespace string, facts map[string]interface{}) ([]string, error) {
	if facts == nil {
		return nil, validationErrorf("facts must be a mapping")
	}
	return s.editHosts(account, ids, "facts_patch", func(host *model.Host) bool {
		return host.Facts.Patch(namespace, facts)
	})
}

// ReplaceFacts replaces the target namespace's mapping wholesale on each
// referenced host. An empty mapping clears the namespace's facts while
// keeping the namespace entry; a namespace the host does not carry yet is
// appended. Unknown IDs are skipped. Returns the IDs of hosts actually
// modified.
func (s *Service) ReplaceFacts(account string, ids []string, namespace string, facts map[string]interface{}) ([]string, error) {
	if facts == nil {
		return nil, validationErrorf("facts must be a mapping")
	}
	return s.editHosts(account, ids, "facts_replace", func(host *model.Host) bool {
		return host.Facts.Replace(namespace, facts)
	})
}

// editHosts applies an edit to each referenced host of the account, one
// transaction per host. Edits are atomic per host but not as a batch:
// unknown IDs and hosts the edit leaves untouched simply stay out of the
// returned set.
func (s *Service) editHosts(account string, ids []string, operation string, edit func(*model.Host) bool) ([]string, error) {
	defer prometheus.TrackDBOperation(operation)(time.Now())

	modified := []string{}
	for _, id := range ids {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			var host model.Host
			if err := tx.Where("id = ? AND account = ?", id, account).First(&host).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			if !edit(&host) {
				return nil
			}
			if err := tx.Save(&host).Error; err != nil {
				return err
			}
			modified = append(modified, id)
			return nil
		})
		if err != nil {
			return modified, err
		}
	}

	s.log.Info("Hosts edited",
		zap.String("operation", operation),
		zap.String("account", account),
		zap.Int("requested", len(ids)),
		zap.Int("modified", len(modified)))
	return modified, nil
}
