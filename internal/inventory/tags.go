package inventory

import (
	"github.com/vkrizan/insights-host-inventory/internal/model"
)

// ApplyTag appends the tag to each referenced host that does not carry it
// yet. Reapplying a present tag is a no-op for that host and does not
// bump its updated timestamp. Returns the IDs of hosts actually modified.
func (s *Service) ApplyTag(account string, ids []string, tag string) ([]string, error) {
	if tag == "" {
		return nil, validationErrorf("tag is required")
	}
	return s.editHosts(account, ids, "tag_apply", func(host *model.Host) bool {
		return host.Tags.Add(tag)
	})
}

// RemoveTag removes the tag from each referenced host that carries it,
// leaving the remaining tags in order. Removing an absent tag is a no-op
// for that host. Returns the IDs of hosts actually modified.
func (s *Service) RemoveTag(account string, ids []string, tag string) ([]string, error) {
	if tag == "" {
		return nil, validationErrorf("tag is required")
	}
	return s.editHosts(account, ids, "tag_remove", func(host *model.Host) bool {
		return host.Tags.Remove(tag)
	})
}
