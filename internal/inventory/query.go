package inventory

import (
	"strings"
	"time"

	"github.com/vkrizan/insights-host-inventory/internal/model"
	"github.com/vkrizan/insights-host-inventory/pkg/config"
	"github.com/vkrizan/insights-host-inventory/prometheus"
)

// Filter is the set of composable host query predicates. Filters combine
// with AND semantics; a zero Filter selects every host of the account.
type Filter struct {
	// IDs restricts the result to hosts with one of the given IDs.
	IDs []string
	// Tags restricts the result to hosts carrying the given tags. How
	// multiple tags combine is governed by Options.TagFilterMode.
	Tags []string
	// DisplayName restricts the result to hosts whose display name
	// contains the given substring, case sensitively.
	DisplayName string
}

// Query returns the account's hosts matching the filter, in creation
// order. Tag and display-name predicates are evaluated in process for the
// same reason the matcher is: the values live in jsonb columns and the
// substring/containment rules must behave identically on every backend.
func (s *Service) Query(account string, filter Filter) ([]model.Host, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	q := s.db.Where("account = ?", account)
	if len(filter.IDs) > 0 {
		q = q.Where("id IN ?", filter.IDs)
	}

	var hosts []model.Host
	// Secondary id key keeps the order stable when creation timestamps tie
	if err := q.Order("created_at, id").Find(&hosts).Error; err != nil {
		return nil, err
	}

	results := make([]model.Host, 0, len(hosts))
	for _, host := range hosts {
		if filter.DisplayName != "" && !strings.Contains(host.DisplayName, filter.DisplayName) {
			continue
		}
		if len(filter.Tags) > 0 && !s.tagsMatch(host.Tags, filter.Tags) {
			continue
		}
		results = append(results, host)
	}
	return results, nil
}

func (s *Service) tagsMatch(tags model.TagList, wanted []string) bool {
	if s.opts.TagFilterMode == config.TagFilterAny {
		return tags.ContainsAny(wanted)
	}
	return tags.ContainsAll(wanted)
}

// Get looks up hosts of the account by ID. A single-ID lookup that finds
// nothing reports ErrHostNotFound; multi-ID lookups tolerate unknown IDs
// and return whatever exists.
func (s *Service) Get(account string, ids []string) ([]model.Host, error) {
	hosts, err := s.Query(account, Filter{IDs: ids})
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 && len(ids) == 1 {
		return nil, ErrHostNotFound
	}
	return hosts, nil
}
