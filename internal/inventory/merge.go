package inventory

import (
	"github.com/vkrizan/insights-host-inventory/internal/model"
)

// mergeSubmission folds an incoming submission into a matched record,
// field by field:
//
//   - canonical facts: each fact present on the submission overwrites the
//     stored one; absent facts stay untouched.
//   - display name: overwritten only when the submission carries one.
//   - facts: an incoming namespace replaces the stored namespace's mapping
//     wholesale; new namespaces are appended in submission order;
//     namespaces the submission does not mention stay untouched.
//   - tags: set union, stored order first, then new incoming tags in their
//     given order. Submissions never remove tags; removal goes through
//     RemoveTag.
//
// ID, account and creation time are never touched. Re-applying an
// identical submission leaves the record's content unchanged, so the
// operation is idempotent up to the updated timestamp.
func mergeSubmission(host *model.Host, sub *model.HostSubmission) {
	host.CanonicalFacts.Merge(sub.CanonicalFacts)

	if sub.DisplayName != nil && *sub.DisplayName != "" {
		host.DisplayName = *sub.DisplayName
	}

	for _, ns := range sub.Facts {
		host.Facts.Replace(ns.Namespace, ns.Facts)
	}

	for _, tag := range sub.Tags {
		host.Tags.Add(tag)
	}
}
