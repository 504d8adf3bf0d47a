// Package inventory implements the host reconciliation core: deciding
// whether a submission refers to an already known host, merging it into
// the stored record, and the fact, tag and query operations on stored
// hosts. The HTTP layer above it only binds requests and maps errors.
package inventory

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vkrizan/insights-host-inventory/internal/model"
	"github.com/vkrizan/insights-host-inventory/pkg/config"
	"github.com/vkrizan/insights-host-inventory/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options carries the core's policy knobs.
type Options struct {
	// TagFilterMode is config.TagFilterAll or config.TagFilterAny.
	TagFilterMode string
}

// Service is the host reconciliation core. All operations are scoped to
// one account.
type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	opts Options

	// Transaction options for the reconcile path, see CreateOrUpdate.
	reconcileTxOpts []*sql.TxOptions
}

// New creates a Service on top of the given database handle.
func New(db *gorm.DB, log *zap.Logger, opts Options) *Service {
	if opts.TagFilterMode == "" {
		opts.TagFilterMode = config.TagFilterAll
	}

	// Reconciliation needs serializable isolation. sqlite transactions
	// are serializable already and its driver rejects explicit isolation
	// levels, so only ask for it elsewhere.
	txOpts := []*sql.TxOptions{{Isolation: sql.LevelSerializable}}
	if db.Dialector.Name() == "sqlite" {
		txOpts = nil
	}

	return &Service{db: db, log: log, opts: opts, reconcileTxOpts: txOpts}
}

// CreateOrUpdate reconciles a submission against the account's hosts.
// When no existing host shares a canonical fact with the submission a new
// record is created and isNew is true; otherwise the submission is merged
// into the matched record. The matcher lookup and the write run in one
// serializable transaction: when two submissions race for the same
// identity the store commits one and aborts the other with a
// serialization failure instead of letting two records diverge. Retrying
// the aborted submission is the caller's concern.
func (s *Service) CreateOrUpdate(account string, sub *model.HostSubmission) (host *model.Host, isNew bool, err error) {
	if err := validateSubmission(account, sub); err != nil {
		return nil, false, err
	}

	defer prometheus.TrackDBOperation("reconcile")(time.Now())

	// Serializable isolation is load-bearing here: at the default level a
	// concurrent transaction inserting the same identity is invisible to
	// the matcher's scan, and nothing else would stop both from
	// committing. A row lock would not do, there is no row yet to lock
	// when the identity is new.
	err = s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := findExisting(tx, account, sub.CanonicalFacts)
		if err != nil {
			return err
		}

		if existing == nil {
			created := newHost(account, sub)
			if err := tx.Create(created).Error; err != nil {
				return err
			}
			host = created
			isNew = true
			return nil
		}

		mergeSubmission(existing, sub)
		if err := tx.Save(existing).Error; err != nil {
			return err
		}
		host = existing
		return nil
	}, s.reconcileTxOpts...)
	if err != nil {
		if errors.Is(err, ErrAmbiguousIdentity) {
			prometheus.RecordAmbiguousMatch()
			s.log.Warn("Ambiguous canonical fact match",
				zap.String("account", account))
		}
		return nil, false, err
	}

	s.log.Info("Host reconciled",
		zap.String("host_id", host.ID),
		zap.String("account", account),
		zap.Bool("is_new", isNew))
	return host, isNew, nil
}

func validateSubmission(account string, sub *model.HostSubmission) error {
	if sub.Account == "" {
		return validationErrorf("account is required")
	}
	if sub.Account != account {
		return validationErrorf("account %q does not match the authenticated identity", sub.Account)
	}
	if sub.CanonicalFacts.IsEmpty() {
		return validationErrorf("at least one canonical fact is required")
	}
	return nil
}

// newHost builds a brand-new record from a submission. The ID is reserved
// up front so the display name can fall back to it.
func newHost(account string, sub *model.HostSubmission) *model.Host {
	host := &model.Host{
		ID:             newHostID(),
		Account:        account,
		CanonicalFacts: sub.CanonicalFacts,
		Facts:          sub.Facts,
		Tags:           dedupeTags(sub.Tags),
	}
	host.DisplayName = defaultDisplayName(host, sub)
	return host
}

// defaultDisplayName picks the stored display name for a new host:
// the submitted name, else the FQDN, else the insights ID, else the
// freshly assigned host ID.
func defaultDisplayName(host *model.Host, sub *model.HostSubmission) string {
	switch {
	case sub.DisplayName != nil && *sub.DisplayName != "":
		return *sub.DisplayName
	case sub.CanonicalFacts.FQDN != nil && *sub.CanonicalFacts.FQDN != "":
		return *sub.CanonicalFacts.FQDN
	case sub.CanonicalFacts.InsightsID != nil && *sub.CanonicalFacts.InsightsID != "":
		return *sub.CanonicalFacts.InsightsID
	default:
		return host.ID
	}
}

// dedupeTags drops repeated tag strings while keeping first-insertion
// order, upholding the uniqueness invariant on freshly created hosts.
func dedupeTags(tags model.TagList) model.TagList {
	deduped := model.TagList{}
	for _, tag := range tags {
		deduped.Add(tag)
	}
	return deduped
}

func newHostID() string {
	return uuid.New().String()
}

// CountByAccount returns the number of hosts of an account.
func (s *Service) CountByAccount(account string) (int64, error) {
	var count int64
	err := s.db.Model(&model.Host{}).Where("account = ?", account).Count(&count).Error
	return count, err
}
