// Package catalog builds catalog and offer export documents from the
// storefront catalog and keeps the option identity mapping in sync.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
)

// ResolveRequest describes one sellable variant to identify
type ResolveRequest struct {
	// ProductID is the root product id
	ProductID   int64
	VariationID *int64
	Name        string
	Snapshot    catalog.AttributeSnapshot
	// IgnoreAttributesForSimple keys simple products on their id alone
	IgnoreAttributesForSimple bool
}

// IdentityResolver maps variants to stable option identifiers
type IdentityResolver struct {
	repo   catalog.OptionRepository
	logger *zap.Logger
}

// NewIdentityResolver creates a new IdentityResolver
func NewIdentityResolver(repo catalog.OptionRepository, logger *zap.Logger) *IdentityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityResolver{
		repo:   repo,
		logger: logger,
	}
}

// Hash returns the identity hash a request resolves to
func (r *IdentityResolver) Hash(req ResolveRequest) string {
	return catalog.IdentityHash(effectiveSnapshot(req), req.ProductID)
}

func effectiveSnapshot(req ResolveRequest) catalog.AttributeSnapshot {
	if req.VariationID == nil && req.IgnoreAttributesForSimple {
		return catalog.AttributeSnapshot{}
	}
	return req.Snapshot
}

// Resolve returns the option id and hash for a variant. Unknown variants are
// inserted; known ones only get their variation id and name refreshed.
func (r *IdentityResolver) Resolve(ctx context.Context, req ResolveRequest) (int64, string, error) {
	snapshot := effectiveSnapshot(req)
	hash := catalog.IdentityHash(snapshot, req.ProductID)

	existing, err := r.repo.FindByHash(ctx, hash)
	switch {
	case err == nil:
		if metadataChanged(existing, req) {
			if err := r.repo.UpdateMetadata(ctx, hash, req.VariationID, req.Name); err != nil {
				return 0, hash, err
			}
		}
		return existing.OptionID, hash, nil
	case !errors.Is(err, catalog.ErrOptionNotFound):
		return 0, hash, err
	}

	option := &catalog.ProductOption{
		ProductID:     req.ProductID,
		VariationID:   req.VariationID,
		ProductName:   req.Name,
		AttributeData: catalog.SnapshotData(snapshot),
		Hash:          hash,
	}
	inserted, err := r.repo.InsertIgnore(ctx, option)
	if err != nil {
		return 0, hash, err
	}
	if inserted && option.OptionID > 0 {
		return option.OptionID, hash, nil
	}

	// Another writer inserted the hash first; its row is authoritative
	stored, err := r.repo.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, catalog.ErrOptionNotFound) {
			return 0, hash, fmt.Errorf("%w: hash %s", catalog.ErrIdentifierResolutionFailed, hash)
		}
		return 0, hash, err
	}
	return stored.OptionID, hash, nil
}

func metadataChanged(o *catalog.ProductOption, req ResolveRequest) bool {
	if o.ProductName != req.Name {
		return true
	}
	switch {
	case o.VariationID == nil && req.VariationID == nil:
		return false
	case o.VariationID == nil || req.VariationID == nil:
		return true
	}
	return *o.VariationID != *req.VariationID
}

// Reconcile removes every option whose hash is not in the live set. An empty
// live set is refused so a failed build never wipes the mapping.
func (r *IdentityResolver) Reconcile(ctx context.Context, liveHashes []string) (int64, error) {
	if len(liveHashes) == 0 {
		return 0, catalog.ErrEmptyLiveSet
	}
	removed, err := r.repo.DeleteWhereHashNotIn(ctx, liveHashes)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		r.logger.Info("Removed stale product options",
			zap.Int64("removed", removed),
			zap.Int("live", len(liveHashes)),
		)
	}
	return removed, nil
}

// NewSession starts a per-build session
func (r *IdentityResolver) NewSession() *Session {
	return &Session{
		resolver: r,
		live:     make(map[string]int64),
	}
}

// ---------------------------------------------------------------------------
// Session
// ---------------------------------------------------------------------------

// Session resolves identities for one full build and remembers every hash it
// produced, which becomes the live set for reconciliation.
type Session struct {
	resolver *IdentityResolver

	mu   sync.Mutex
	live map[string]int64
}

// Resolve resolves one variant, reusing ids already resolved in this build
func (s *Session) Resolve(ctx context.Context, req ResolveRequest) (int64, error) {
	hash := s.resolver.Hash(req)

	s.mu.Lock()
	id, ok := s.live[hash]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	id, hash, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.live[hash] = id
	s.mu.Unlock()
	return id, nil
}

// LiveHashes returns the hashes resolved so far, sorted
func (s *Session) LiveHashes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	hashes := make([]string, 0, len(s.live))
	for h := range s.live {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	return hashes
}

// Reconcile removes options not resolved in this build
func (s *Session) Reconcile(ctx context.Context) (int64, error) {
	return s.resolver.Reconcile(ctx, s.LiveHashes())
}
