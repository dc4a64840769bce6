package catalog

import (
	"context"

	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
)

// maxCategoryDepth bounds the walk to the root in case of a parent cycle
const maxCategoryDepth = 32

// categoryResolver builds category trees and caches categories for one build
type categoryResolver struct {
	store     catalog.Store
	languages []string
	logger    *zap.Logger
	cache     map[int64]*catalog.Category
}

func newCategoryResolver(store catalog.Store, languages []string, logger *zap.Logger) *categoryResolver {
	return &categoryResolver{
		store:     store,
		languages: languages,
		logger:    logger,
		cache:     make(map[int64]*catalog.Category),
	}
}

// Tree returns the merged category tree for the given leaf categories.
// A category that cannot be loaded drops its path only.
func (r *categoryResolver) Tree(ctx context.Context, leafIDs []int64) []*catalog.CategoryNode {
	paths := make([][]catalog.CategoryNode, 0, len(leafIDs))
	for _, id := range leafIDs {
		path, err := r.path(ctx, id)
		if err != nil {
			r.logger.Warn("Skipping category path",
				zap.Int64("category_id", id),
				zap.Error(err),
			)
			continue
		}
		if len(path) > 0 {
			paths = append(paths, path)
		}
	}
	return catalog.MergeCategoryPaths(paths)
}

// path walks from the leaf to the root and returns the root-first path
func (r *categoryResolver) path(ctx context.Context, leafID int64) ([]catalog.CategoryNode, error) {
	var reversed []catalog.CategoryNode
	seen := make(map[int64]struct{})
	id := leafID
	for id > 0 && len(reversed) < maxCategoryDepth {
		if _, loop := seen[id]; loop {
			break
		}
		seen[id] = struct{}{}

		c, err := r.category(ctx, id)
		if err != nil {
			return nil, err
		}
		reversed = append(reversed, r.node(c))
		id = c.ParentID
	}

	path := make([]catalog.CategoryNode, len(reversed))
	for i, n := range reversed {
		path[len(reversed)-1-i] = n
	}
	return path, nil
}

func (r *categoryResolver) category(ctx context.Context, id int64) (*catalog.Category, error) {
	if c, ok := r.cache[id]; ok {
		return c, nil
	}
	c, err := r.store.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache[id] = c
	return c, nil
}

func (r *categoryResolver) node(c *catalog.Category) catalog.CategoryNode {
	n := catalog.CategoryNode{ID: c.ID}
	for _, lang := range r.languages {
		if name := c.NameFor(lang); name != "" {
			n.Titles = append(n.Titles, catalog.LocalizedText{Language: lang, Value: name})
		}
	}
	return n
}
