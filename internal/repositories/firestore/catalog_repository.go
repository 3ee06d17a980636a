package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/shelfmarket/api/internal/domain"
	pfirestore "github.com/shelfmarket/api/internal/platform/firestore"
	"github.com/shelfmarket/api/internal/repositories"
)

const (
	catalogCollection = "books"
)

// CatalogRepository reads listed books maintained by the catalog service.
type CatalogRepository struct {
	base *pfirestore.BaseRepository[catalogDocument]
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		base: pfirestore.NewBaseRepository[catalogDocument](provider, catalogCollection, nil, nil),
	}, nil
}

// LookupItems resolves the ids in a single batched read. Unknown ids are left out of the result.
func (r *CatalogRepository) LookupItems(ctx context.Context, itemIDs []string) (map[string]domain.CatalogItem, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("catalog repository not initialised")
	}

	seen := make(map[string]struct{}, len(itemIDs))
	ids := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		ids = append(ids, trimmed)
	}

	result := make(map[string]domain.CatalogItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	docs, err := r.base.GetAll(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		result[doc.ID] = domain.CatalogItem{
			ID:       doc.ID,
			Title:    doc.Data.Title,
			Author:   doc.Data.Author,
			Price:    doc.Data.Price,
			SellerID: doc.Data.SellerID,
		}
	}
	return result, nil
}

type catalogDocument struct {
	Title    string `firestore:"title"`
	Author   string `firestore:"author"`
	Price    int64  `firestore:"price"`
	SellerID string `firestore:"sellerId"`
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)
