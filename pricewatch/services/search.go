package services

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/hadef-dev/pricewatch/pricewatch/database/models"
)

// productSearchItems implements fuzzy.Source over a user's tracked products.
type productSearchItems []productSearchItem

type productSearchItem struct {
	Product *models.Product
	Name    string
}

func (items productSearchItems) Len() int {
	return len(items)
}

func (items productSearchItems) String(i int) string {
	return items[i].Name
}

// ProductSearchService matches tracked products by title so users don't have
// to paste exact product ids when filtering their list.
type ProductSearchService struct{}

func NewProductSearchService() *ProductSearchService {
	return &ProductSearchService{}
}

// Search returns products whose titles fuzzy-match query, ordered by
// relevance. An empty query returns the input unchanged.
func (s *ProductSearchService) Search(products []*models.Product, query string) []*models.Product {
	if len(products) == 0 {
		return nil
	}
	if strings.TrimSpace(query) == "" {
		return products
	}

	items := make(productSearchItems, len(products))
	for i, product := range products {
		items[i] = productSearchItem{
			Product: product,
			Name:    normalizeTitle(product.Title),
		}
	}

	matches := fuzzy.FindFrom(normalizeTitle(query), items)

	results := make([]*models.Product, len(matches))
	for i, match := range matches {
		results[i] = items[match.Index].Product
	}
	return results
}

// SearchOne returns the best match for query, or nil when nothing matches.
func (s *ProductSearchService) SearchOne(products []*models.Product, query string) *models.Product {
	results := s.Search(products, query)
	if len(results) == 0 {
		return nil
	}
	return results[0]
}

// normalizeTitle flattens marketplace titles for case-insensitive matching.
func normalizeTitle(title string) string {
	normalized := strings.ReplaceAll(title, "_", " ")
	normalized = strings.ReplaceAll(normalized, "-", " ")
	normalized = strings.ToLower(normalized)
	return strings.Join(strings.Fields(normalized), " ")
}
