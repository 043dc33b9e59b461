package domain

import "context"

// ProductLookup fetches a single product record
type ProductLookup interface {
	GetProduct(ctx context.Context, productID int) (*Product, error)
}

// RecommendationLookup fetches the recommendations of a product.
// A successful call never returns a nil slice.
type RecommendationLookup interface {
	GetRecommendations(ctx context.Context, productID int) ([]Recommendation, error)
}

// ReviewLookup fetches the reviews of a product.
// A successful call never returns a nil slice.
type ReviewLookup interface {
	GetReviews(ctx context.Context, productID int) ([]Review, error)
}
