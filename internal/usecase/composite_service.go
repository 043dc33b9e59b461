package usecase

import (
	"context"
	"time"

	"github.com/productcomposite/backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CompositeConfig holds configuration for the composite service
type CompositeConfig struct {
	// Timeout bounds the whole fan-out, 0 means no deadline beyond the caller's
	Timeout time.Duration
	// Address identifies this instance in ServiceAddresses.Composite
	Address string
}

// CompositeService builds the composite product view from the three lookups
type CompositeService struct {
	products        domain.ProductLookup
	recommendations domain.RecommendationLookup
	reviews         domain.ReviewLookup
	timeout         time.Duration
	address         string
	logger          *zap.Logger
}

// NewCompositeService creates a new composite service with dependencies
func NewCompositeService(
	products domain.ProductLookup,
	recommendations domain.RecommendationLookup,
	reviews domain.ReviewLookup,
	config CompositeConfig,
	logger *zap.Logger,
) *CompositeService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CompositeService{
		products:        products,
		recommendations: recommendations,
		reviews:         reviews,
		timeout:         config.Timeout,
		address:         config.Address,
		logger:          logger.Named("composite"),
	}
}

// GetProductAggregate fetches the product, its recommendations and its reviews
// concurrently. A product failure fails the request and is returned unchanged;
// recommendation and review failures degrade to empty lists.
func (s *CompositeService) GetProductAggregate(ctx context.Context, productID int) (*domain.ProductAggregate, error) {
	if productID < 1 {
		return nil, &domain.InvalidProductIDError{ProductID: productID}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var (
		product         *domain.Product
		productErr      error
		recommendations []domain.Recommendation
		reviews         []domain.Review
	)

	// Each goroutine records its own outcome and returns nil, so one failing
	// lookup never cancels the others.
	var g errgroup.Group
	g.Go(func() error {
		product, productErr = s.products.GetProduct(ctx, productID)
		return nil
	})
	g.Go(func() error {
		list, err := s.recommendations.GetRecommendations(ctx, productID)
		if err != nil {
			s.logger.Warn("Recommendations unavailable, returning product without them",
				zap.Int("product_id", productID), zap.Error(err))
			list = []domain.Recommendation{}
		}
		recommendations = list
		return nil
	})
	g.Go(func() error {
		list, err := s.reviews.GetReviews(ctx, productID)
		if err != nil {
			s.logger.Warn("Reviews unavailable, returning product without them",
				zap.Int("product_id", productID), zap.Error(err))
			list = []domain.Review{}
		}
		reviews = list
		return nil
	})
	_ = g.Wait()

	if productErr != nil {
		return nil, productErr
	}

	return s.createAggregate(product, recommendations, reviews), nil
}

// createAggregate maps the backend records onto the composite view
func (s *CompositeService) createAggregate(
	product *domain.Product,
	recommendations []domain.Recommendation,
	reviews []domain.Review,
) *domain.ProductAggregate {
	recommendationSummaries := make([]domain.RecommendationSummary, 0, len(recommendations))
	for _, r := range recommendations {
		recommendationSummaries = append(recommendationSummaries, domain.RecommendationSummary{
			RecommendationID: r.RecommendationID,
			Author:           r.Author,
			Rate:             r.Rate,
			Content:          r.Content,
		})
	}

	reviewSummaries := make([]domain.ReviewSummary, 0, len(reviews))
	for _, r := range reviews {
		reviewSummaries = append(reviewSummaries, domain.ReviewSummary{
			ReviewID: r.ReviewID,
			Author:   r.Author,
			Subject:  r.Subject,
			Content:  r.Content,
		})
	}

	addresses := domain.ServiceAddresses{
		Composite: s.address,
		Product:   product.ServiceAddress,
	}
	if len(reviews) > 0 {
		addresses.Review = reviews[0].ServiceAddress
	}
	if len(recommendations) > 0 {
		addresses.Recommendation = recommendations[0].ServiceAddress
	}

	return &domain.ProductAggregate{
		ProductID:        product.ProductID,
		Name:             product.Name,
		Weight:           product.Weight,
		Recommendations:  recommendationSummaries,
		Reviews:          reviewSummaries,
		ServiceAddresses: addresses,
	}
}
