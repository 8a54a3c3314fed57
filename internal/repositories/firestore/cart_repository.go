package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/pulkitk069-maker/Shop.with.mukuu1/internal/domain"
	pfirestore "github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/firestore"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/repositories"
)

const cartCollection = "carts"

// CartRepository stores each browser session's cart as carts/{sessionID}.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
	now  func() time.Time
}

type cartDocument struct {
	Items     []cartLineDocument `firestore:"items"`
	UpdatedAt time.Time          `firestore:"updated_at"`
}

type cartLineDocument struct {
	ID       string `firestore:"id"`
	Name     string `firestore:"name"`
	Price    int64  `firestore:"price"`
	Image    string `firestore:"image,omitempty"`
	Quantity int    `firestore:"quantity"`
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base: pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil),
		now:  time.Now,
	}, nil
}

// LoadCart returns the stored lines, or nil when the session has never saved a cart.
func (r *CartRepository) LoadCart(ctx context.Context, sessionID string) ([]domain.CartLine, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("cart repository: session id is required")
	}
	doc, err := r.base.Get(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	lines := make([]domain.CartLine, 0, len(doc.Data.Items))
	for _, item := range doc.Data.Items {
		if strings.TrimSpace(item.ID) == "" || item.Quantity <= 0 {
			continue
		}
		lines = append(lines, domain.CartLine{
			ID:       item.ID,
			Name:     item.Name,
			Price:    item.Price,
			Image:    item.Image,
			Quantity: item.Quantity,
		})
	}
	return lines, nil
}

// SaveCart overwrites the stored lines. An empty cart removes the document.
func (r *CartRepository) SaveCart(ctx context.Context, sessionID string, lines []domain.CartLine) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("cart repository: session id is required")
	}
	if len(lines) == 0 {
		return r.base.Delete(ctx, sessionID)
	}
	doc := cartDocument{
		Items:     make([]cartLineDocument, 0, len(lines)),
		UpdatedAt: r.now().UTC(),
	}
	for _, line := range lines {
		doc.Items = append(doc.Items, cartLineDocument{
			ID:       line.ID,
			Name:     line.Name,
			Price:    line.Price,
			Image:    line.Image,
			Quantity: line.Quantity,
		})
	}
	return r.base.Set(ctx, sessionID, doc)
}

var _ repositories.CartRepository = (*CartRepository)(nil)
