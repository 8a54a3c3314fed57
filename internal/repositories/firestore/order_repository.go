package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/pulkitk069-maker/Shop.with.mukuu1/internal/domain"
	pfirestore "github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/firestore"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository stores placed orders in the flat orders collection the admin panel reads.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

type orderDocument struct {
	UserID          string              `firestore:"user_id"`
	OrderCode       string              `firestore:"order_code"`
	CustomerName    string              `firestore:"customer_name"`
	CustomerEmail   string              `firestore:"customer_email"`
	CustomerPhone   string              `firestore:"customer_phone"`
	CustomerAddress string              `firestore:"customer_address"`
	OrderItems      []orderItemDocument `firestore:"order_items"`
	TotalAmount     int64               `firestore:"total_amount"`
	Notes           string              `firestore:"notes"`
	Status          string              `firestore:"status"`
	CreatedAt       time.Time           `firestore:"created_at"`
}

type orderItemDocument struct {
	ProductID   string `firestore:"product_id"`
	ProductName string `firestore:"product_name"`
	Quantity    int    `firestore:"quantity"`
	Price       int64  `firestore:"price"`
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base: pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil),
	}, nil
}

// Create writes the order as a single new document.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (string, error) {
	if r == nil || r.base == nil {
		return "", errors.New("order repository not initialised")
	}
	return r.base.Create(ctx, encodeOrder(order))
}

// ListByUser returns the orders placed by one user.
func (r *OrderRepository) ListByUser(ctx context.Context, query repositories.OrderQuery) ([]domain.Order, error) {
	userID := strings.TrimSpace(query.UserID)
	if userID == "" {
		return nil, errors.New("order repository: user id is required")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("user_id", "==", userID)
		if query.NewestFirst {
			q = q.OrderBy("created_at", firestore.Desc)
		}
		if query.Limit > 0 {
			q = q.Limit(query.Limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order := decodeOrder(doc.Data)
		order.ID = doc.ID
		if order.CreatedAt.IsZero() {
			order.CreatedAt = doc.CreateTime
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func encodeOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		UserID:          order.UserID,
		OrderCode:       order.OrderCode,
		CustomerName:    order.Customer.Name,
		CustomerEmail:   order.Customer.Email,
		CustomerPhone:   order.Customer.Phone,
		CustomerAddress: order.Customer.Address,
		OrderItems:      make([]orderItemDocument, 0, len(order.Items)),
		TotalAmount:     order.TotalAmount,
		Notes:           order.Customer.Notes,
		Status:          string(order.Status),
		CreatedAt:       order.CreatedAt.UTC(),
	}
	for _, item := range order.Items {
		doc.OrderItems = append(doc.OrderItems, orderItemDocument{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return doc
}

func decodeOrder(doc orderDocument) domain.Order {
	order := domain.Order{
		OrderCode: doc.OrderCode,
		UserID:    doc.UserID,
		Customer: domain.CustomerInfo{
			Name:    doc.CustomerName,
			Email:   doc.CustomerEmail,
			Phone:   doc.CustomerPhone,
			Address: doc.CustomerAddress,
			Notes:   doc.Notes,
		},
		Items:       make([]domain.OrderItem, 0, len(doc.OrderItems)),
		TotalAmount: doc.TotalAmount,
		Status:      domain.ParseOrderStatus(doc.Status),
		CreatedAt:   doc.CreatedAt,
	}
	for _, item := range doc.OrderItems {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return order
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
