package domain

// CartLine is one product in the shopping cart. Price is in whole rupees.
type CartLine struct {
	ID       string
	Name     string
	Price    int64
	Image    string
	Quantity int
}

// Subtotal returns price × quantity for the line.
func (l CartLine) Subtotal() int64 {
	return l.Price * int64(l.Quantity)
}

// ShippingLabel is what the storefront shows for shipping. There is no shipping charge.
const ShippingLabel = "Free"
