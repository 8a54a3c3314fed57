package notify

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	// ChannelWhatsApp is the only outbound channel the storefront uses.
	ChannelWhatsApp = "whatsapp"

	defaultWhatsAppNumber = "919876543210"
	defaultShopName       = "shop.with.mukuu"
)

// OutboundMessage describes a message for the shopper to send. Composing one has no side effects.
type OutboundMessage struct {
	DispatchID  string `json:"dispatchId,omitempty"`
	Channel     string `json:"channel"`
	Destination string `json:"destination"`
	Text        string `json:"text"`
	URL         string `json:"url"`
	OrderCode   string `json:"orderCode"`
	Total       int64  `json:"total"`
}

// Composer builds outbound messages for the shop's WhatsApp number.
type Composer struct {
	number   string
	shopName string
}

// NewComposer constructs a Composer. Empty arguments fall back to the storefront defaults.
func NewComposer(number, shopName string) (*Composer, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		number = defaultWhatsAppNumber
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return nil, errors.New("notify: whatsapp number must contain digits only")
		}
	}
	shopName = strings.TrimSpace(shopName)
	if shopName == "" {
		shopName = defaultShopName
	}
	return &Composer{number: number, shopName: shopName}, nil
}

// OrderPlaced builds the post-checkout message for order code and total.
func (c *Composer) OrderPlaced(code string, total int64) OutboundMessage {
	text := fmt.Sprintf("Hi! I just placed order #%s on %s.\nTotal Amount: ₹%d", code, c.shopName, total)
	return OutboundMessage{
		Channel:     ChannelWhatsApp,
		Destination: c.number,
		Text:        text,
		URL:         "https://wa.me/" + c.number + "?text=" + encodeURIComponent(text),
		OrderCode:   code,
		Total:       total,
	}
}

var uriComponentUnescapes = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeURIComponent matches the browser function of the same name so links
// built here are byte-identical to those the storefront page builds.
func encodeURIComponent(s string) string {
	return uriComponentUnescapes.Replace(url.QueryEscape(s))
}
