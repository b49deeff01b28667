package checkout

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ecomstore/checkout-service/internal/order"
)

// metadataVersion tags the shape of the metadata attached to a checkout
// session. In-flight sessions outlive deploys, so any field change must bump
// the version and keep the decoder able to refuse shapes it does not know.
const metadataVersion = 1

const (
	metaKeyVersion  = "v"
	metaKeyUserID   = "user_id"
	metaKeyEmail    = "email"
	metaKeyTotal    = "total"
	metaKeyCart     = "cart"
	metaKeyShipping = "shipping_address"
)

type metadataCartLine struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Image     string  `json:"image,omitempty"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// SessionMetadata is the order content mirrored onto the external session.
// It is the only channel available to rebuild an order when the local write
// was lost.
type SessionMetadata struct {
	UserID          string
	Email           string
	Total           float64
	Items           []order.LineItem
	ShippingAddress order.Address
}

// EncodeMetadata flattens the metadata into the processor's string-to-string
// metadata bag.
func EncodeMetadata(m SessionMetadata) (map[string]string, error) {
	lines := make([]metadataCartLine, 0, len(m.Items))
	for _, item := range m.Items {
		lines = append(lines, metadataCartLine{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}

	cart, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("checkout: failed to marshal cart metadata: %w", err)
	}
	shipping, err := json.Marshal(m.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("checkout: failed to marshal shipping metadata: %w", err)
	}

	return map[string]string{
		metaKeyVersion:  strconv.Itoa(metadataVersion),
		metaKeyUserID:   m.UserID,
		metaKeyEmail:    m.Email,
		metaKeyTotal:    strconv.FormatFloat(m.Total, 'f', 2, 64),
		metaKeyCart:     string(cart),
		metaKeyShipping: string(shipping),
	}, nil
}

// DecodeMetadata rebuilds the metadata from a session bag. Unknown versions
// are rejected rather than guessed at.
func DecodeMetadata(bag map[string]string) (*SessionMetadata, error) {
	if len(bag) == 0 {
		return nil, fmt.Errorf("checkout: session carries no metadata")
	}

	version, err := strconv.Atoi(bag[metaKeyVersion])
	if err != nil {
		return nil, fmt.Errorf("checkout: session metadata has no valid version tag")
	}
	if version != metadataVersion {
		return nil, fmt.Errorf("checkout: unsupported metadata version %d", version)
	}

	var lines []metadataCartLine
	if err := json.Unmarshal([]byte(bag[metaKeyCart]), &lines); err != nil {
		return nil, fmt.Errorf("checkout: failed to unmarshal cart metadata: %w", err)
	}

	var shipping order.Address
	if err := json.Unmarshal([]byte(bag[metaKeyShipping]), &shipping); err != nil {
		return nil, fmt.Errorf("checkout: failed to unmarshal shipping metadata: %w", err)
	}

	total, err := strconv.ParseFloat(bag[metaKeyTotal], 64)
	if err != nil {
		return nil, fmt.Errorf("checkout: failed to parse total metadata: %w", err)
	}

	items := make([]order.LineItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, order.LineItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Image:     line.Image,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}

	return &SessionMetadata{
		UserID:          bag[metaKeyUserID],
		Email:           bag[metaKeyEmail],
		Total:           total,
		Items:           items,
		ShippingAddress: shipping,
	}, nil
}
