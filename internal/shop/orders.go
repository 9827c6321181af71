package shop

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Order statuses as reported by the backend orders resource.
const (
	OrderStatusPending          = "pending"
	OrderStatusPaymentCompleted = "payment_completed"
	OrderStatusPreparing        = "preparing"
	OrderStatusShipped          = "shipped"
	OrderStatusDelivered        = "delivered"
	OrderStatusCancelled        = "cancelled"
	OrderStatusRefunded         = "refunded"
)

var statusLabels = map[string]string{
	OrderStatusPending:          "주문 접수",
	OrderStatusPaymentCompleted: "결제 완료",
	OrderStatusPreparing:        "상품 준비중",
	OrderStatusShipped:          "배송중",
	OrderStatusDelivered:        "배송 완료",
	OrderStatusCancelled:        "주문 취소",
	OrderStatusRefunded:         "환불 완료",
}

// StatusLabel maps a backend status code to its Korean display label.
// Unknown codes come back unchanged.
func StatusLabel(code string) string {
	if label, ok := statusLabels[strings.TrimSpace(code)]; ok {
		return label
	}
	return code
}

type OrderItem struct {
	ProductOptionID int     `json:"product_option_id"`
	ProductName     string  `json:"product_name,omitempty"`
	Quantity        int     `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
}

type Order struct {
	ID          int         `json:"id"`
	Status      string      `json:"status"`
	TotalAmount float64     `json:"total_amount"`
	CreatedAt   string      `json:"created_at"`
	Items       []OrderItem `json:"items,omitempty"`
}

type DeliveryStatus struct {
	OrderID     int    `json:"order_id"`
	Status      string `json:"status"`
	Courier     string `json:"courier,omitempty"`
	TrackingNo  string `json:"tracking_number,omitempty"`
	DeliveredAt string `json:"delivered_at,omitempty"`
}

// Orders lists the configured user's orders, newest first.
func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	if strings.TrimSpace(c.UserID) == "" {
		return nil, fmt.Errorf("user id is required")
	}
	var out []Order
	endpoint := "/api/v1/orders?user_id=" + url.QueryEscape(c.UserID)
	if err := c.doJSON(ctx, "GET", endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Order(ctx context.Context, orderID int) (Order, error) {
	var out Order
	if err := c.doJSON(ctx, "GET", fmt.Sprintf("/api/v1/orders/%d", orderID), nil, &out); err != nil {
		return Order{}, err
	}
	return out, nil
}

func (c *Client) Delivery(ctx context.Context, orderID int) (DeliveryStatus, error) {
	var out DeliveryStatus
	if err := c.doJSON(ctx, "GET", fmt.Sprintf("/api/v1/orders/%d/delivery", orderID), nil, &out); err != nil {
		return DeliveryStatus{}, err
	}
	return out, nil
}
