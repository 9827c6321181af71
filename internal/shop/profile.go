package shop

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type Profile struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Address  string `json:"address,omitempty"`
	JoinedAt string `json:"created_at,omitempty"`
}

type CartItem struct {
	ProductOptionID int     `json:"product_option_id"`
	ProductName     string  `json:"product_name,omitempty"`
	Quantity        int     `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
}

func (c *Client) Profile(ctx context.Context) (Profile, error) {
	id := strings.TrimSpace(c.UserID)
	if id == "" {
		return Profile{}, fmt.Errorf("user id is required")
	}
	var out Profile
	if err := c.doJSON(ctx, "GET", "/api/v1/users/"+url.PathEscape(id), nil, &out); err != nil {
		return Profile{}, err
	}
	return out, nil
}

func (c *Client) Cart(ctx context.Context) ([]CartItem, error) {
	id := strings.TrimSpace(c.UserID)
	if id == "" {
		return nil, fmt.Errorf("user id is required")
	}
	var out []CartItem
	if err := c.doJSON(ctx, "GET", "/api/v1/carts?user_id="+url.QueryEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PointBalance(ctx context.Context) (int, error) {
	id := strings.TrimSpace(c.UserID)
	if id == "" {
		return 0, fmt.Errorf("user id is required")
	}
	var out struct {
		Balance int `json:"balance"`
	}
	if err := c.doJSON(ctx, "GET", "/api/v1/points?user_id="+url.QueryEscape(id), nil, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}
