package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dukerupert/taskhero/internal/model"
)

// PurchaseResponse reports the coin balance left after buying an avatar.
type PurchaseResponse struct {
	AvatarID  int64 `json:"avatar_id"`
	TaskCoins int   `json:"task_coins"`
}

type selectAvatarRequest struct {
	AvatarID int64 `json:"avatar_id"`
}

// ListAvatars returns the avatar catalogue.
func (c *Client) ListAvatars(ctx context.Context) ([]model.Avatar, error) {
	var avatars []model.Avatar
	if err := c.do(ctx, http.MethodGet, "/avatars", nil, &avatars); err != nil {
		return nil, fmt.Errorf("list avatars: %w", err)
	}
	if avatars == nil {
		avatars = []model.Avatar{}
	}
	return avatars, nil
}

// PurchaseAvatar buys an avatar with task coins.
func (c *Client) PurchaseAvatar(ctx context.Context, id int64) (*PurchaseResponse, error) {
	var resp PurchaseResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/avatars/%d/purchase", id), nil, &resp); err != nil {
		return nil, fmt.Errorf("purchase avatar %d: %w", id, err)
	}
	return &resp, nil
}

// SelectAvatar equips an owned avatar.
func (c *Client) SelectAvatar(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodPut, "/users/me/avatar", selectAvatarRequest{AvatarID: id}, nil); err != nil {
		return fmt.Errorf("select avatar %d: %w", id, err)
	}
	return nil
}

// ListBadges returns every badge with its unlock state.
func (c *Client) ListBadges(ctx context.Context) ([]model.Badge, error) {
	var badges []model.Badge
	if err := c.do(ctx, http.MethodGet, "/badges", nil, &badges); err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	if badges == nil {
		badges = []model.Badge{}
	}
	return badges, nil
}
