package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dukerupert/taskhero/internal/model"
)

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterInput is the body of a signup request.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// ProfileInput carries the editable profile fields.
type ProfileInput struct {
	Name  string `json:"name" validate:"required,max=50"`
	Email string `json:"email" validate:"required,email"`
}

// PasswordInput changes the account password. The new password must differ.
type PasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,nefield=CurrentPassword"`
}

// AuthResponse is returned by login and signup.
type AuthResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, in LoginInput) (*AuthResponse, error) {
	if err := c.check(in); err != nil {
		return nil, err
	}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", in, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("login: response carried no token")
	}
	return &resp, nil
}

// Register creates an account and returns its token.
func (c *Client) Register(ctx context.Context, in RegisterInput) (*AuthResponse, error) {
	if err := c.check(in); err != nil {
		return nil, err
	}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", in, &resp); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("register: response carried no token")
	}
	return &resp, nil
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &u); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &u, nil
}

// UpdateProfile saves the user's name and email.
func (c *Client) UpdateProfile(ctx context.Context, in ProfileInput) (*model.User, error) {
	if err := c.check(in); err != nil {
		return nil, err
	}
	var u model.User
	if err := c.do(ctx, http.MethodPut, "/users/me", in, &u); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &u, nil
}

// ChangePassword replaces the account password.
func (c *Client) ChangePassword(ctx context.Context, in PasswordInput) error {
	if err := c.check(in); err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodPut, "/users/me/password", in, nil); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}
