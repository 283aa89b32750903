package client

import (
	"context"
	"net/http"

	"vox/api"
)

func (c *Client) Register(ctx context.Context, email, password, name string) (*api.AuthResponse, error) {
	var out api.AuthResponse
	in := api.RegisterRequest{Email: email, Password: password, Name: name}
	if err := c.doJSON(ctx, http.MethodPost, api.PathRegister, "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*api.AuthResponse, error) {
	var out api.AuthResponse
	in := api.LoginRequest{Email: email, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, api.PathLogin, "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Me(ctx context.Context, credential string) (*api.User, error) {
	if credential == "" {
		return nil, ErrUnauthorized
	}
	var out api.User
	if err := c.doJSON(ctx, http.MethodGet, api.PathMe, credential, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ActivateLicense(ctx context.Context, credential, key string) (*api.ActivateResponse, error) {
	if credential == "" {
		return nil, ErrUnauthorized
	}
	var out api.ActivateResponse
	if err := c.doJSON(ctx, http.MethodPost, api.PathLicenseActive, credential, api.ActivateRequest{LicenseKey: key}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LicenseStatus(ctx context.Context, credential string) (*api.LicenseStatus, error) {
	if credential == "" {
		return nil, ErrUnauthorized
	}
	var out api.LicenseStatus
	if err := c.doJSON(ctx, http.MethodGet, api.PathLicenseStatus, credential, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes credential on the server.
func (c *Client) Logout(ctx context.Context, credential string) error {
	if credential == "" {
		return nil
	}
	return c.doJSON(ctx, http.MethodPost, api.PathLogout, credential, nil, nil)
}
