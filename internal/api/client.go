package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a typed client for the locker-reservation service. It performs
// no authentication itself; credentials are attached by the gateway
// transport installed on the http.Client it is built with.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New creates a client for the service at baseURL (including the /api
// prefix). If httpc is nil, http.DefaultClient is used.
func New(baseURL string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   httpc,
	}
}

// Login exchanges a username/password pair for tokens.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	body := map[string]string{"username": username, "password": password}

	resp, err := c.postJSON(ctx, "/auth/login/", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var pair TokenPair
		if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
			return nil, fmt.Errorf("failed to decode login response: %w", err)
		}
		return &pair, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	default:
		return nil, statusError(resp)
	}
}

// Register creates a new account. Validation failures are returned as a
// *ValidationError with the service-reported detail.
func (c *Client) Register(ctx context.Context, reg Registration) (*User, error) {
	resp, err := c.postJSON(ctx, "/auth/register/", reg)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		var created struct {
			User User `json:"user"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			return nil, fmt.Errorf("failed to decode registration response: %w", err)
		}
		return &created.User, nil
	case http.StatusBadRequest:
		var verr ValidationError
		if err := json.NewDecoder(resp.Body).Decode(&verr); err != nil || verr.Message == "" {
			verr.Message = "registration failed"
		}
		return nil, &verr
	default:
		return nil, statusError(resp)
	}
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.getJSON(ctx, "/auth/me/", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListLockers fetches the current locker snapshot.
func (c *Client) ListLockers(ctx context.Context) ([]Locker, error) {
	var lockers []Locker
	if err := c.getJSON(ctx, "/lockers/", &lockers); err != nil {
		return nil, err
	}
	return lockers, nil
}

// ListReservations fetches the caller's reservations.
func (c *Client) ListReservations(ctx context.Context) ([]Reservation, error) {
	var reservations []Reservation
	if err := c.getJSON(ctx, "/reservations/", &reservations); err != nil {
		return nil, err
	}
	return reservations, nil
}

// CreateReservation requests a hold on lockerID until the given time.
// Returns ErrConflict if the locker is no longer available.
func (c *Client) CreateReservation(ctx context.Context, lockerID int64, until time.Time) (*Reservation, error) {
	body := map[string]any{
		"locker":         lockerID,
		"reserved_until": until.UTC().Format(time.RFC3339),
	}

	resp, err := c.postJSON(ctx, "/reservations/", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		var reservation Reservation
		if err := json.NewDecoder(resp.Body).Decode(&reservation); err != nil {
			return nil, fmt.Errorf("failed to decode reservation: %w", err)
		}
		return &reservation, nil
	case http.StatusBadRequest, http.StatusConflict:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: %s", ErrConflict, strings.TrimSpace(string(detail)))
	default:
		return nil, statusError(resp)
	}
}

// CancelReservation deletes a reservation by ID.
func (c *Client) CancelReservation(ctx context.Context, id int64) error {
	req, err := c.newRequest(ctx, http.MethodDelete, fmt.Sprintf("/reservations/%d/", id), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return unwrapSessionExpired(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: reservation %d", ErrNotFound, id)
	default:
		return statusError(resp)
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, data)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, unwrapSessionExpired(err)
	}

	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return unwrapSessionExpired(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized {
			return ErrSessionExpired
		}
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// unwrapSessionExpired strips the url.Error wrapper the http.Client adds
// around errors surfaced by the gateway transport.
func unwrapSessionExpired(err error) error {
	if errors.Is(err, ErrSessionExpired) {
		return ErrSessionExpired
	}
	return err
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
