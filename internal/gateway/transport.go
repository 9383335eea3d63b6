package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/lockerhq/lockerctl/internal/api"
	"github.com/lockerhq/lockerctl/internal/credentials"
)

type contextKey int

const replayedKey contextKey = 0

// Transport authenticates every outbound call with the stored access token
// and recovers transparently from access-token expiry. On a rejected
// credential it performs at most one renewal per call, coordinated across
// concurrent callers so only a single renewal is ever in flight, then
// replays the original call once with the new token.
//
// The renewal call itself goes straight to the base transport: it can
// never enter the replay path, so a rejected refresh token fails closed
// instead of looping.
type Transport struct {
	base       http.RoundTripper
	store      credentials.TokenStore
	refreshURL string

	renewals singleflight.Group

	// onSessionEnd is invoked when renewal is impossible: the store has
	// been cleared and the session is over.
	onSessionEnd func()
}

var _ http.RoundTripper = (*Transport)(nil)

// Option configures a Transport.
type Option func(*Transport)

// WithBase sets the underlying transport. Defaults to http.DefaultTransport.
func WithBase(base http.RoundTripper) Option {
	return func(t *Transport) { t.base = base }
}

// WithSessionEndHook registers a hook invoked once per failed renewal,
// after the token store has been cleared.
func WithSessionEndHook(hook func()) Option {
	return func(t *Transport) { t.onSessionEnd = hook }
}

// New creates an authenticating transport. refreshURL is the absolute URL
// of the token renewal endpoint.
func New(store credentials.TokenStore, refreshURL string, opts ...Option) *Transport {
	t := &Transport{
		base:       http.DefaultTransport,
		store:      store,
		refreshURL: refreshURL,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	tokens, err := t.store.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to read tokens: %w", err)
	}

	out := req.Clone(req.Context())
	if tokens.Access != "" {
		out.Header.Set("Authorization", "Bearer "+tokens.Access)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// A call that carried no credential was not rejected for expiry;
	// its 401 is the caller's to interpret (e.g. a bad login).
	if tokens.Access == "" {
		return resp, nil
	}

	if req.Context().Value(replayedKey) != nil {
		drain(resp)
		return nil, api.ErrSessionExpired
	}

	access, err := t.renew(req.Context())
	if err != nil {
		drain(resp)
		return nil, err
	}
	drain(resp)

	return t.replay(req, access)
}

// replay re-issues the original call exactly once with the new token.
func (t *Transport) replay(req *http.Request, access string) (*http.Response, error) {
	ctx := context.WithValue(req.Context(), replayedKey, true)

	retry := req.Clone(ctx)
	retry.Header.Set("Authorization", "Bearer "+access)

	if req.Body != nil && req.GetBody == nil {
		// A streaming body was consumed by the first attempt and
		// cannot be rewound.
		return nil, fmt.Errorf("cannot replay request with non-rewindable body")
	}

	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		retry.Body = body
	}

	resp, err := t.base.RoundTrip(retry)
	if err != nil {
		return nil, err
	}

	// No second renewal attempt per call.
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		return nil, api.ErrSessionExpired
	}

	return resp, nil
}

// renew obtains a fresh access token. Concurrent failing calls share a
// single renewal instead of each starting their own.
func (t *Transport) renew(ctx context.Context) (string, error) {
	v, err, shared := t.renewals.Do("renew", func() (any, error) {
		tokens, err := t.store.Get()
		if err != nil {
			return "", fmt.Errorf("failed to read tokens: %w", err)
		}

		if tokens.Refresh == "" {
			log.Debug().Msg("no refresh token available, ending session")
			t.endSession()
			return "", api.ErrSessionExpired
		}

		access, err := t.refreshAccessToken(ctx, tokens.Refresh)
		if err != nil {
			log.Warn().Err(err).Msg("token renewal failed, ending session")
			t.endSession()
			return "", api.ErrSessionExpired
		}

		if err := t.store.SetAccess(access); err != nil {
			return "", fmt.Errorf("failed to store renewed token: %w", err)
		}

		log.Debug().Msg("access token renewed")

		return access, nil
	})
	if err != nil {
		return "", err
	}

	if shared {
		log.Debug().Msg("renewal shared with concurrent call")
	}

	return v.(string), nil
}

// refreshAccessToken exchanges the refresh token for a new access token,
// bypassing this transport entirely.
func (t *Transport) refreshAccessToken(ctx context.Context, refresh string) (string, error) {
	payload, err := json.Marshal(map[string]string{"refresh": refresh})
	if err != nil {
		return "", fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.refreshURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return "", fmt.Errorf("refresh endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refresh rejected with status %d", resp.StatusCode)
	}

	var renewed struct {
		Access string `json:"access"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&renewed); err != nil {
		return "", fmt.Errorf("failed to decode refresh response: %w", err)
	}

	if renewed.Access == "" {
		return "", fmt.Errorf("refresh response missing access token")
	}

	return renewed.Access, nil
}

func (t *Transport) endSession() {
	if err := t.store.Clear(); err != nil {
		log.Error().Err(err).Msg("failed to clear token store")
	}

	if t.onSessionEnd != nil {
		t.onSessionEnd()
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
