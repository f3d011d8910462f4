package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/domain"
)

const (
	defaultTimeout      = 10 * time.Second
	maxResponseBodySize = 1 << 20
)

// UserinfoConfig configures a Userinfo resolver.
type UserinfoConfig struct {
	// URL of the OIDC userinfo endpoint that accepts the subject token.
	URL string

	// SubjectPrefix is prepended to the userinfo "sub", e.g. "tenant-a/".
	SubjectPrefix string

	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Userinfo resolves a subject token by presenting it to a userinfo endpoint.
type Userinfo struct {
	cfg    UserinfoConfig
	client *http.Client
	logger *slog.Logger
}

// NewUserinfo returns a Userinfo resolver.
func NewUserinfo(cfg UserinfoConfig) *Userinfo {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Userinfo{cfg: cfg, client: client, logger: logger}
}

type userinfoResponse struct {
	Sub string   `json:"sub"`
	ACR string   `json:"acr"`
	AMR []string `json:"amr"`
}

// Resolve calls the userinfo endpoint with the subject token as a bearer.
func (u *Userinfo) Resolve(ctx context.Context, req *domain.ExchangeRequest) (*domain.SessionClaims, error) {
	ctx, cancel := context.WithTimeout(ctx, u.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("resolver: build userinfo request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.SubjectToken)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := u.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("resolver: userinfo request: %w", err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxResponseBodySize)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, body)
		return nil, ErrInvalidSubjectToken
	default:
		_, _ = io.Copy(io.Discard, body)
		return nil, fmt.Errorf("%w: userinfo returned %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "application/json" {
		return nil, fmt.Errorf("%w: userinfo content type %q", ErrUnexpectedStatus, mt)
	}

	var info userinfoResponse
	if err := json.NewDecoder(body).Decode(&info); err != nil {
		return nil, fmt.Errorf("resolver: decode userinfo: %w", err)
	}
	if info.Sub == "" {
		u.logger.WarnContext(ctx, "userinfo response without sub")
		return nil, ErrInvalidSubjectToken
	}

	return &domain.SessionClaims{
		Subject: u.cfg.SubjectPrefix + info.Sub,
		ACR:     info.ACR,
		AMR:     info.AMR,
	}, nil
}
