// Package remote runs backtests on an HTTP backtest service.
package remote

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

	"github.com/cenkalti/backoff/v4"
	"github.com/newthinker/investeai/internal/backtest"
	"go.uber.org/zap"
)

// Config configures the remote provider.
type Config struct {
	URL             string
	MaxRetryElapsed time.Duration
	HTTPClient      *http.Client
}

// Provider posts model paths to a backtest service.
type Provider struct {
	baseURL    string
	maxElapsed time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a remote provider.
func New(cfg Config, logger *zap.Logger) (*Provider, error) {
	if cfg.URL == "" {
		return nil, errors.New("remote backtest url required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.MaxRetryElapsed == 0 {
		cfg.MaxRetryElapsed = 30 * time.Second
	}
	return &Provider{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		maxElapsed: cfg.MaxRetryElapsed,
		httpClient: cfg.HTTPClient,
		logger:     logger,
	}, nil
}

// Name returns the service URL.
func (p *Provider) Name() string {
	return p.baseURL
}

// Available probes GET /health once.
func (p *Provider) Available(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backtest service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

type runRequest struct {
	ModelPath string `json:"model_path"`
}

// Run posts the model path to /backtest. Transport errors and 5xx
// responses are retried with exponential backoff; 204 and a null body
// mean the backtest produced nothing.
func (p *Provider) Run(ctx context.Context, modelPath string) (*backtest.ResultsRecord, error) {
	payload, err := json.Marshal(runRequest{ModelPath: modelPath})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backtest request: %w", err)
	}
	url := p.baseURL + "/backtest"

	var body []byte
	attempt := 0
	operation := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		p.logger.Info("Sending backtest request", zap.String("url", url), zap.Int("attempt", attempt))
		resp, err := p.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			p.logger.Warn("Backtest request failed", zap.Error(err))
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusNoContent:
			body = nil
			return nil
		case resp.StatusCode == http.StatusOK:
			body = data
			return nil
		case resp.StatusCode >= 500:
			return &StatusError{StatusCode: resp.StatusCode, Message: serviceError(data)}
		default:
			return backoff.Permanent(&StatusError{StatusCode: resp.StatusCode, Message: serviceError(data)})
		}
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = p.maxElapsed

	if err := backoff.Retry(operation, backoff.WithContext(strategy, ctx)); err != nil {
		return nil, err
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}

	var rec backtest.ResultsRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		p.logger.Error("Failed to decode backtest response", zap.Error(err))
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &rec, nil
}

// serviceError extracts {"error": "..."} from a failure body.
func serviceError(data []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil {
		return e.Error
	}
	return ""
}

// StatusError is a non-success response from the backtest service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backtest service returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backtest service returned status %d", e.StatusCode)
}
