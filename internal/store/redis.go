package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pivotlp/internal/core"
)

// RedisStore talks to a hosted Redis instance over its REST bridge. Records
// are written with a server-side expiry so cleanup needs no background job.
type RedisStore struct {
	httpClient *http.Client
	restURL    string
	token      string
	ttl        time.Duration
}

// NewRedisStore creates a store against the given REST endpoint and bearer
// token. A zero ttl defaults to 30 days.
func NewRedisStore(restURL, token string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		restURL:    restURL,
		token:      token,
		ttl:        ttl,
	}
}

// setRequest is the REST body for a SET with expiry.
type setRequest struct {
	Value string `json:"value"`
	EX    int64  `json:"ex"`
}

// restResult is the REST response envelope. Result is null when the key does
// not exist.
type restResult struct {
	Result *string `json:"result"`
	Error  string  `json:"error"`
}

func (s *RedisStore) Save(ctx context.Context, page core.LandingPage) (string, error) {
	id, err := newPageID()
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(Record{Page: page, CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("failed to encode page record: %w", err)
	}

	body, err := json.Marshal(setRequest{Value: string(payload), EX: int64(s.ttl.Seconds())})
	if err != nil {
		return "", fmt.Errorf("failed to encode set request: %w", err)
	}

	result, err := s.do(ctx, http.MethodPost, "/set/"+keyPrefix+id, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if result.Error != "" {
		return "", fmt.Errorf("redis set failed: %s", result.Error)
	}
	return id, nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (*Record, error) {
	result, err := s.do(ctx, http.MethodGet, "/get/"+keyPrefix+id, nil)
	if err != nil {
		return nil, err
	}
	if result.Error != "" {
		return nil, fmt.Errorf("redis get failed: %s", result.Error)
	}
	if result.Result == nil {
		return nil, ErrNotFound
	}

	var record Record
	if err := json.Unmarshal([]byte(*result.Result), &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return &record, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	result, err := s.do(ctx, http.MethodGet, "/ping", nil)
	if err != nil {
		return err
	}
	if result.Error != "" {
		return fmt.Errorf("redis ping failed: %s", result.Error)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return nil
}

// do performs one REST command and decodes the response envelope.
func (s *RedisStore) do(ctx context.Context, method, path string, body io.Reader) (*restResult, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.restURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("redis request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read redis response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("redis request failed: status %d: %s", resp.StatusCode, respBody)
	}

	var result restResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode redis response: %w", err)
	}
	return &result, nil
}
