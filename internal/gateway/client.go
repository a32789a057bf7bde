// Package gateway is the client side of the authoritative record API. Every
// call is a plain request/response mutation or query keyed by record kind and
// id; the server answers with the canonical snapshot or a typed error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-sync-api/internal/models"
	appErrors "github.com/noah-isme/classroom-sync-api/pkg/errors"
)

// Client talks to a sync gateway over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient builds a gateway client. Timeout policy belongs to the transport,
// not to the reconciliation core.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// WithToken returns a copy of the client sending the bearer token on every
// request. The token is issued by the identity service, not by this API.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
}

type patchRequest struct {
	Fields models.FieldPatch `json:"fields"`
}

// Get fetches the canonical snapshot for a record.
func (c *Client) Get(ctx context.Context, kind models.RecordKind, id string) (models.RecordSnapshot, error) {
	return c.snapshotCall(ctx, http.MethodGet, fmt.Sprintf("%s/records/%s/%s", c.baseURL, kind, id), nil)
}

// List fetches all records of a kind within a class.
func (c *Client) List(ctx context.Context, classID string, kind models.RecordKind) ([]models.RecordSnapshot, error) {
	env, err := c.call(ctx, http.MethodGet, fmt.Sprintf("%s/classes/%s/records/%s", c.baseURL, classID, kind), nil)
	if err != nil {
		return nil, err
	}
	var snapshots []models.RecordSnapshot
	if err := json.Unmarshal(env.Data, &snapshots); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "malformed gateway response")
	}
	return snapshots, nil
}

// Create inserts a record and returns the canonical snapshot.
func (c *Client) Create(ctx context.Context, classID string, kind models.RecordKind, fields models.FieldPatch) (models.RecordSnapshot, error) {
	return c.snapshotCall(ctx, http.MethodPost, fmt.Sprintf("%s/classes/%s/records/%s", c.baseURL, classID, kind), patchRequest{Fields: fields})
}

// Update applies a partial field patch and returns the canonical post-update
// snapshot. This is the save the persistence scheduler issues.
func (c *Client) Update(ctx context.Context, kind models.RecordKind, id string, patch models.FieldPatch) (models.RecordSnapshot, error) {
	return c.snapshotCall(ctx, http.MethodPatch, fmt.Sprintf("%s/records/%s/%s", c.baseURL, kind, id), patchRequest{Fields: patch})
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, kind models.RecordKind, id string) error {
	_, err := c.call(ctx, http.MethodDelete, fmt.Sprintf("%s/records/%s/%s", c.baseURL, kind, id), nil)
	return err
}

func (c *Client) snapshotCall(ctx context.Context, method, url string, body interface{}) (models.RecordSnapshot, error) {
	env, err := c.call(ctx, method, url, body)
	if err != nil {
		return models.RecordSnapshot{}, err
	}
	var snapshot models.RecordSnapshot
	if err := json.Unmarshal(env.Data, &snapshot); err != nil {
		return models.RecordSnapshot{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "malformed gateway response")
	}
	return snapshot, nil
}

func (c *Client) call(ctx context.Context, method, url string, body interface{}) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "encode request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusBadGateway, "gateway unreachable")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNoContent {
		return &envelope{}, nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "decode gateway response")
	}
	if env.Error != nil {
		c.logger.Debug("gateway call rejected",
			zap.String("method", method),
			zap.String("url", url),
			zap.String("code", env.Error.Code),
		)
		return nil, env.Error
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, appErrors.New(appErrors.ErrInternal.Code, resp.StatusCode, fmt.Sprintf("gateway returned status %d", resp.StatusCode))
	}
	return &env, nil
}
