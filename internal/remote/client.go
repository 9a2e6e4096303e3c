// Package remote wraps the hosted workout-record service. All calls
// are identity-scoped; network faults and authorization rejections
// are mapped onto the shared error taxonomy and treated identically
// by the replay engine.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/liftsync/liftlog/internal/errors"
	"github.com/liftsync/liftlog/internal/models"
)

// RecordService is the contract against the hosted backend. The
// replay engine and the workout facade depend on this interface, not
// on the HTTP client, so tests inject fakes.
type RecordService interface {
	// Insert upserts a record into a remote collection and returns
	// the stored copy. The remote service may assign its own id to a
	// record created offline.
	Insert(ctx context.Context, collection string, record *models.WorkoutRecord) (*models.WorkoutRecord, error)

	// Select fetches all records of a collection owned by userID,
	// ordered by date descending.
	Select(ctx context.Context, collection, userID string) ([]models.WorkoutRecord, error)

	// Delete removes a record by id.
	Delete(ctx context.Context, collection, id string) error

	// Available reports whether the service is configured and
	// reachable enough to attempt calls at all.
	Available() bool
}

// Config holds remote service connection configuration.
type Config struct {
	BaseURL string
	APIKey  string
}

// Client is the HTTP implementation of RecordService.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a Client with a bounded request timeout.
func NewClient(config Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Available reports whether the client is configured.
func (c *Client) Available() bool {
	return c.config.BaseURL != "" && c.config.APIKey != ""
}

// Insert upserts a record into a remote collection.
func (c *Client) Insert(ctx context.Context, collection string, record *models.WorkoutRecord) (*models.WorkoutRecord, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "failed to encode record", err)
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.config.BaseURL, url.PathEscape(collection))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "failed to build insert request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteUnavailable, "insert request failed", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "insert"); err != nil {
		return nil, err
	}

	var stored models.WorkoutRecord
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteRejected, "failed to decode insert response", err)
	}
	return &stored, nil
}

// Select fetches all records of a collection owned by userID, newest
// date first.
func (c *Client) Select(ctx context.Context, collection, userID string) ([]models.WorkoutRecord, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?user_id=eq.%s&order=date.desc",
		c.config.BaseURL, url.PathEscape(collection), url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "failed to build select request", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteUnavailable, "select request failed", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "select"); err != nil {
		return nil, err
	}

	var records []models.WorkoutRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteRejected, "failed to decode select response", err)
	}
	return records, nil
}

// Delete removes a record by id.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s/%s",
		c.config.BaseURL, url.PathEscape(collection), url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "failed to build delete request", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrRemoteUnavailable, "delete request failed", err)
	}
	defer resp.Body.Close()

	// Deleting an already-absent record is success from the sync
	// engine's perspective.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return checkStatus(resp, "delete")
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
}

// checkStatus maps HTTP status classes onto the error taxonomy:
// auth failures and other 4xx responses become REMOTE_REJECTED, 5xx
// becomes REMOTE_UNAVAILABLE.
func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := fmt.Sprintf("%s failed with status %d: %s", op, resp.StatusCode, body)

	if resp.StatusCode >= 500 {
		return apperrors.New(apperrors.ErrRemoteUnavailable, message)
	}
	return apperrors.New(apperrors.ErrRemoteRejected, message)
}
