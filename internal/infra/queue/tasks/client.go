// Package tasks is the client for an external HTTP push queue. The queue
// stores a task, later POSTs its body to this service's delivery callback
// with an OIDC token minted for the configured service account, and retries
// with backoff until the callback acknowledges.
package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	domain "github.com/AliNMackie/cofound-platform/internal/domain/jobs"
)

type Client struct {
	endpoint       string // queue API base URL
	queueName      string
	callbackURL    string
	serviceAccount string
	audience       string
	httpc          *http.Client
}

func NewClient(endpoint, queueName, callbackURL, serviceAccount, audience string) *Client {
	return &Client{
		endpoint:       endpoint,
		queueName:      queueName,
		callbackURL:    callbackURL,
		serviceAccount: serviceAccount,
		audience:       audience,
		httpc:          &http.Client{Timeout: 10 * time.Second},
	}
}

// task mirrors the queue API's create-task shape: an HTTP request to perform
// later, plus the identity the queue should mint a delivery token for.
type task struct {
	HTTPRequest struct {
		HTTPMethod string            `json:"http_method"`
		URL        string            `json:"url"`
		Headers    map[string]string `json:"headers"`
		Body       json.RawMessage   `json:"body"`
		OIDCToken  struct {
			ServiceAccountEmail string `json:"service_account_email"`
			Audience            string `json:"audience"`
		} `json:"oidc_token"`
	} `json:"http_request"`
}

// Enqueue hands the queue a job reference and the routing metadata to reach
// the delivery callback later. The client never retries delivery itself;
// redelivery policy belongs to the queue.
func (c *Client) Enqueue(ctx context.Context, ref domain.Ref) (domain.Receipt, error) {
	body, err := json.Marshal(ref)
	if err != nil {
		return domain.Receipt{}, err
	}

	var t task
	t.HTTPRequest.HTTPMethod = http.MethodPost
	t.HTTPRequest.URL = c.callbackURL
	t.HTTPRequest.Headers = map[string]string{"Content-Type": "application/json"}
	t.HTTPRequest.Body = body
	t.HTTPRequest.OIDCToken.ServiceAccountEmail = c.serviceAccount
	t.HTTPRequest.OIDCToken.Audience = c.audience

	payload, err := json.Marshal(t)
	if err != nil {
		return domain.Receipt{}, err
	}

	url := fmt.Sprintf("%s/v2/queues/%s/tasks", c.endpoint, c.queueName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return domain.Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Receipt{}, fmt.Errorf("%w: queue returned %d", domain.ErrQueueUnavailable, resp.StatusCode)
	}

	var created struct {
		Name string `json:"name"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&created)
	return domain.Receipt{TaskName: created.Name, EnqueuedAt: time.Now()}, nil
}
