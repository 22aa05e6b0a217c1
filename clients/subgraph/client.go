package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/horizon-monitor/utils"
)

// QueryError is returned for every failed subgraph request: transport errors, non 2xx responses,
// GraphQL errors and responses without data.
type QueryError struct {
	Source     string
	Query      string
	Variables  map[string]interface{}
	StatusCode int
	Message    string
	Err        error
}

func (e *QueryError) Error() string {
	msg := fmt.Sprintf("%v query %v: %v", e.Source, e.Query, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%v: %v", msg, e.Err)
	}
	return msg
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// Client sends registered queries to a GraphQL endpoint.
type Client struct {
	name       string
	endpoint   string
	apiKey     string
	registry   *QueryRegistry
	httpClient *nethttp.Client
	limiter    *CallRateLimiter
	logger     logrus.FieldLogger
}

// NewClient is used to create a new GraphQL client.
func NewClient(name, endpoint, apiKey string, timeout time.Duration, registry *QueryRegistry, logger logrus.FieldLogger) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("missing %v endpoint", name)
	}
	if registry == nil {
		return nil, fmt.Errorf("missing query registry")
	}

	return &Client{
		name:       name,
		endpoint:   endpoint,
		apiKey:     apiKey,
		registry:   registry,
		httpClient: &nethttp.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// SetRateLimiter throttles all further queries of the client, nil removes the limit.
func (c *Client) SetRateLimiter(limiter *CallRateLimiter) {
	c.limiter = limiter
}

func (c *Client) GetName() string {
	return c.name
}

func (c *Client) GetEndpoint() string {
	return c.redactedURL()
}

// Query runs the named query and decodes the data object into returnValue.
func (c *Client) Query(ctx context.Context, queryName string, variables map[string]interface{}, returnValue interface{}) error {
	query, err := c.registry.Get(queryName)
	if err != nil {
		return c.queryError(queryName, variables, 0, "invalid query", err)
	}

	err = query.CheckVariables(variables)
	if err != nil {
		return c.queryError(queryName, variables, 0, "invalid variables", err)
	}

	err = c.limiter.Wait(ctx, c.name)
	if err != nil {
		return c.queryError(queryName, variables, 0, "rate limit wait aborted", err)
	}

	postDataBytes, err := json.Marshal(&graphqlRequest{
		Query:     query.Document,
		Variables: variables,
	})
	if err != nil {
		return c.queryError(queryName, variables, 0, "error encoding request", err)
	}

	req, err := nethttp.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(postDataBytes))
	if err != nil {
		return c.queryError(queryName, variables, 0, "error creating request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	t1 := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.queryError(queryName, variables, 0, "request failed", err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"query":    queryName,
		"status":   resp.StatusCode,
		"duration": time.Since(t1),
	}).Debugf("subgraph query")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return c.queryError(queryName, variables, resp.StatusCode, fmt.Sprintf("unexpected status %v: %s", resp.Status, strings.TrimSpace(string(data))), nil)
	}

	response := &graphqlResponse{}
	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return c.queryError(queryName, variables, resp.StatusCode, "error parsing json response", err)
	}

	if len(response.Errors) > 0 {
		messages := make([]string, len(response.Errors))
		for i, gqlErr := range response.Errors {
			messages[i] = gqlErr.Message
		}
		return c.queryError(queryName, variables, resp.StatusCode, "graphql errors: "+strings.Join(messages, ", "), nil)
	}

	if len(response.Data) == 0 || string(response.Data) == "null" {
		return c.queryError(queryName, variables, resp.StatusCode, "no data returned", nil)
	}

	if returnValue != nil {
		err = json.Unmarshal(response.Data, returnValue)
		if err != nil {
			return c.queryError(queryName, variables, resp.StatusCode, "error parsing response data", err)
		}
	}

	return nil
}

func (c *Client) queryError(queryName string, variables map[string]interface{}, statusCode int, message string, err error) *QueryError {
	return &QueryError{
		Source:     c.name,
		Query:      queryName,
		Variables:  variables,
		StatusCode: statusCode,
		Message:    c.redact(message),
		Err:        err,
	}
}

func (c *Client) redact(text string) string {
	if c.apiKey == "" {
		return text
	}
	return strings.ReplaceAll(text, c.apiKey, "***")
}

func (c *Client) redactedURL() string {
	return c.redact(utils.GetRedactedURL(c.endpoint))
}
