package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/galeops/windfleet/internal/httputil"
	"github.com/galeops/windfleet/internal/metrics"
	"github.com/galeops/windfleet/internal/models"
)

// Client talks to a Databricks Genie space. A send either starts a new
// conversation or continues an existing one, then polls the message until it
// completes and collects any attached query and its results.
type Client struct {
	host    string
	token   string
	spaceID string
	client  *http.Client

	pollInterval time.Duration
	maxPolls     int
}

func NewClient(host, token, spaceID string) *Client {
	return &Client{
		host:         host,
		token:        token,
		spaceID:      spaceID,
		client:       httputil.NewClient(),
		pollInterval: 3 * time.Second,
		maxPolls:     20,
	}
}

// Configured reports whether host, token and space id are all present.
func (c *Client) Configured() bool {
	return c.host != "" && c.token != "" && c.spaceID != ""
}

type Health struct {
	Status     string `json:"status"`
	Configured bool   `json:"configured"`
	SpaceID    string `json:"space_id,omitempty"`
	Host       string `json:"host,omitempty"`
}

// Health reports configuration state with identifiers truncated for display.
func (c *Client) Health() Health {
	h := Health{Status: "healthy", Configured: c.Configured()}
	if !h.Configured {
		return h
	}
	h.SpaceID = truncate(c.spaceID, 8)
	h.Host = truncate(c.host, 30)
	return h
}

// truncate shortens s to n characters, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type startConversationResponse struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

type messageStatusResponse struct {
	Status      string       `json:"status"`
	Content     string       `json:"content"`
	Error       string       `json:"error"`
	Attachments []attachment `json:"attachments"`
}

type attachment struct {
	AttachmentID string           `json:"attachment_id"`
	Text         *textAttachment  `json:"text"`
	Query        *queryAttachment `json:"query"`
}

type textAttachment struct {
	Content string `json:"content"`
}

type queryAttachment struct {
	Query       string `json:"query"`
	Description string `json:"description"`
}

type queryResultResponse struct {
	StatementResponse struct {
		Manifest struct {
			Schema struct {
				Columns []struct {
					Name     string `json:"name"`
					TypeText string `json:"type_text"`
				} `json:"columns"`
			} `json:"schema"`
		} `json:"manifest"`
		Result struct {
			DataArray [][]any `json:"data_array"`
		} `json:"result"`
	} `json:"statement_response"`
}

// Send implements the dashboard responder contract. conversationID may be
// empty, in which case the reply carries the id Genie assigned.
func (c *Client) Send(ctx context.Context, content, conversationID string) (*models.ChatReply, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("genie: not configured")
	}

	var start startConversationResponse
	if conversationID == "" {
		url := fmt.Sprintf("%s/api/2.0/genie/spaces/%s/start-conversation", c.host, c.spaceID)
		if err := c.postJSON(ctx, "start-conversation", url, map[string]string{"content": content}, &start); err != nil {
			return nil, fmt.Errorf("start conversation: %w", err)
		}
		conversationID = start.ConversationID
	} else {
		url := fmt.Sprintf("%s/api/2.0/genie/spaces/%s/conversations/%s/messages", c.host, c.spaceID, conversationID)
		if err := c.postJSON(ctx, "send-message", url, map[string]string{"content": content}, &start); err != nil {
			return nil, fmt.Errorf("send message: %w", err)
		}
	}
	messageID := start.MessageID

	statusURL := fmt.Sprintf("%s/api/2.0/genie/spaces/%s/conversations/%s/messages/%s", c.host, c.spaceID, conversationID, messageID)

	for attempt := 0; attempt < c.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		var status messageStatusResponse
		if err := c.getJSON(ctx, "message-status", statusURL, &status); err != nil {
			// Transient status-check failures just consume an attempt.
			continue
		}

		switch status.Status {
		case "COMPLETED":
			return c.buildReply(ctx, conversationID, messageID, statusURL, &status)
		case "FAILED":
			msg := status.Error
			if msg == "" {
				msg = "request failed"
			}
			return nil, fmt.Errorf("genie: message failed: %s", msg)
		}
	}

	return nil, fmt.Errorf("genie: message %s did not complete in time", messageID)
}

// buildReply walks the completed message's attachments, fetching query
// results when present. Content priority: query description, then text
// attachment, then message content, then a default.
func (c *Client) buildReply(ctx context.Context, conversationID, messageID, statusURL string, status *messageStatusResponse) (*models.ChatReply, error) {
	reply := &models.ChatReply{
		ConversationID: conversationID,
		MessageID:      messageID,
		Timestamp:      time.Now().UTC(),
	}

	var textContent, queryDescription string
	for _, att := range status.Attachments {
		if att.Text != nil {
			textContent = att.Text.Content
		}
		if att.Query != nil {
			reply.SQLQuery = att.Query.Query
			queryDescription = att.Query.Description

			if att.AttachmentID != "" {
				results, err := c.fetchQueryResults(ctx, statusURL, att.AttachmentID)
				if err == nil {
					reply.Results = results
				}
			}
		}
	}

	switch {
	case queryDescription != "":
		reply.Content = queryDescription
	case textContent != "":
		reply.Content = textContent
	case status.Content != "" && status.Content != "I've processed your request.":
		reply.Content = status.Content
	default:
		reply.Content = "Here are the results from your query."
	}

	return reply, nil
}

func (c *Client) fetchQueryResults(ctx context.Context, statusURL, attachmentID string) (*models.QueryResults, error) {
	url := fmt.Sprintf("%s/query-result/%s", statusURL, attachmentID)

	var data queryResultResponse
	if err := c.getJSON(ctx, "query-result", url, &data); err != nil {
		return nil, err
	}

	cols := data.StatementResponse.Manifest.Schema.Columns
	rows := data.StatementResponse.Result.DataArray
	if len(cols) == 0 || len(rows) == 0 {
		return nil, fmt.Errorf("genie: empty query result")
	}

	results := &models.QueryResults{
		Data:     rows,
		RowCount: len(rows),
	}
	for _, col := range cols {
		results.Columns = append(results.Columns, col.Name)
		results.ColumnTypes = append(results.ColumnTypes, col.TypeText)
	}
	return results, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	var respBody []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := c.client.Do(req)
		metrics.GenieAPILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.GenieAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
			return backoff.Permanent(fmt.Errorf("post %s: %w", endpoint, err))
		}
		defer resp.Body.Close()

		metrics.GenieAPICallsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("rate limited: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("post %s: status %d: %s", endpoint, resp.StatusCode, string(b)))
		}

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return err
	}

	return json.Unmarshal(respBody, out)
}

func (c *Client) getJSON(ctx context.Context, endpoint, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.GenieAPILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GenieAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("get %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	metrics.GenieAPICallsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("get %s: status %d: %s", endpoint, resp.StatusCode, string(b))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
