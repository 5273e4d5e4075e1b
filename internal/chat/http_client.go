package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chatops-kit/triage-service/internal/config"
)

// httpClient talks to a Slack-shaped web API. Every call is rate limited and
// bounded by the configured request timeout.
type httpClient struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewHTTPClient builds the production chat client.
func NewHTTPClient(cfg config.ChatConfig, logger *zap.Logger) Client {
	limit := rate.Limit(cfg.RateLimitPerSecond)
	if cfg.RateLimitPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &httpClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.BotToken,
		http:    &http.Client{Timeout: cfg.RequestTimeout()},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

type apiResponse struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
	TS        string `json:"ts"`
	Channel   string `json:"channel"`
	Permalink string `json:"permalink"`
	Messages  []struct {
		TS       string `json:"ts"`
		ThreadTS string `json:"thread_ts"`
		User     string `json:"user"`
		Text     string `json:"text"`
	} `json:"messages"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

func (c *httpClient) PostMessage(ctx context.Context, channelID, threadTS, text string) (MessageRef, error) {
	params := url.Values{"channel": {channelID}, "text": {text}}
	if threadTS != "" {
		params.Set("thread_ts", threadTS)
	}
	resp, err := c.call(ctx, "chat.postMessage", params)
	if err != nil {
		return MessageRef{}, err
	}
	return MessageRef{ChannelID: channelID, TS: resp.TS}, nil
}

func (c *httpClient) AddReaction(ctx context.Context, channelID, ts, emoji string) error {
	params := url.Values{"channel": {channelID}, "timestamp": {ts}, "name": {emoji}}
	_, err := c.call(ctx, "reactions.add", params)
	return err
}

func (c *httpClient) RemoveReaction(ctx context.Context, channelID, ts, emoji string) error {
	params := url.Values{"channel": {channelID}, "timestamp": {ts}, "name": {emoji}}
	_, err := c.call(ctx, "reactions.remove", params)
	return err
}

func (c *httpClient) GetMessage(ctx context.Context, channelID, ts string) (*Message, error) {
	params := url.Values{
		"channel":   {channelID},
		"latest":    {ts},
		"oldest":    {ts},
		"inclusive": {"true"},
		"limit":     {"1"},
	}
	resp, err := c.call(ctx, "conversations.history", params)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, &APIError{Code: "message_not_found"}
	}
	raw := resp.Messages[0]
	return &Message{
		ChannelID: channelID,
		TS:        raw.TS,
		ThreadTS:  raw.ThreadTS,
		UserID:    raw.User,
		Text:      raw.Text,
	}, nil
}

func (c *httpClient) GetPermalink(ctx context.Context, channelID, ts string) (string, error) {
	params := url.Values{"channel": {channelID}, "message_ts": {ts}}
	resp, err := c.call(ctx, "chat.getPermalink", params)
	if err != nil {
		return "", err
	}
	return resp.Permalink, nil
}

func (c *httpClient) GetThreadReplies(ctx context.Context, channelID, ts, cursor string) (*ThreadPage, error) {
	params := url.Values{"channel": {channelID}, "ts": {ts}}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	resp, err := c.call(ctx, "conversations.replies", params)
	if err != nil {
		return nil, err
	}
	page := &ThreadPage{NextCursor: resp.ResponseMetadata.NextCursor}
	for _, raw := range resp.Messages {
		page.Messages = append(page.Messages, Message{
			ChannelID: channelID,
			TS:        raw.TS,
			ThreadTS:  raw.ThreadTS,
			UserID:    raw.User,
			Text:      raw.Text,
		})
	}
	return page, nil
}

func (c *httpClient) call(ctx context.Context, method string, params url.Values) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.token)

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer httpResp.Body.Close()

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", method, err)
	}
	if !resp.OK {
		c.logger.Debug("chat api call not ok",
			zap.String("method", method),
			zap.String("code", resp.Error))
		return nil, &APIError{Code: resp.Error}
	}
	return &resp, nil
}
