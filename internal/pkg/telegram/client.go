package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultAPIBaseURL = "https://api.telegram.org"

// ErrNotConfigured is returned when the client has no bot token.
var ErrNotConfigured = errors.New("telegram bot token is not configured")

// Client talks to the Telegram Bot API. It implements the access-gateway
// operations: removing a member from a private channel, creating a one-use
// invite link, and sending messages.
type Client struct {
	Token      string
	APIBaseURL string
	HTTPClient *http.Client
}

// NewClient creates a Telegram client for the given bot token.
func NewClient(token string) *Client {
	return &Client{
		Token:      strings.TrimSpace(token),
		APIBaseURL: defaultAPIBaseURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// Revoke removes a user from a channel by banning and immediately unbanning
// them, so they are out but free to rejoin after a future purchase. The
// operation is idempotent from the caller's perspective: a user who already
// left, was already kicked, or whom the API no longer knows counts as
// removed.
func (c *Client) Revoke(ctx context.Context, userID int64, channelID string) error {
	if channelID == "" {
		return errors.New("channel id is required")
	}

	// A member who is already gone needs no ban round-trip.
	if status, err := c.chatMemberStatus(ctx, channelID, userID); err == nil {
		if status == "left" || status == "kicked" {
			return nil
		}
	}

	if err := c.call(ctx, "banChatMember", url.Values{
		"chat_id": {channelID},
		"user_id": {strconv.FormatInt(userID, 10)},
	}, nil); err != nil {
		if isAlreadyRemoved(err) {
			return nil
		}
		return fmt.Errorf("ban member: %w", err)
	}

	if err := c.call(ctx, "unbanChatMember", url.Values{
		"chat_id":        {channelID},
		"user_id":        {strconv.FormatInt(userID, 10)},
		"only_if_banned": {"true"},
	}, nil); err != nil {
		// The ban already removed the user; a failed unban only blocks a
		// future rejoin and is worth surfacing.
		return fmt.Errorf("unban member: %w", err)
	}
	return nil
}

// Invite creates a single-use invite link for the channel.
func (c *Client) Invite(ctx context.Context, userID int64, channelID string) (string, error) {
	if channelID == "" {
		return "", errors.New("channel id is required")
	}
	var result struct {
		InviteLink string `json:"invite_link"`
	}
	err := c.call(ctx, "createChatInviteLink", url.Values{
		"chat_id":      {channelID},
		"member_limit": {"1"},
		"name":         {fmt.Sprintf("sub-%d", userID)},
	}, &result)
	if err != nil {
		return "", fmt.Errorf("create invite link: %w", err)
	}
	return result.InviteLink, nil
}

// SendMessage delivers a plain-text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.call(ctx, "sendMessage", url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
		"text":    {text},
	}, nil)
}

func (c *Client) chatMemberStatus(ctx context.Context, channelID string, userID int64) (string, error) {
	var result struct {
		Status string `json:"status"`
	}
	err := c.call(ctx, "getChatMember", url.Values{
		"chat_id": {channelID},
		"user_id": {strconv.FormatInt(userID, 10)},
	}, &result)
	if err != nil {
		return "", err
	}
	return result.Status, nil
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out interface{}) error {
	if c.Token == "" {
		return ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(c.APIBaseURL, "/"), c.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	var api apiResponse
	if err := json.Unmarshal(body, &api); err != nil {
		return fmt.Errorf("%s: unexpected response (status %d)", method, resp.StatusCode)
	}
	if !api.OK {
		return fmt.Errorf("%s: %s", method, api.Description)
	}
	if out != nil && len(api.Result) > 0 {
		if err := json.Unmarshal(api.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// isAlreadyRemoved matches the API error descriptions that mean the user is
// effectively not a member anymore, which the revoke treats as success.
func isAlreadyRemoved(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"user not found",
		"user is not a member",
		"user_not_participant",
		"participant_id_invalid",
		"chat not found",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
