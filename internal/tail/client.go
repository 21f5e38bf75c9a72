// Package tail follows a devrelay log stream from the terminal.
package tail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/V4T54L/devrelay/internal/domain"
)

// Client reads records from a log stream endpoint and prints them.
type Client struct {
	URL    string
	Token  string
	Filter string
	// Reconnect keeps the client running across disconnects until ctx is done.
	Reconnect bool

	HTTP   *http.Client
	Out    io.Writer
	Styles Styles
	Logger *slog.Logger
}

// Run connects to the stream and prints records until ctx is done or the stream ends.
func (c *Client) Run(ctx context.Context) error {
	delay := 500 * time.Millisecond
	for {
		err := c.stream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !c.Reconnect {
			return err
		}
		c.logger().Warn("log stream disconnected, reconnecting", "error", err, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, 10*time.Second)
	}
}

func (c *Client) stream(ctx context.Context) error {
	target, err := c.streamURL()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect to log stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("log stream returned %s: %s", resp.Status, body)
	}
	c.logger().Info("connected to log stream", "url", target)

	err = ReadFrames(resp.Body, func(f Frame) error {
		var record domain.LogRecord
		if err := json.Unmarshal([]byte(f.Data), &record); err != nil {
			c.logger().Warn("skipping undecodable event", "id", f.ID, "error", err)
			return nil
		}
		_, err := fmt.Fprintln(c.Out, c.Styles.Format(record))
		return err
	})
	if err == nil || errors.Is(err, context.Canceled) {
		return io.EOF
	}
	return err
}

func (c *Client) streamURL() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("invalid stream url: %w", err)
	}
	if c.Filter != "" {
		q := u.Query()
		q.Set("filter", c.Filter)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
