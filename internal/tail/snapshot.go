package tail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/V4T54L/devrelay/internal/domain"
	"github.com/V4T54L/devrelay/internal/pkg/devalue"
)

const (
	snapshotPrefix = "<script>window.__NUXT_LOGS__ = "
	snapshotSuffix = "</script>"
	maxPageSize    = 8 << 20
)

// ErrNoSnapshot is returned when a page carries no embedded log snapshot.
var ErrNoSnapshot = errors.New("page has no log snapshot")

// Snapshot fetches a rendered page and prints the records embedded in it. It returns the number
// of records printed. Fetching the page drains the server's buffer like any other render.
func (c *Client) Snapshot(ctx context.Context, pageURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return 0, err
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("page returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return 0, fmt.Errorf("read page: %w", err)
	}

	records, err := ExtractSnapshot(string(body))
	if err != nil {
		return 0, err
	}
	for _, record := range records {
		if _, err := fmt.Fprintln(c.Out, c.Styles.Format(record)); err != nil {
			return 0, err
		}
	}
	return len(records), nil
}

// ExtractSnapshot finds the log snapshot script in a rendered document and decodes its records.
func ExtractSnapshot(html string) ([]domain.LogRecord, error) {
	start := strings.Index(html, snapshotPrefix)
	if start < 0 {
		return nil, ErrNoSnapshot
	}
	literal := html[start+len(snapshotPrefix):]
	// The literal escapes '<', so the first closing tag ends it.
	end := strings.Index(literal, snapshotSuffix)
	if end < 0 {
		return nil, ErrNoSnapshot
	}

	v, err := devalue.Parse(literal[:end])
	if err != nil {
		return nil, fmt.Errorf("decode log snapshot: %w", err)
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("decode log snapshot: expected an array, got %T", v)
	}

	records := make([]domain.LogRecord, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("decode log snapshot: record %d is %T", i, item)
		}
		records = append(records, recordFromObject(obj))
	}
	return records, nil
}

func recordFromObject(obj map[string]any) domain.LogRecord {
	str := func(key string) string {
		s, _ := obj[key].(string)
		return s
	}
	record := domain.LogRecord{
		ID:       str("id"),
		Type:     str("type"),
		Tag:      str("tag"),
		Filename: str("filename"),
		Stack:    str("stack"),
		Source:   str("source"),
	}
	if level, ok := obj["level"].(float64); ok {
		record.Level = int(level)
	} else {
		record.Level = domain.LevelOf(record.Type)
	}
	if date, ok := obj["date"].(time.Time); ok {
		record.Date = date
	}
	if args, ok := obj["args"].([]any); ok {
		record.Args = args
	}
	return record
}
