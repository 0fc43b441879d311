package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/msi-products/capwatch/internal/model"
)

const snippetLength = 100

// FetchError reports a non-2xx response from the CRM API.
type FetchError struct {
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("CRM API error: status %d", e.Status)
}

// apiEntry mirrors the CRM activity feed wire format.
type apiEntry struct {
	ID      int64  `json:"id"`
	Subject string `json:"subject"`
	Content string `json:"content"`
	Creator *struct {
		Name string `json:"name"`
	} `json:"creator"`
	UpdatedAt *time.Time `json:"updatedAt"`
	CreatedAt *time.Time `json:"createdAt"`
	Parties   []struct {
		ID int64 `json:"id"`
	} `json:"parties"`
}

type apiResponse struct {
	Entries []apiEntry `json:"entries"`
}

// Client fetches the CRM activity feed and normalizes it into entry drafts.
type Client struct {
	client  *resty.Client
	apiURL  string
	baseURL string
}

func NewClient(apiURL, baseURL string, timeout time.Duration) *Client {
	return &Client{
		client:  resty.New().SetTimeout(timeout),
		apiURL:  strings.TrimSuffix(apiURL, "/"),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// FetchEntries performs one read of the entry list resource and returns
// canonical drafts, newest flags unset. A non-2xx status yields a *FetchError.
func (c *Client) FetchEntries(ctx context.Context, token string) ([]model.Entry, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token).
		SetHeader("Accept", "application/json").
		Get(c.apiURL + "/entries")

	if err != nil {
		return nil, fmt.Errorf("failed to fetch CRM entries: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, &FetchError{Status: resp.StatusCode()}
	}

	var payload apiResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse CRM response: %w", err)
	}

	entries := make([]model.Entry, 0, len(payload.Entries))
	for _, e := range payload.Entries {
		entries = append(entries, c.normalize(e, time.Now()))
	}
	return entries, nil
}

// normalize applies the draft derivation rules: party deep link with a base
// URL fallback, subject-or-synthesized title, updated-then-created-then-now
// date, first-line snippet.
func (c *Client) normalize(e apiEntry, now time.Time) model.Entry {
	link := c.baseURL
	if len(e.Parties) > 0 {
		link = fmt.Sprintf("%s/party/%d", c.baseURL, e.Parties[0].ID)
	}

	title := strings.TrimSpace(e.Subject)
	if title == "" {
		creator := "Someone"
		if e.Creator != nil && e.Creator.Name != "" {
			creator = e.Creator.Name
		}
		title = creator + " Task"
	}

	date := now
	switch {
	case e.UpdatedAt != nil:
		date = *e.UpdatedAt
	case e.CreatedAt != nil:
		date = *e.CreatedAt
	}

	author := ""
	if e.Creator != nil {
		author = e.Creator.Name
	}

	return model.Entry{
		Guid:    strconv.FormatInt(e.ID, 10),
		Title:   title,
		Date:    date,
		Link:    link,
		Author:  author,
		Snippet: snippet(e.Content),
		Body:    e.Content,
	}
}

// snippet takes the first line of the body, truncated to 100 characters.
func snippet(body string) string {
	line := body
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	runes := []rune(line)
	if len(runes) > snippetLength {
		return string(runes[:snippetLength])
	}
	return line
}
