// Package agshttp is an AGS client authenticated with the OAuth2 client
// credentials grant.
package agshttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mind-engage/cms485-trainer/pkg/lti-ags-gradebook/gradebook"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	mediaLineItem  = "application/vnd.ims.lis.v2.lineitem+json"
	mediaLineItems = "application/vnd.ims.lis.v2.lineitemcontainer+json"
	mediaScore     = "application/vnd.ims.lis.v1.score+json"

	ScopeLineItem = "https://purl.imsglobal.org/spec/lti-ags/scope/lineitem"
	ScopeScore    = "https://purl.imsglobal.org/spec/lti-ags/scope/score"
)

type Client struct {
	http *http.Client
}

type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
	Base         *http.Client // transport for token and AGS calls; default http.DefaultClient
}

func New(cfg Config) *Client {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{ScopeLineItem, ScopeScore}
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       scopes,
	}
	ctx := context.Background()
	if cfg.Base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.Base)
	}
	h := cc.Client(ctx)
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	return &Client{http: h}
}

type lineItem struct {
	ID             string  `json:"id,omitempty"`
	Label          string  `json:"label"`
	ScoreMaximum   float64 `json:"scoreMaximum"`
	ResourceID     string  `json:"resourceId,omitempty"`
	ResourceLinkID string  `json:"resourceLinkId,omitempty"`
}

func (it lineItem) model() gradebook.LineItem {
	return gradebook.LineItem{
		ID: it.ID, Label: it.Label, ScoreMaximum: it.ScoreMaximum,
		ResourceID: it.ResourceID, ResourceLinkID: it.ResourceLinkID,
	}
}

func (c *Client) ListLineItems(ctx context.Context, lineItemsURL string, q map[string]string) ([]gradebook.LineItem, error) {
	u, err := url.Parse(lineItemsURL)
	if err != nil {
		return nil, fmt.Errorf("lineitems url: %w", err)
	}
	p := u.Query()
	for k, v := range q {
		p.Set(k, v)
	}
	u.RawQuery = p.Encode()

	var items []lineItem
	if err := c.do(ctx, http.MethodGet, u.String(), nil, "", mediaLineItems, &items); err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	out := make([]gradebook.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, it.model())
	}
	return out, nil
}

func (c *Client) CreateLineItem(ctx context.Context, lineItemsURL string, req gradebook.CreateLineItemReq) (gradebook.LineItem, error) {
	body := lineItem{
		Label: req.Label, ScoreMaximum: req.ScoreMaximum,
		ResourceID: req.ResourceID, ResourceLinkID: req.ResourceLinkID,
	}
	var it lineItem
	if err := c.do(ctx, http.MethodPost, lineItemsURL, body, mediaLineItem, mediaLineItem, &it); err != nil {
		return gradebook.LineItem{}, fmt.Errorf("create line item: %w", err)
	}
	return it.model(), nil
}

// PostScore sends the score to {lineItemURL}/scores.
func (c *Client) PostScore(ctx context.Context, lineItemURL string, s gradebook.Score) error {
	body := map[string]any{
		"userId":           s.UserID,
		"scoreGiven":       s.ScoreGiven,
		"scoreMaximum":     s.ScoreMaximum,
		"activityProgress": s.ActivityProgress,
		"gradingProgress":  s.GradingProgress,
		"timestamp":        s.Timestamp.UTC().Format(time.RFC3339),
	}
	if err := c.do(ctx, http.MethodPost, scoresURL(lineItemURL), body, mediaScore, "", nil); err != nil {
		return fmt.Errorf("post score: %w", err)
	}
	return nil
}

// scoresURL appends /scores to the line item path, keeping any query.
func scoresURL(lineItemURL string) string {
	u, err := url.Parse(lineItemURL)
	if err != nil {
		return strings.TrimSuffix(lineItemURL, "/") + "/scores"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/scores"
	return u.String()
}

func (c *Client) do(ctx context.Context, method, target string, in any, contentType, accept string, out any) error {
	var rd io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("%s: %s", res.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
