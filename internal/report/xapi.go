package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	xapiVersion      = "1.0.3"
	verbCompleted    = "http://adlnet.gov/expapi/verbs/completed"
	defaultActivity  = "urn:cms485:poc-trainer"
	defaultHomePage  = "urn:cms485:learners"
	activityNameText = "CMS-485 Plan of Care Trainer"
)

// XAPIConfig points at a learning record store. Basic auth is used when a
// username is set; OAuth2 client credentials when a token URL is set.
type XAPIConfig struct {
	Endpoint string
	Username string
	Password string

	TokenURL     string
	ClientID     string
	ClientSecret string

	ActivityID string
	HomePage   string
}

type langMap map[string]string

type statement struct {
	ID        string `json:"id"`
	Actor     actor  `json:"actor"`
	Verb      verb   `json:"verb"`
	Object    object `json:"object"`
	Result    result `json:"result"`
	Timestamp string `json:"timestamp"`
}

type actor struct {
	ObjectType string  `json:"objectType"`
	Name       string  `json:"name,omitempty"`
	Account    account `json:"account"`
}

type account struct {
	HomePage string `json:"homePage"`
	Name     string `json:"name"`
}

type verb struct {
	ID      string  `json:"id"`
	Display langMap `json:"display"`
}

type object struct {
	ObjectType string `json:"objectType"`
	ID         string `json:"id"`
	Definition struct {
		Name langMap `json:"name"`
	} `json:"definition"`
}

type result struct {
	Score struct {
		Scaled float64 `json:"scaled"`
		Raw    int     `json:"raw"`
		Min    int     `json:"min"`
		Max    int     `json:"max"`
	} `json:"score"`
	Success    bool   `json:"success"`
	Completion bool   `json:"completion"`
	Duration   string `json:"duration"`
}

// newStatement builds the xAPI "completed" statement for a payload.
func newStatement(cfg XAPIConfig, learnerID, learnerName string, p Payload) statement {
	st := statement{
		ID: uuid.NewString(),
		Actor: actor{
			ObjectType: "Agent",
			Name:       learnerName,
			Account:    account{HomePage: or(cfg.HomePage, defaultHomePage), Name: learnerID},
		},
		Verb:      verb{ID: verbCompleted, Display: langMap{"en-US": "completed"}},
		Object:    object{ObjectType: "Activity", ID: or(cfg.ActivityID, defaultActivity)},
		Timestamp: p.CompletedAt,
	}
	st.Object.Definition.Name = langMap{"en-US": activityNameText}
	st.Result.Score.Scaled = float64(p.OverallScore) / 100
	st.Result.Score.Raw = p.OverallScore
	st.Result.Score.Max = 100
	st.Result.Success = p.OverallPassed
	st.Result.Completion = true
	st.Result.Duration = fmt.Sprintf("PT%dS", p.TotalDurationSec)
	return st
}

func (r *Reporter) postStatement(ctx context.Context, t Target, p Payload) error {
	cfg := t.XAPI
	body, err := json.Marshal(newStatement(cfg, t.LearnerID, t.LearnerName, p))
	if err != nil {
		return err
	}
	url := strings.TrimRight(cfg.Endpoint, "/") + "/statements"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Experience-API-Version", xapiVersion)

	client := r.HTTP
	switch {
	case cfg.TokenURL != "":
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		client = cc.Client(context.WithValue(ctx, oauth2.HTTPClient, r.HTTP))
	case cfg.Username != "":
		req.SetBasicAuth(cfg.Username, cfg.Password)
	}

	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("xapi statements: %s", res.Status)
	}
	return nil
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
