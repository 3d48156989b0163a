// Package notify sends the challenge-result email for the case challenge.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// ChallengeResult is the summary of one graded case challenge.
type ChallengeResult struct {
	LearnerName string   `json:"learnerName,omitempty"`
	CaseID      string   `json:"caseId,omitempty"`
	Correct     []string `json:"correct"`
	Incorrect   []string `json:"incorrect"`
	SafetyFirst bool     `json:"safetyFirst"`
	TotalBoxes  int      `json:"totalBoxes"`
	PrizeID     string   `json:"prizeId,omitempty"`
	Timestamp   string   `json:"timestamp"`
}

type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type MailerConfig struct {
	Region   string
	From     string
	FromName string
	To       string // recipient of challenge results
	Debug    bool
}

// Mailer delivers challenge results through Amazon SES. Without a sender
// address it is disabled and every send is a logged no-op.
type Mailer struct {
	client   sesAPI
	from     string
	fromName string
	to       string
	enabled  bool
	debug    bool
}

func NewMailer(ctx context.Context, cfg MailerConfig) (*Mailer, error) {
	if cfg.From == "" || cfg.To == "" {
		log.Println("challenge email disabled: SES_FROM_EMAIL or CHALLENGE_EMAIL_TO not configured")
		return &Mailer{debug: cfg.Debug}, nil
	}
	if cfg.Debug {
		log.Printf("[DEBUG] challenge email: region=%s from=%s to=%s", cfg.Region, cfg.From, cfg.To)
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	log.Printf("challenge email enabled: from=%s region=%s", cfg.From, cfg.Region)
	return newMailer(sesv2.NewFromConfig(awsCfg), cfg), nil
}

func newMailer(client sesAPI, cfg MailerConfig) *Mailer {
	return &Mailer{
		client:   client,
		from:     cfg.From,
		fromName: cfg.FromName,
		to:       cfg.To,
		enabled:  client != nil,
		debug:    cfg.Debug,
	}
}

func (m *Mailer) IsEnabled() bool { return m.enabled }

func (m *Mailer) SendChallengeResult(ctx context.Context, r ChallengeResult) error {
	if !m.enabled {
		if m.debug {
			log.Printf("[DEBUG] challenge email skipped (disabled): %s", r.LearnerName)
		}
		return nil
	}
	subject, htmlBody, textBody := render(r)

	from := m.from
	if m.fromName != "" {
		from = fmt.Sprintf("%s <%s>", m.fromName, m.from)
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{m.to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}
	out, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("send challenge email to %s: %w", m.to, err)
	}
	if m.debug && out != nil && out.MessageId != nil {
		log.Printf("[DEBUG] challenge email message id: %s", *out.MessageId)
	}
	return nil
}

func render(r ChallengeResult) (subject, htmlBody, textBody string) {
	name := r.LearnerName
	if name == "" {
		name = "Anonymous learner"
	}
	safety := "no"
	if r.SafetyFirst {
		safety = "yes"
	}
	subject = fmt.Sprintf("CMS-485 challenge result: %s (%d/%d)", name, len(r.Correct), r.TotalBoxes)

	raw, _ := json.MarshalIndent(r, "", "  ")
	var tb strings.Builder
	fmt.Fprintf(&tb, "Learner: %s\n", name)
	fmt.Fprintf(&tb, "Correct: %d of %d\n", len(r.Correct), r.TotalBoxes)
	fmt.Fprintf(&tb, "Safety box first: %s\n", safety)
	if len(r.Incorrect) > 0 {
		fmt.Fprintf(&tb, "Missed: %s\n", strings.Join(r.Incorrect, ", "))
	}
	if r.PrizeID != "" {
		fmt.Fprintf(&tb, "Prize: %s\n", r.PrizeID)
	}
	fmt.Fprintf(&tb, "Submitted: %s\n\n%s\n", r.Timestamp, raw)
	textBody = tb.String()

	htmlBody = fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
	<h2>CMS-485 challenge result</h2>
	<p><strong>%s</strong> placed %d of %d boxes correctly.</p>
	<p>Safety box first: %s</p>
	<pre>%s</pre>
</body>
</html>`, html.EscapeString(name), len(r.Correct), r.TotalBoxes, safety, html.EscapeString(string(raw)))
	return subject, htmlBody, textBody
}
