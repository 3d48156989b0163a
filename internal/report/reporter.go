package report

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/cms485-trainer/internal/metrics"
)

const (
	ChannelRuntime = "runtime"
	ChannelWebhook = "webhook"
	ChannelXAPI    = "xapi"
	ChannelParent  = "parent"
)

// RuntimeAPI is the hosting LMS runtime's completion call.
type RuntimeAPI interface {
	Complete(ctx context.Context, learnerID string, p Payload) error
}

// Poster hands the payload to the context embedding the trainer.
type Poster interface {
	Post(ctx context.Context, learnerID string, p Payload) error
}

// Target describes where one report goes. Zero-valued channels are skipped.
type Target struct {
	LearnerID   string
	LearnerName string

	Runtime    RuntimeAPI
	WebhookURL string
	XAPI       XAPIConfig
	Parent     Poster
}

// Result records per-channel success. Unconfigured channels are false and
// produce no error.
type Result struct {
	Runtime     bool      `json:"runtime"`
	Webhook     bool      `json:"webhook"`
	XAPI        bool      `json:"xapi"`
	Parent      bool      `json:"parent"`
	Errors      []string  `json:"errors,omitempty"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

type Reporter struct {
	HTTP    *http.Client
	Timeout time.Duration // DeliverAsync budget
	Now     func() time.Time

	mu   sync.Mutex
	last map[string]Result
	wg   sync.WaitGroup
}

func NewReporter(httpClient *http.Client, timeout time.Duration) *Reporter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Reporter{HTTP: httpClient, Timeout: timeout, Now: time.Now, last: map[string]Result{}}
}

type channel struct {
	name       string
	configured bool
	send       func(context.Context) error
	ok         *bool
}

// Deliver attempts every configured channel concurrently. A failing or
// panicking channel is recorded in Result.Errors and never stops the others.
func (r *Reporter) Deliver(ctx context.Context, p Payload, t Target) Result {
	start := time.Now()
	var (
		mu  sync.Mutex
		res Result
	)
	channels := []channel{
		{ChannelRuntime, t.Runtime != nil, func(ctx context.Context) error {
			return t.Runtime.Complete(ctx, t.LearnerID, p)
		}, &res.Runtime},
		{ChannelWebhook, t.WebhookURL != "", func(ctx context.Context) error {
			return r.postWebhook(ctx, t.WebhookURL, p)
		}, &res.Webhook},
		{ChannelXAPI, t.XAPI.Endpoint != "", func(ctx context.Context) error {
			return r.postStatement(ctx, t, p)
		}, &res.XAPI},
		{ChannelParent, t.Parent != nil, func(ctx context.Context) error {
			return t.Parent.Post(ctx, t.LearnerID, p)
		}, &res.Parent},
	}

	// plain Group: one channel failing must not cancel the rest
	var g errgroup.Group
	for _, ch := range channels {
		if !ch.configured {
			metrics.Deliveries.WithLabelValues(ch.name, "skipped").Inc()
			continue
		}
		g.Go(func() error {
			err := guard(ctx, ch.send)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("report: %s delivery failed for %s: %v", ch.name, t.LearnerID, err)
				res.Errors = append(res.Errors, ch.name+": "+err.Error())
				metrics.Deliveries.WithLabelValues(ch.name, "failed").Inc()
				return nil
			}
			*ch.ok = true
			metrics.Deliveries.WithLabelValues(ch.name, "ok").Inc()
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(res.Errors)
	res.DeliveredAt = r.now()
	metrics.DeliveryDuration.Observe(time.Since(start).Seconds())
	return res
}

// DeliverAsync reports in the background on a detached context bounded by
// r.Timeout and keeps the result for LastResult.
func (r *Reporter) DeliverAsync(p Payload, t Target) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
		defer cancel()
		res := r.Deliver(ctx, p, t)
		r.mu.Lock()
		r.last[t.LearnerID] = res
		r.mu.Unlock()
	}()
}

func (r *Reporter) LastResult(learnerID string) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.last[learnerID]
	return res, ok
}

// Wait blocks until background deliveries finish.
func (r *Reporter) Wait() { r.wg.Wait() }

func (r *Reporter) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func guard(ctx context.Context, f func(context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return f(ctx)
}
