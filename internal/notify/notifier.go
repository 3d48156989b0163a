package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mind-engage/cms485-trainer/internal/metrics"
)

type Sender interface {
	SendChallengeResult(ctx context.Context, r ChallengeResult) error
}

// Notifier sends challenge results in the background. Failures are logged
// and counted, never returned.
type Notifier struct {
	sender  Sender
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewNotifier(sender Sender, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Notifier{sender: sender, timeout: timeout}
}

func (n *Notifier) Notify(r ChallengeResult) {
	if n == nil || n.sender == nil {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.sender.SendChallengeResult(ctx, r); err != nil {
			log.Printf("challenge email failed: %v", err)
			metrics.ChallengeEmails.WithLabelValues("failed").Inc()
			return
		}
		metrics.ChallengeEmails.WithLabelValues("sent").Inc()
	}()
}

// Wait blocks until in-flight sends finish.
func (n *Notifier) Wait() {
	if n != nil {
		n.wg.Wait()
	}
}
