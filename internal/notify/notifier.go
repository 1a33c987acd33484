// Package notify alerts the contractor and the dashboard about HOT leads.
package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/siftly/siftly/internal/errors"
	"github.com/siftly/siftly/internal/lead"
	"github.com/siftly/siftly/internal/metrics"
	"github.com/siftly/siftly/internal/sms"
)

// Channel names used in logs and metrics.
const (
	ChannelSMS       = "sms"
	ChannelDashboard = "dashboard"
)

// Options configures a Notifier.
type Options struct {
	// Sender delivers the contractor alert.
	Sender sms.Sender

	// ContractorPhone is the alert destination. Empty disables SMS alerts.
	ContractorPhone string

	// Dashboard is optional.
	Dashboard Dashboard

	// Timeout bounds each dispatch.
	Timeout time.Duration

	// Location renders dashboard timestamps. Nil means UTC.
	Location *time.Location

	Recorder metrics.Recorder
}

// Notifier dispatches HOT lead notifications in the background.
type Notifier struct {
	opts Options
	rec  metrics.Recorder
	wg   sync.WaitGroup
}

// New creates a notifier.
func New(opts Options) *Notifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Notifier{opts: opts, rec: metrics.OrNop(opts.Recorder)}
}

// LeadQualified starts dispatching notifications for l and returns
// immediately. Only HOT leads notify. Failures are logged and counted, never
// returned, and never touch the stored lead.
func (n *Notifier) LeadQualified(ctx context.Context, l *lead.Lead) {
	if l == nil || l.Classification != lead.ClassHot {
		return
	}
	l = l.Clone()

	// Detach from the request: the reply is sent before dispatch completes.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.opts.Timeout)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer cancel()
		n.dispatch(ctx, l)
	}()
}

// Wait blocks until all in-flight dispatches have finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) dispatch(ctx context.Context, l *lead.Lead) {
	var wg sync.WaitGroup

	if n.opts.Sender != nil && n.opts.ContractorPhone != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := n.opts.Sender.Send(ctx, n.opts.ContractorPhone, ComposeAlert(l))
			n.report(ChannelSMS, l, err)
		}()
	}

	if n.opts.Dashboard != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := n.opts.Dashboard.Post(ctx, NewDashboardPayload(l, n.opts.Location))
			n.report(ChannelDashboard, l, err)
		}()
	}

	wg.Wait()
}

func (n *Notifier) report(channel string, l *lead.Lead, err error) {
	n.rec.ObserveNotification(channel, err == nil)
	if err != nil {
		log.Printf("notify: %v (lead %s)", errors.NewNotifierFailure(channel, err), l.PhoneNumber)
		return
	}
	log.Printf("notify: %s alert dispatched for lead %s", channel, l.PhoneNumber)
}
