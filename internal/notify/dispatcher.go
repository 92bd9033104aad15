// Package notify fans a community event out to a member's devices and inbox.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"akita-notify-go/internal/email"
	"akita-notify-go/internal/models"
	"akita-notify-go/internal/obs"
	"akita-notify-go/internal/push"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrNoUser = errors.New("notification event has no user id")

const defaultConcurrency = 8

type SubscriptionStore interface {
	GetPushSubscriptions(ctx context.Context, userID string) ([]models.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, id int64) error
}

type PreferenceReader interface {
	GetNotificationPreference(ctx context.Context, userID string) (models.NotificationPreference, bool, error)
}

type MemberDirectory interface {
	GetMember(ctx context.Context, id string) (models.Member, error)
}

type PushSender interface {
	Send(ctx context.Context, sub models.PushSubscription, msg models.PushMessage) error
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

type Recorder interface {
	RecordDelivery(ctx context.Context, d models.Delivery) (models.Delivery, error)
}

// PushResult is the caller-visible outcome for one subscription.
type PushResult struct {
	Success bool   `json:"success"`
	ID      int64  `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Outcome struct {
	NoSubscriptions bool
	PushResults     []PushResult
	Pruned          int
	Email           models.EmailOutcome
}

// Dispatcher delivers events over push and email. Email must be left nil (not a
// typed nil pointer) when no provider is configured. Recorder is optional.
type Dispatcher struct {
	Subscriptions SubscriptionStore
	Preferences   PreferenceReader
	Members       MemberDirectory
	Push          PushSender
	Email         EmailSender
	Recorder      Recorder
	BaseURL       string
	Concurrency   int
	Log           *zap.Logger
}

// TestMessage is sent by the test-dispatch endpoint.
var TestMessage = models.PushMessage{
	Title: "Test Notification",
	Body:  "This is a test push notification from Akita Connect!",
	URL:   "/",
}

// Dispatch delivers ev to every subscription of the member and, when the
// member's preferences allow it, by email. Only push results are returned to
// the caller; the email outcome is logged and recorded.
func (d *Dispatcher) Dispatch(ctx context.Context, ev models.NotificationEvent) (Outcome, error) {
	if ev.UserID == "" {
		return Outcome{}, ErrNoUser
	}
	ev = ev.WithDefaults()
	return d.run(ctx, "webhook", ev, ev.PushMessage(), func(ctx context.Context) models.EmailOutcome {
		return d.notifyByEmail(ctx, ev)
	})
}

// SendTest pushes TestMessage to every subscription of the member. No email.
func (d *Dispatcher) SendTest(ctx context.Context, userID string) (Outcome, error) {
	if userID == "" {
		return Outcome{}, ErrNoUser
	}
	ev := models.NotificationEvent{UserID: userID, Title: TestMessage.Title, Message: TestMessage.Body, Link: TestMessage.URL}
	return d.run(ctx, "test", ev, TestMessage, nil)
}

func (d *Dispatcher) run(ctx context.Context, source string, ev models.NotificationEvent, msg models.PushMessage, emailTask func(context.Context) models.EmailOutcome) (Outcome, error) {
	start := time.Now()
	log := d.logger().With(zap.String("user_id", ev.UserID), zap.String("source", source))

	subs, err := d.Subscriptions.GetPushSubscriptions(ctx, ev.UserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		log.Info("no push subscriptions, nothing to deliver")
		return Outcome{NoSubscriptions: true}, nil
	}

	type pushReport struct {
		results []PushResult
		pruned  int
	}
	pushDone := make(chan pushReport, 1)
	emailDone := make(chan models.EmailOutcome, 1)

	go func() {
		results, pruned := d.fanOut(ctx, subs, msg)
		pushDone <- pushReport{results: results, pruned: pruned}
	}()
	go func() {
		if emailTask == nil {
			emailDone <- models.EmailSkipped
			return
		}
		emailDone <- emailTask(ctx)
	}()

	report := <-pushDone
	emailOutcome := <-emailDone

	out := Outcome{PushResults: report.results, Pruned: report.pruned, Email: emailOutcome}
	obs.EmailNotifications.WithLabelValues(string(emailOutcome)).Inc()
	obs.DispatchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())

	delivery := models.Delivery{
		UserID:        ev.UserID,
		Category:      ev.Category.String(),
		Title:         ev.Title,
		PushAttempted: len(report.results),
		Pruned:        report.pruned,
		Email:         emailOutcome,
		Source:        source,
	}
	for _, r := range report.results {
		if r.Success {
			delivery.PushSucceeded++
		} else {
			delivery.PushFailed++
		}
	}
	log.Info("notification dispatched",
		zap.String("category", delivery.Category),
		zap.Int("push_attempted", delivery.PushAttempted),
		zap.Int("push_succeeded", delivery.PushSucceeded),
		zap.Int("pruned", delivery.Pruned),
		zap.String("email", string(emailOutcome)),
		zap.Duration("elapsed", time.Since(start)),
	)
	if d.Recorder != nil {
		if _, err := d.Recorder.RecordDelivery(ctx, delivery); err != nil {
			log.Warn("record delivery failed", zap.Error(err))
		}
	}
	return out, nil
}

// fanOut attempts every subscription concurrently. Every attempt completes and
// is reported in subscription order regardless of its siblings.
func (d *Dispatcher) fanOut(ctx context.Context, subs []models.PushSubscription, msg models.PushMessage) ([]PushResult, int) {
	results := make([]PushResult, len(subs))
	pruned := make([]bool, len(subs))

	var g errgroup.Group
	g.SetLimit(d.concurrency())
	for i, sub := range subs {
		g.Go(func() error {
			results[i], pruned[i] = d.deliver(ctx, sub, msg)
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, p := range pruned {
		if p {
			n++
		}
	}
	return results, n
}

func (d *Dispatcher) deliver(ctx context.Context, sub models.PushSubscription, msg models.PushMessage) (PushResult, bool) {
	log := d.logger().With(zap.String("user_id", sub.UserID), zap.Int64("subscription_id", sub.ID))

	err := d.Push.Send(ctx, sub, msg)
	switch {
	case err == nil:
		obs.PushDeliveries.WithLabelValues("ok").Inc()
		return PushResult{Success: true, ID: sub.ID}, false

	case errors.Is(err, push.ErrGone):
		obs.PushDeliveries.WithLabelValues("gone").Inc()
		pruned := false
		if derr := d.Subscriptions.DeletePushSubscription(ctx, sub.ID); derr != nil {
			log.Error("delete gone subscription failed", zap.Error(derr))
		} else {
			pruned = true
			obs.SubscriptionsPruned.Inc()
			log.Info("removed gone push subscription", zap.Error(err))
		}
		return PushResult{ID: sub.ID, Error: err.Error()}, pruned

	case errors.Is(err, push.ErrInvalidKey):
		obs.PushDeliveries.WithLabelValues("invalid_key").Inc()
		log.Warn("push subscription has malformed keys", zap.Error(err))

	default:
		obs.PushDeliveries.WithLabelValues("error").Inc()
		log.Warn("push delivery failed", zap.Error(err))
	}
	return PushResult{ID: sub.ID, Error: err.Error()}, false
}

// notifyByEmail never fails the dispatch; every problem becomes an outcome.
func (d *Dispatcher) notifyByEmail(ctx context.Context, ev models.NotificationEvent) models.EmailOutcome {
	log := d.logger().With(zap.String("user_id", ev.UserID), zap.String("type", ev.RawType))

	if d.Email == nil {
		log.Info("email skipped: no provider API key configured")
		return models.EmailDisabled
	}

	member, err := d.Members.GetMember(ctx, ev.UserID)
	if err != nil || member.Email == "" {
		log.Warn("email skipped: no address for member", zap.Error(err))
		return models.EmailNoAddress
	}

	pref, exists, err := d.Preferences.GetNotificationPreference(ctx, ev.UserID)
	if err != nil {
		log.Error("email skipped: load preferences", zap.Error(err))
		return models.EmailFailed
	}
	if !exists {
		pref = models.DefaultNotificationPreference(ev.UserID)
	}
	if !pref.Allows(ev.Category) {
		log.Info("email suppressed by preferences", zap.String("category", ev.Category.String()), zap.Bool("preferences_row", exists))
		return models.EmailSuppressed
	}

	subject, body, err := email.Render(ev, d.BaseURL)
	if err != nil {
		log.Error("render email", zap.Error(err))
		return models.EmailFailed
	}
	if err := d.Email.Send(ctx, member.Email, subject, body); err != nil {
		log.Error("send email", zap.Error(err))
		return models.EmailFailed
	}
	return models.EmailSent
}

func (d *Dispatcher) concurrency() int {
	if d.Concurrency > 0 {
		return d.Concurrency
	}
	return defaultConcurrency
}

func (d *Dispatcher) logger() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log.With(zap.String("component", "notify.dispatcher"))
}
