package push

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"akita-notify-go/internal/models"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
)

var (
	// ErrGone means the push service dropped the endpoint for good.
	ErrGone       = errors.New("push endpoint gone")
	ErrInvalidKey = errors.New("invalid subscription keys")
)

// StatusError is a non-2xx answer from the push service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("push service returned %d", e.Code)
	}
	return fmt.Sprintf("push service returned %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	if isGoneStatus(e.Code) {
		return ErrGone
	}
	return nil
}

// isGoneStatus reports the terminal statuses of RFC 8030 section 7.3.
func isGoneStatus(code int) bool {
	return code == http.StatusGone || code == http.StatusNotFound
}

type Options struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string
	TTL             int
	Urgency         string
	HTTPClient      webpush.HTTPClient
}

type Sender struct {
	opts Options
	log  *zap.Logger
}

// NewSender builds a sender. Missing VAPID keys are generated and logged so they
// can be persisted.
func NewSender(opts Options, l *zap.Logger) (*Sender, error) {
	if l == nil {
		l = zap.NewNop()
	}
	l = l.With(zap.String("component", "push.sender"))

	if opts.VAPIDPrivateKey == "" || opts.VAPIDPublicKey == "" {
		l.Warn("VAPID keys not found in environment, generating new keys")
		privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			return nil, fmt.Errorf("generate VAPID keys: %w", err)
		}
		opts.VAPIDPrivateKey = privateKey
		opts.VAPIDPublicKey = publicKey
		l.Info("generated VAPID keys, add them to .env to keep existing subscriptions valid",
			zap.String("VAPID_PUBLIC_KEY", publicKey),
			zap.String("VAPID_PRIVATE_KEY", privateKey),
		)
	}
	if opts.TTL <= 0 {
		opts.TTL = 86400
	}
	if opts.Urgency == "" {
		opts.Urgency = string(webpush.UrgencyNormal)
	}
	return &Sender{opts: opts, log: l}, nil
}

func (s *Sender) PublicKey() string { return s.opts.VAPIDPublicKey }

// Send encrypts msg for sub and posts it to the subscription endpoint.
func (s *Sender) Send(ctx context.Context, sub models.PushSubscription, msg models.PushMessage) error {
	pub, secret, err := models.DecodeSubscriptionKeys(sub.P256dh, sub.Auth)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode push message: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: base64.RawURLEncoding.EncodeToString(pub),
			Auth:   base64.RawURLEncoding.EncodeToString(secret),
		},
	}, &webpush.Options{
		HTTPClient:      s.opts.HTTPClient,
		Subscriber:      s.opts.Subject,
		VAPIDPublicKey:  s.opts.VAPIDPublicKey,
		VAPIDPrivateKey: s.opts.VAPIDPrivateKey,
		TTL:             s.opts.TTL,
		Urgency:         webpush.Urgency(s.opts.Urgency),
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: string(body)}
}
