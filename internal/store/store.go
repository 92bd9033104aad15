package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"akita-notify-go/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	deliveryTTL     = 30 * 24 * time.Hour // 30 days
	deliveryChannel = "delivery_events"
	timelineKey     = "deliveries:timeline"
)

var ErrNotFound = errors.New("not found")

// SubscriptionStore persists browser push endpoints.
type SubscriptionStore interface {
	SavePushSubscription(ctx context.Context, sub models.PushSubscription) (models.PushSubscription, error)
	GetPushSubscriptions(ctx context.Context, userID string) ([]models.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, id int64) error
	DeletePushSubscriptionByEndpoint(ctx context.Context, userID, endpoint string) error
}

// PreferenceStore persists the single settings row per member.
type PreferenceStore interface {
	GetNotificationPreference(ctx context.Context, userID string) (models.NotificationPreference, bool, error)
	SaveNotificationPreference(ctx context.Context, p models.NotificationPreference) (models.NotificationPreference, error)
}

// MemberDirectory resolves member accounts by id.
type MemberDirectory interface {
	GetMember(ctx context.Context, id string) (models.Member, error)
}

// MemberStore is the directory plus the writes fed by account sync events.
type MemberStore interface {
	MemberDirectory
	UpsertMember(ctx context.Context, m models.Member) error
	DeleteMember(ctx context.Context, id string) error
}

// OperatorStore handles console accounts.
type OperatorStore interface {
	CreateOperator(ctx context.Context, username, password, role string) (models.Operator, error)
	GetOperator(ctx context.Context, id int) (models.Operator, error)
	GetOperatorByUsername(ctx context.Context, username string) (models.Operator, error)
	CountOperators(ctx context.Context) (int, error)
	UpdateOperatorTOTP(ctx context.Context, id int, secret string, enabled bool) error
}

// DeliveryLog keeps recent dispatch summaries (Redis).
type DeliveryLog interface {
	RecordDelivery(ctx context.Context, d models.Delivery) (models.Delivery, error)
	GetDeliveries(ctx context.Context, limit int) ([]models.Delivery, error)
	SearchDeliveries(ctx context.Context, userID, category string) ([]models.Delivery, error)
	PurgeDeliveries(ctx context.Context) error
	Subscribe(ctx context.Context) *redis.PubSub
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(opts *redis.Options) *RedisStore {
	return &RedisStore{client: redis.NewClient(opts)}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Claim marks key as seen for ttl. It returns false when another caller
// already holds the key.
func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, dedupKey(key), time.Now().UTC().Unix(), ttl).Result()
}

// Release drops a claim so the same event can be processed again.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, dedupKey(key)).Err()
}

func dedupKey(key string) string {
	return "notify:dedup:" + key
}

func userIndex(userID string) string {
	return "deliveries:user:" + userID
}

func categoryIndex(category string) string {
	return "deliveries:category:" + strings.ToLower(category)
}

func (s *RedisStore) RecordDelivery(ctx context.Context, d models.Delivery) (models.Delivery, error) {
	id, err := s.client.Incr(ctx, "delivery:next_id").Result()
	if err != nil {
		return models.Delivery{}, err
	}
	d.ID = int(id)
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(d)
	if err != nil {
		return models.Delivery{}, err
	}
	key := fmt.Sprintf("delivery:%d", d.ID)

	pipe := s.client.Pipeline()
	pipe.Set(ctx, key, data, deliveryTTL)
	pipe.ZAdd(ctx, timelineKey, redis.Z{
		Score:  float64(d.CreatedAt.UnixNano()),
		Member: key,
	})
	if d.UserID != "" {
		pipe.SAdd(ctx, userIndex(d.UserID), key)
		pipe.Expire(ctx, userIndex(d.UserID), deliveryTTL)
	}
	if d.Category != "" {
		pipe.SAdd(ctx, categoryIndex(d.Category), key)
		pipe.Expire(ctx, categoryIndex(d.Category), deliveryTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Delivery{}, err
	}

	if err := s.client.Publish(ctx, deliveryChannel, data).Err(); err != nil {
		return d, fmt.Errorf("publish delivery: %w", err)
	}
	return d, nil
}

// GetDeliveries returns the newest deliveries first. limit <= 0 means all.
func (s *RedisStore) GetDeliveries(ctx context.Context, limit int) ([]models.Delivery, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	keys, err := s.client.ZRevRange(ctx, timelineKey, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	return s.load(ctx, keys, true)
}

func (s *RedisStore) SearchDeliveries(ctx context.Context, userID, category string) ([]models.Delivery, error) {
	var setKeys []string
	if userID != "" {
		setKeys = append(setKeys, userIndex(userID))
	}
	if category != "" {
		setKeys = append(setKeys, categoryIndex(category))
	}
	if len(setKeys) == 0 {
		return s.GetDeliveries(ctx, 0)
	}

	keys, err := s.client.SInter(ctx, setKeys...).Result()
	if err != nil {
		return nil, err
	}
	out, err := s.load(ctx, keys, false)
	if err != nil {
		return nil, err
	}
	// Sets are unordered; present newest first like the timeline.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *RedisStore) load(ctx context.Context, keys []string, pruneTimeline bool) ([]models.Delivery, error) {
	out := make([]models.Delivery, 0, len(keys))
	for _, key := range keys {
		val, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			if pruneTimeline {
				s.client.ZRem(ctx, timelineKey, key)
			}
			continue
		} else if err != nil {
			return nil, err
		}

		var d models.Delivery
		if err := json.Unmarshal([]byte(val), &d); err == nil {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *RedisStore) PurgeDeliveries(ctx context.Context) error {
	for _, pattern := range []string{"delivery:*", "deliveries:*"} {
		iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
		var keys []string
		for iter.Next(ctx) {
			if iter.Val() == "delivery:next_id" {
				continue
			}
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *RedisStore) Subscribe(ctx context.Context) *redis.PubSub {
	return s.client.Subscribe(ctx, deliveryChannel)
}
