package record

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/oswaldlabs/streamlog/pkg/logger"
)

// InsertHandler is invoked after a record has been persisted
type InsertHandler func(ctx context.Context, recordID int64, rec *Record)

// Notifier fans persisted records out to registered handlers. Registration is
// expected at startup; Dispatch runs handlers in registration order.
type Notifier struct {
	names    []string
	handlers map[string]InsertHandler
}

// NewNotifier creates an empty notifier
func NewNotifier() *Notifier {
	return &Notifier{handlers: make(map[string]InsertHandler)}
}

// Register adds a named handler. Registering the same name twice is an error.
func (n *Notifier) Register(name string, handler InsertHandler) error {
	if _, exists := n.handlers[name]; exists {
		return fmt.Errorf("%w: %s", ErrHandlerRegistered, name)
	}
	n.names = append(n.names, name)
	n.handlers[name] = handler
	return nil
}

// Dispatch invokes every registered handler for the persisted record
func (n *Notifier) Dispatch(ctx context.Context, recordID int64, rec *Record) {
	for _, name := range n.names {
		n.handlers[name](ctx, recordID, rec)
	}
}

// notifyPayload is the wire form published for each persisted record
type notifyPayload struct {
	ID        int64                  `msgpack:"id"`
	SiteID    int64                  `msgpack:"site_id"`
	TenantID  int64                  `msgpack:"tenant_id"`
	ObjectID  *int64                 `msgpack:"object_id"`
	ActorID   int64                  `msgpack:"actor_id"`
	ActorRole string                 `msgpack:"actor_role"`
	Summary   string                 `msgpack:"summary"`
	Connector string                 `msgpack:"connector"`
	Context   string                 `msgpack:"context"`
	Action    string                 `msgpack:"action"`
	SourceIP  string                 `msgpack:"source_ip"`
	CreatedAt string                 `msgpack:"created_at"`
	Meta      map[string]interface{} `msgpack:"meta"`
}

// RedisPublisher returns a handler that publishes persisted records to a
// Redis channel in msgpack form. Publish failures are logged, never surfaced;
// the record is already durable by the time this runs.
func RedisPublisher(client *redis.Client, channel string, log *logger.Logger) InsertHandler {
	return func(ctx context.Context, recordID int64, rec *Record) {
		payload := notifyPayload{
			ID:        recordID,
			SiteID:    rec.SiteID,
			TenantID:  rec.TenantID,
			ObjectID:  rec.ObjectID,
			ActorID:   rec.ActorID,
			ActorRole: rec.ActorRole,
			Summary:   rec.Summary,
			Connector: rec.Connector,
			Context:   rec.Context,
			Action:    rec.Action,
			SourceIP:  rec.SourceIP,
			CreatedAt: rec.CreatedAt.UTC().Format(TimeFormat),
		}
		if len(rec.Meta) > 0 {
			payload.Meta = make(map[string]interface{}, len(rec.Meta))
			for key, value := range rec.Meta {
				payload.Meta[key] = value.Interface()
			}
		}

		data, err := msgpack.Marshal(payload)
		if err != nil {
			log.WithRecordID(recordID).Error("Failed to encode record notification", err)
			return
		}
		if err := client.Publish(ctx, channel, data).Err(); err != nil {
			log.WithRecordID(recordID).Error("Failed to publish record notification", err)
		}
	}
}
