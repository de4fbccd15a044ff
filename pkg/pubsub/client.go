package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/livemart/livemart-backend/pkg/config"
	"github.com/livemart/livemart-backend/pkg/logger"
)

var errProjectIDRequired = errors.New("gcp project id is required")

// Options lists the resources a process depends on. Empty names are ignored.
type Options struct {
	Topics        []string
	Subscriptions []string
}

// Client wraps the Pub/Sub v2 client. Publishers are created once per topic
// and flushed on Close.
type Client struct {
	client        *gcppubsub.Client
	projectID     string
	topics        []string
	subscriptions []string

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

// NewClient connects to Pub/Sub and verifies every topic and subscription in
// opts exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, opts Options, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := gcppubsub.NewClient(ctx, projectID, gcp.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:        psClient,
		projectID:     projectID,
		topics:        compact(opts.Topics),
		subscriptions: compact(opts.Subscriptions),
		publishers:    make(map[string]*gcppubsub.Publisher),
	}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topics":        len(c.topics),
			"subscriptions": len(c.subscriptions),
		}), "pubsub client initialized")
	}
	return c, nil
}

// Subscriber returns a handle for the subscription ID or full resource name,
// or nil when name is blank.
func (c *Client) Subscriber(name string) *gcppubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := resourceName(c.projectID, "subscriptions", name)
	if fullName == "" {
		return nil
	}
	return c.client.Subscriber(fullName)
}

// Publish sends msg on topic. The returned result is nil when topic is blank.
func (c *Client) Publish(ctx context.Context, topic string, msg *gcppubsub.Message) *gcppubsub.PublishResult {
	pub := c.publisher(topic)
	if pub == nil {
		return nil
	}
	return pub.Publish(ctx, msg)
}

func (c *Client) publisher(topic string) *gcppubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := resourceName(c.projectID, "topics", topic)
	if fullName == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if pub, ok := c.publishers[fullName]; ok {
		return pub
	}
	pub := c.client.Publisher(fullName)
	c.publishers[fullName] = pub
	return pub
}

// Ping checks that the configured topics and subscriptions still exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	var errs error
	for _, topic := range c.topics {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{
			Topic: resourceName(c.projectID, "topics", topic),
		})
		errs = multierr.Append(errs, describeLookup("topic", topic, err))
	}
	for _, sub := range c.subscriptions {
		_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{
			Subscription: resourceName(c.projectID, "subscriptions", sub),
		})
		errs = multierr.Append(errs, describeLookup("subscription", sub, err))
	}
	return errs
}

// Close flushes pending publishes and releases the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for name, pub := range c.publishers {
		pub.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.client.Close()
}

func describeLookup(kind, name string, err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}

// resourceName expands an ID into projects/<project>/<collection>/<id>.
// Names that are already fully qualified are returned unchanged.
func resourceName(projectID, collection, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+collection+"/") {
		return n
	}
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/" + collection + "/" + n
}

func compact(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
