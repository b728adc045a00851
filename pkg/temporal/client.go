package temporal

import (
	"context"
	"time"

	"github.com/govsentinel/sentinel/pkg/utils"
	"go.uber.org/zap"

	"go.temporal.io/api/enums/v1"
	taskqueuepb "go.temporal.io/api/taskqueue/v1"
	workflowservicepb "go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
)

// Client wraps the Temporal SDK client with the queue/schedule naming conventions
// this process uses to drive the Watcher (one schedule per chain) and the shared
// analysis sweep.
type Client struct {
	TClient   client.Client
	TSClient  client.ScheduleClient
	Namespace string

	// AnalysisDeliveryQueue is the shared task queue for the analysis sweep workflow.
	AnalysisDeliveryQueue string
}

// Health reports poller presence on the shared task queue.
type Health struct {
	ConnectionOK          bool                      `json:"connection_ok"`
	AnalysisDeliveryQueue []*taskqueuepb.PollerInfo `json:"analysis_delivery_queue"`
}

// NewClient dials Temporal using TEMPORAL_HOSTPORT/TEMPORAL_NAMESPACE and verifies
// the connection with a health check before returning.
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("TEMPORAL_HOSTPORT", "localhost:7233")
	ns := utils.Env("TEMPORAL_NAMESPACE", DefaultNamespace)
	loggerWrapper := NewZapAdapter(logger)

	logger.Info("Connecting to Temporal", zap.String("host", host), zap.String("namespace", ns))
	tClient, err := Dial(ctx, host, ns, loggerWrapper)
	if err != nil {
		return nil, err
	}

	if _, err = tClient.CheckHealth(ctx, nil); err != nil {
		return nil, err
	}

	return &Client{
		TClient:               tClient,
		TSClient:              tClient.ScheduleClient(),
		Namespace:             ns,
		AnalysisDeliveryQueue: AnalysisDeliveryQueue,
	}, nil
}

// Dial connects to Temporal using the provided hostPort and namespace.
func Dial(ctx context.Context, hostPort, namespace string, logger log.Logger) (client.Client, error) {
	return client.DialContext(
		ctx,
		client.Options{
			HostPort:  hostPort,
			Namespace: namespace,
			Logger:    logger,
		},
	)
}

// WatcherQueue returns the per-chain task queue the Watcher tick workflow and the
// Chain Client activities it drives run on.
func (c *Client) WatcherQueue(chainID string) string {
	return WatcherQueue(chainID)
}

// Health returns the health of the Temporal client, including poller presence on
// the shared analysis/delivery queue.
func (c *Client) Health(ctx context.Context) (Health, error) {
	h := Health{ConnectionOK: true}
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	svc := c.TClient.WorkflowService()
	if svc != nil {
		if rep, err := svc.DescribeTaskQueue(ctx, &workflowservicepb.DescribeTaskQueueRequest{
			Namespace:     c.Namespace,
			TaskQueue:     &taskqueuepb.TaskQueue{Name: c.AnalysisDeliveryQueue},
			TaskQueueType: enums.TASK_QUEUE_TYPE_WORKFLOW,
		}); err == nil {
			h.AnalysisDeliveryQueue = rep.GetPollers()
		}
	}
	return h, nil
}
