package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostsScheduled counts posts accepted by the scheduler, by platform.
	PostsScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postflow_posts_scheduled_total",
		Help: "Total number of posts handed to the delay queue",
	}, []string{"platform"})

	// Executions counts executor callback outcomes by platform.
	Executions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postflow_executions_total",
		Help: "Total number of executor invocations by outcome",
	}, []string{"platform", "outcome"})

	// QueueCancelFailures counts best-effort job cancellations that did not succeed.
	QueueCancelFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postflow_queue_cancel_failures_total",
		Help: "Total number of delay queue cancellations that failed",
	})

	// QueuePublishFailures counts delayed jobs the queue refused.
	QueuePublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postflow_queue_publish_failures_total",
		Help: "Total number of delay queue publish failures",
	}, []string{"operation"})

	RateLimitFailOpen = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postflow_rate_limit_fail_open_total",
		Help: "Requests allowed because the rate limit store was unavailable",
	}, []string{"limiter"})

	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postflow_token_refreshes_total",
		Help: "OAuth token refresh attempts by platform and result",
	}, []string{"platform", "result"})

	ReconciledPosts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postflow_reconciled_posts_total",
		Help: "Scheduled posts marked failed because their job was never recorded",
	})
)
