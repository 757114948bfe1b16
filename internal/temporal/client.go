package temporal

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"

	"github.com/helixir/enrichment-service/internal/config"
	"github.com/helixir/enrichment-service/internal/domain"
)

// Names shared by the client, the worker and the workflow implementation.
// They live here so the server can start and query batches without importing
// the workflows package.
const (
	// EnrichmentBatchWorkflowName is the registered name of the batch workflow.
	EnrichmentBatchWorkflowName = "EnrichmentBatchWorkflow"

	// QueryProgress returns the BatchProgress of a running batch.
	QueryProgress = "progress"
)

const (
	// DefaultWorkflowExecutionTimeout bounds a whole enrichment batch.
	DefaultWorkflowExecutionTimeout = 12 * time.Hour

	// DefaultHealthCheckTimeout is the timeout for Temporal server health checks.
	DefaultHealthCheckTimeout = 5 * time.Second
)

var (
	// ErrWorkflowNotFound indicates the workflow execution was not found.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowAlreadyStarted indicates a workflow with the same ID is already running.
	ErrWorkflowAlreadyStarted = errors.New("workflow already started")

	// ErrQueryFailed indicates the workflow query failed.
	ErrQueryFailed = errors.New("query failed")

	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("client closed")

	// ErrConnectionFailed indicates a connection failure to the Temporal server.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrNamespaceNotFound indicates the namespace does not exist.
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrInvalidArgument indicates an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDeadlineExceeded indicates the operation deadline was exceeded.
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)

// TemporalError wraps a Temporal error with the operation and workflow it
// concerns. Kind is one of the sentinel errors above.
type TemporalError struct {
	Op         string
	Kind       error
	WorkflowID string
	RunID      string
	Err        error
}

// Error returns the error message.
func (e *TemporalError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.WorkflowID != "" {
		msg += fmt.Sprintf(" [workflowID=%s", e.WorkflowID)
		if e.RunID != "" {
			msg += fmt.Sprintf(", runID=%s", e.RunID)
		}
		msg += "]"
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *TemporalError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error's Kind.
func (e *TemporalError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// wrapTemporalError classifies a Temporal SDK error.
func wrapTemporalError(op string, err error, workflowID, runID string) error {
	if err == nil {
		return nil
	}

	te := &TemporalError{Op: op, WorkflowID: workflowID, RunID: runID, Err: err}

	var notFoundErr *serviceerror.NotFound
	var alreadyStartedErr *serviceerror.WorkflowExecutionAlreadyStarted
	var namespaceNotFoundErr *serviceerror.NamespaceNotFound
	var invalidArgumentErr *serviceerror.InvalidArgument
	var deadlineExceededErr *serviceerror.DeadlineExceeded
	var queryFailedErr *serviceerror.QueryFailed

	switch {
	case errors.As(err, &notFoundErr):
		te.Kind = ErrWorkflowNotFound
	case errors.As(err, &alreadyStartedErr):
		te.Kind = ErrWorkflowAlreadyStarted
	case errors.As(err, &namespaceNotFoundErr):
		te.Kind = ErrNamespaceNotFound
	case errors.As(err, &invalidArgumentErr):
		te.Kind = ErrInvalidArgument
	case errors.As(err, &deadlineExceededErr), errors.Is(err, context.DeadlineExceeded):
		te.Kind = ErrDeadlineExceeded
	case errors.As(err, &queryFailedErr):
		te.Kind = ErrQueryFailed
	case errors.Is(err, context.Canceled):
		te.Kind = ErrClientClosed
	default:
		te.Kind = ErrConnectionFailed
	}

	return te
}

// IsWorkflowNotFound checks if the error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsWorkflowAlreadyStarted checks if the error indicates a workflow already started.
func IsWorkflowAlreadyStarted(err error) bool {
	return errors.Is(err, ErrWorkflowAlreadyStarted)
}

// TLSConfig contains TLS configuration for the Temporal client.
type TLSConfig struct {
	Enabled    bool
	CertPath   string
	KeyPath    string
	CACertPath string
	ServerName string
}

func (t *TLSConfig) buildTLSConfig() (*tls.Config, error) {
	if t == nil || !t.Enabled {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		ServerName: t.ServerName,
		MinVersion: tls.VersionTLS12,
	}

	if t.CertPath != "" && t.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(t.CertPath, t.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if t.CACertPath != "" {
		caCert, err := os.ReadFile(t.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("parse CA certificate")
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

// ClientConfig contains configuration for the Temporal client.
type ClientConfig struct {
	HostPort  string
	Namespace string
	TaskQueue string
	TLS       *TLSConfig

	// Logger receives SDK logs. Nil keeps the SDK default.
	Logger log.Logger

	// HealthCheckTimeout defaults to DefaultHealthCheckTimeout.
	HealthCheckTimeout time.Duration
}

// ClientConfigFrom maps the service configuration onto a ClientConfig.
func ClientConfigFrom(cfg config.TemporalConfig) ClientConfig {
	return ClientConfig{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		TaskQueue: cfg.TaskQueue,
	}
}

// NewClient dials the Temporal server.
func NewClient(cfg ClientConfig) (client.Client, error) {
	options := client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    cfg.Logger,
	}

	tlsConfig, err := cfg.TLS.buildTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("configure TLS: %w", err)
	}
	if tlsConfig != nil {
		options.ConnectionOptions = client.ConnectionOptions{TLS: tlsConfig}
	}

	c, err := client.Dial(options)
	if err != nil {
		return nil, fmt.Errorf("create Temporal client: %w", err)
	}
	return c, nil
}

// EnrichmentBatchInput starts one enrichment batch. It is defined here so the
// server and the listener can build it without importing the workflows package.
type EnrichmentBatchInput struct {
	// BatchID identifies the batch in logs and events.
	BatchID string `json:"batch_id"`

	// RecordIDs restricts the first pass. Empty means every unenriched record.
	RecordIDs []uuid.UUID `json:"record_ids,omitempty"`

	// SecondPass enriches published-version records the first pass created.
	SecondPass bool `json:"second_pass"`

	// SecondPassLimit caps the second pass; 0 means no cap.
	SecondPassLimit int `json:"second_pass_limit,omitempty"`

	// MaxConcurrent bounds the EnrichRecord activities in flight.
	MaxConcurrent int `json:"max_concurrent,omitempty"`

	RequestedBy string `json:"requested_by,omitempty"`
}

// EnrichmentBatchResult is the result of a finished batch workflow.
type EnrichmentBatchResult struct {
	BatchID                 string `json:"batch_id"`
	Passes                  int    `json:"passes"`
	Processed               int    `json:"processed"`
	Persisted               int    `json:"persisted"`
	Failed                  int    `json:"failed"`
	AbstractsFound          int    `json:"abstracts_found"`
	LinksCreated            int    `json:"links_created"`
	PublishedRecordsCreated int    `json:"published_records_created"`
}

// BatchProgress is answered by the QueryProgress query.
type BatchProgress struct {
	Pass      int `json:"pass"`
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// BatchWorkflowClient starts and inspects enrichment batch workflows.
type BatchWorkflowClient struct {
	mu                 sync.RWMutex
	client             client.Client
	taskQueue          string
	defaults           config.EnrichmentConfig
	healthCheckTimeout time.Duration
	closed             bool
}

// NewBatchWorkflowClient creates a BatchWorkflowClient. defaults supplies the
// concurrency and second-pass cap of batches started from requests.
func NewBatchWorkflowClient(c client.Client, cfg ClientConfig, defaults config.EnrichmentConfig) *BatchWorkflowClient {
	healthTimeout := cfg.HealthCheckTimeout
	if healthTimeout == 0 {
		healthTimeout = DefaultHealthCheckTimeout
	}
	return &BatchWorkflowClient{
		client:             c,
		taskQueue:          cfg.TaskQueue,
		defaults:           defaults,
		healthCheckTimeout: healthTimeout,
	}
}

// Close closes the underlying Temporal client connection.
func (c *BatchWorkflowClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && !c.closed {
		c.client.Close()
		c.closed = true
	}
}

func (c *BatchWorkflowClient) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Health checks the connection to the Temporal server.
func (c *BatchWorkflowClient) Health(ctx context.Context) error {
	if c.isClosed() {
		return &TemporalError{Op: "Health", Kind: ErrClientClosed}
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.healthCheckTimeout)
	defer cancel()

	if _, err := c.client.CheckHealth(checkCtx, &client.CheckHealthRequest{}); err != nil {
		return wrapTemporalError("Health", err, "", "")
	}
	return nil
}

// StartBatch starts an EnrichmentBatchWorkflow and returns its workflow ID.
func (c *BatchWorkflowClient) StartBatch(ctx context.Context, input EnrichmentBatchInput) (workflowID, runID string, err error) {
	if c.isClosed() {
		return "", "", &TemporalError{Op: "StartBatch", Kind: ErrClientClosed}
	}

	if input.BatchID == "" {
		input.BatchID = uuid.NewString()
	}
	workflowID = "enrichment-batch-" + input.BatchID
	options := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                c.taskQueue,
		WorkflowExecutionTimeout: DefaultWorkflowExecutionTimeout,
	}

	run, err := c.client.ExecuteWorkflow(ctx, options, EnrichmentBatchWorkflowName, input)
	if err != nil {
		return "", "", wrapTemporalError("StartBatch", err, workflowID, "")
	}
	return workflowID, run.GetRunID(), nil
}

// StartEnrichmentBatch starts a batch for an enrichment request, filling in
// the configured worker and second-pass limits.
func (c *BatchWorkflowClient) StartEnrichmentBatch(ctx context.Context, req domain.EnrichmentRequestedPayload) (string, error) {
	workflowID, _, err := c.StartBatch(ctx, EnrichmentBatchInput{
		RecordIDs:       req.RecordIDs,
		SecondPass:      req.SecondPass,
		SecondPassLimit: c.defaults.SecondPassLimit,
		MaxConcurrent:   c.defaults.MaxWorkers,
		RequestedBy:     req.RequestedBy,
	})
	return workflowID, err
}

// CancelBatch cancels a running batch.
func (c *BatchWorkflowClient) CancelBatch(ctx context.Context, workflowID string) error {
	if c.isClosed() {
		return &TemporalError{Op: "CancelBatch", Kind: ErrClientClosed, WorkflowID: workflowID}
	}
	if err := c.client.CancelWorkflow(ctx, workflowID, ""); err != nil {
		return wrapTemporalError("CancelBatch", err, workflowID, "")
	}
	return nil
}

// BatchResult waits for a batch to finish and returns its result.
func (c *BatchWorkflowClient) BatchResult(ctx context.Context, workflowID string) (*EnrichmentBatchResult, error) {
	if c.isClosed() {
		return nil, &TemporalError{Op: "BatchResult", Kind: ErrClientClosed, WorkflowID: workflowID}
	}

	var result EnrichmentBatchResult
	if err := c.client.GetWorkflow(ctx, workflowID, "").Get(ctx, &result); err != nil {
		return nil, wrapTemporalError("BatchResult", err, workflowID, "")
	}
	return &result, nil
}

// WorkflowDescription contains information about a workflow execution.
type WorkflowDescription struct {
	WorkflowID string     `json:"workflow_id"`
	RunID      string     `json:"run_id"`
	Status     string     `json:"status"`
	StartTime  time.Time  `json:"start_time"`
	CloseTime  *time.Time `json:"close_time,omitempty"`
}

// Completed reports whether the workflow closed successfully, so that its
// result can be read without blocking.
func (d *WorkflowDescription) Completed() bool {
	return d.Status == enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED.String()
}

// DescribeBatch returns the execution state of a batch.
func (c *BatchWorkflowClient) DescribeBatch(ctx context.Context, workflowID string) (*WorkflowDescription, error) {
	if c.isClosed() {
		return nil, &TemporalError{Op: "DescribeBatch", Kind: ErrClientClosed, WorkflowID: workflowID}
	}

	resp, err := c.client.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return nil, wrapTemporalError("DescribeBatch", err, workflowID, "")
	}

	info := resp.GetWorkflowExecutionInfo()
	desc := &WorkflowDescription{
		WorkflowID: workflowID,
		RunID:      info.GetExecution().GetRunId(),
		Status:     info.GetStatus().String(),
		StartTime:  info.GetStartTime().AsTime(),
	}
	if info.GetCloseTime() != nil {
		closeTime := info.GetCloseTime().AsTime()
		desc.CloseTime = &closeTime
	}
	return desc, nil
}

// BatchProgress queries a running batch for its progress.
func (c *BatchWorkflowClient) BatchProgress(ctx context.Context, workflowID string) (*BatchProgress, error) {
	if c.isClosed() {
		return nil, &TemporalError{Op: "BatchProgress", Kind: ErrClientClosed, WorkflowID: workflowID}
	}

	resp, err := c.client.QueryWorkflow(ctx, workflowID, "", QueryProgress)
	if err != nil {
		return nil, wrapTemporalError("BatchProgress", err, workflowID, "")
	}

	var progress BatchProgress
	if err := resp.Get(&progress); err != nil {
		return nil, &TemporalError{
			Op:         "BatchProgress",
			Kind:       ErrQueryFailed,
			WorkflowID: workflowID,
			Err:        fmt.Errorf("decode query result: %w", err),
		}
	}
	return &progress, nil
}

// TaskQueue returns the configured task queue name.
func (c *BatchWorkflowClient) TaskQueue() string {
	return c.taskQueue
}
