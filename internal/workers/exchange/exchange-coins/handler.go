// internal/workers/exchange/exchange-coins/handler.go
package exchangecoins

import (
	"context"
	"fmt"
	"time"

	"entitlement-workers/internal/common/camunda"
	"entitlement-workers/internal/common/config"
	"entitlement-workers/internal/common/errors"
	"entitlement-workers/internal/common/logger"
	"entitlement-workers/internal/common/metrics"
	"entitlement-workers/internal/entitlement"
	"entitlement-workers/pkg/catalog"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "exchange.coins"

type Handler struct {
	config    *Config
	logger    logger.Logger
	camunda   *camunda.Client
	catalog   *catalog.OfferCatalog
	exchanger ExchangeService
	notifier  ResultNotifier
	jobWorker worker.JobWorker
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Camunda      *camunda.Client
	CustomConfig *Config
	Logger       logger.Logger
	Catalog      *catalog.OfferCatalog
	Exchanger    ExchangeService
	Notifier     ResultNotifier
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for exchange-coins: %w", err)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}

	return &Handler{
		config:    workerConfig,
		logger:    loggerInstance,
		camunda:   opts.Camunda,
		catalog:   opts.Catalog,
		exchanger: opts.Exchanger,
		notifier:  opts.Notifier,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing coin exchange request", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"worker":             TaskType,
	})

	input, err := h.parseInput(job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, extractErrorCode(err)).Inc()
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, extractErrorCode(err)).Inc()
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// Execute resolves the offer and runs the exchange. A partial_success
// outcome is a completed job, not a failure: the entitlement was granted
// and the debit discrepancy is already on the audit trail.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	offer, ok := h.catalog.Find(input.OfferID)
	if !ok {
		return nil, errors.NewOfferNotFoundError(input.OfferID)
	}

	billingIdentity := input.BillingIdentity
	if billingIdentity == "" {
		billingIdentity = input.UserID
	}

	outcome, err := h.exchanger.Exchange(ctx, entitlement.ExchangeInput{
		UserID:          input.UserID,
		BillingIdentity: billingIdentity,
		EntitlementID:   offer.EntitlementID,
		DurationDays:    offer.DurationDays,
		DurationUnit:    offer.DurationUnit,
		Cost:            offer.CoinCost,
		Source:          "coins",
	})
	if err != nil {
		return nil, err
	}

	if h.notifier != nil {
		h.notifier.ExchangeCompleted(ctx, input.Email, input.Phone, outcome, offer.EntitlementID)
	}

	return &Output{
		Success:          true,
		Status:           outcome.Status,
		Tier:             string(outcome.Tier),
		GrantKey:         outcome.GrantKey,
		RemainingBalance: outcome.Balance,
	}, nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewParseError(err)
	}

	userID, ok := variables["userId"].(string)
	if !ok || userID == "" {
		return nil, errors.NewValidationFailedError("userId is required")
	}
	offerID, ok := variables["offerId"].(string)
	if !ok || offerID == "" {
		return nil, errors.NewValidationFailedError("offerId is required")
	}

	input := &Input{UserID: userID, OfferID: offerID}
	if identity, ok := variables["billingIdentity"].(string); ok {
		input.BillingIdentity = identity
	}
	if email, ok := variables["email"].(string); ok {
		input.Email = email
	}
	if phone, ok := variables["phone"].(string); ok {
		input.Phone = phone
	}
	return input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	variables := map[string]interface{}{
		"exchangeCompleted": output.Success,
		"exchangeStatus":    output.Status,
		"tier":              output.Tier,
		"grantKey":          output.GrantKey,
		"remainingBalance":  output.RemainingBalance,
	}

	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(variables)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": TaskType,
		})
		return
	}

	if _, err = request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": TaskType,
		})
		return
	}

	h.logger.Info("Coin exchange completed", map[string]interface{}{
		"jobKey":   job.GetKey(),
		"status":   output.Status,
		"grantKey": output.GrantKey,
		"worker":   TaskType,
	})
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := convertToStandardError(err)
	bpmnErr := errors.ConvertToBPMNError(stdErr)

	h.logger.Error("Coin exchange job failed", map[string]interface{}{
		"jobKey":       job.GetKey(),
		"errorCode":    bpmnErr.Code,
		"errorMessage": bpmnErr.Message,
		"retryable":    bpmnErr.Retryable,
		"retries":      bpmnErr.Retries,
		"worker":       TaskType,
	})

	_, failErr := client.NewFailJobCommand().
		JobKey(job.GetKey()).
		Retries(int32(bpmnErr.Retries)).
		ErrorMessage(fmt.Sprintf("[%s] %s", bpmnErr.Code, bpmnErr.Message)).
		Send(ctx)
	if failErr != nil {
		h.logger.Error("Failed to report job failure to Camunda", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  failErr.Error(),
			"worker": TaskType,
		})
	}
}

func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", map[string]interface{}{
			"worker": TaskType,
		})
		return nil
	}

	h.jobWorker = h.camunda.GetClient().NewJobWorker().
		JobType(TaskType).
		Handler(h.Handle).
		MaxJobsActive(h.config.MaxJobsActive).
		Timeout(h.config.Timeout).
		Name(fmt.Sprintf("%s-worker", TaskType)).
		Open()

	h.logger.Info("Coin exchange worker registered with Camunda", map[string]interface{}{
		"taskType":      TaskType,
		"maxJobsActive": h.config.MaxJobsActive,
		"timeout":       h.config.Timeout.String(),
	})
	return nil
}

func (h *Handler) Close() {
	if h.jobWorker != nil {
		h.jobWorker.Close()
		h.jobWorker = nil
	}
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func extractErrorCode(err error) string {
	if stdErr, ok := err.(*errors.StandardError); ok {
		return string(stdErr.Code)
	}
	return "UNKNOWN_ERROR"
}

func convertToStandardError(err error) *errors.StandardError {
	if stdErr, ok := err.(*errors.StandardError); ok {
		return stdErr
	}
	return errors.NewGrantFailedError("", err)
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()
	if appConfig != nil {
		if workerCfg, exists := appConfig.Workers["exchange-coins"]; exists {
			cfg.Enabled = workerCfg.Enabled
			if workerCfg.MaxJobsActive > 0 {
				cfg.MaxJobsActive = workerCfg.MaxJobsActive
			}
			if workerCfg.Timeout > 0 {
				cfg.Timeout = time.Duration(workerCfg.Timeout) * time.Millisecond
			}
		}
	}
	return cfg
}
