package gemini

import (
	"sync"

	"github.com/procdoc/sop-flow/internal/logger"
	"github.com/procdoc/sop-flow/pkg/retry"
)

type implClient struct {
	mu         sync.Mutex
	apiKeys    []string
	currentKey int
	model      string
	policy     retry.Policy
	logger     logger.Logger
}

// New creates a Client that rotates through the supplied API keys on quota
// errors and retries transient failures per the given policy.
func New(apiKeys []string, model string, policy retry.Policy, log logger.Logger) Client {
	return &implClient{
		apiKeys: apiKeys,
		model:   model,
		policy:  policy,
		logger:  log,
	}
}
