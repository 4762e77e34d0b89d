package processing

import (
	"encoding/json"

	customlog "github.com/open-teleop/commandbot/pkg/log"
)

// LoggingResultHandler logs processing results
type LoggingResultHandler struct {
	logger customlog.Logger
}

// NewLoggingResultHandler creates a new logging result handler
func NewLoggingResultHandler(logger customlog.Logger) *LoggingResultHandler {
	return &LoggingResultHandler{
		logger: logger,
	}
}

// HandleResult handles a processed job result
func (h *LoggingResultHandler) HandleResult(result *ProcessResult) {
	job := result.Job
	if result.Error != nil {
		h.logger.Debugf("Input %s from %s failed after %s: %v",
			job.ID, job.Source, result.Duration, result.Error)
		return
	}

	h.logger.Debugf("Processed input %s from %s in %s", job.ID, job.Source, result.Duration)

	if result.Value != nil {
		jsonData, err := json.Marshal(result.Value)
		if err == nil {
			if len(jsonData) > 100 {
				h.logger.Debugf("Result: %s...", string(jsonData[:100]))
			} else {
				h.logger.Debugf("Result: %s", string(jsonData))
			}
		}
	}
}

// CreateHandlerFunc creates a ResultHandler function for the ProcessingPool
func (h *LoggingResultHandler) CreateHandlerFunc() ResultHandler {
	return func(processResult *ProcessResult) {
		if processResult == nil || processResult.Job == nil {
			h.logger.Errorf("Received nil ProcessResult")
			return
		}
		h.HandleResult(processResult)
	}
}
