// Package classifier turns free text into the raw command string produced by
// a language model. It knows nothing about command codes; the motion
// interpreter validates whatever comes back.
package classifier

import (
	"context"
	"fmt"

	"github.com/open-teleop/commandbot/domain/motion"
	"github.com/open-teleop/commandbot/pkg/config"
	customlog "github.com/open-teleop/commandbot/pkg/log"
)

// Classifier maps input text to the model's raw reply. Errors wrap
// motion.ErrClassifierFailure.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// Func adapts a function to Classifier.
type Func func(ctx context.Context, text string) (string, error)

// Classify calls the function
func (f Func) Classify(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// New builds the classifier selected by cfg.Classifier.Backend.
func New(cfg *config.Config, logger customlog.Logger) (Classifier, error) {
	cc := cfg.Classifier
	switch cc.Backend {
	case config.BackendExec:
		logger.Infof("Using exec classifier: %s run %s (timeout %s)", cc.Command, cc.Model, cfg.ClassifierTimeout())
		return NewExecClassifier(cc.Command, cc.Model, cfg.ClassifierTimeout(), logger), nil
	case config.BackendOpenAI:
		logger.Infof("Using OpenAI-compatible classifier at %s with model %s (timeout %s)", cc.BaseURL, cc.Model, cfg.ClassifierTimeout())
		return NewOpenAIClassifier(cc.BaseURL, cc.APIKey, cc.Model, cfg.ClassifierTimeout(), logger), nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cc.Backend)
	}
}

func failure(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", motion.ErrClassifierFailure, fmt.Sprintf(format, args...))
}
