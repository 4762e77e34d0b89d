package zeromq

import (
	"github.com/open-teleop/commandbot/domain/motion"
	"github.com/open-teleop/commandbot/pkg/config"
	customlog "github.com/open-teleop/commandbot/pkg/log"
)

// MessagePublisher sends a payload on a topic
type MessagePublisher interface {
	PublishMessage(topic string, data []byte) error
}

// CommandPublisher publishes velocity commands and validated command codes.
// It satisfies motion.Sink.
type CommandPublisher struct {
	publisher     MessagePublisher
	velocityTopic string
	commandTopic  string
	logger        customlog.Logger
}

// NewCommandPublisher creates a publisher for the configured topics
func NewCommandPublisher(publisher MessagePublisher, cfg config.ZeroMQConfig, logger customlog.Logger) *CommandPublisher {
	return &CommandPublisher{
		publisher:     publisher,
		velocityTopic: cfg.VelocityTopic,
		commandTopic:  cfg.CommandTopic,
		logger:        logger,
	}
}

// PublishVelocity publishes v as a Twist on the velocity topic
func (p *CommandPublisher) PublishVelocity(v motion.Velocity) error {
	return p.publisher.PublishMessage(p.velocityTopic, EncodeVelocity(p.velocityTopic, v, nowNs()))
}

// PublishCommandCode publishes code as a RobotCommand on the command topic
func (p *CommandPublisher) PublishCommandCode(code motion.CommandCode) error {
	if p.commandTopic == "" {
		return nil
	}
	if err := p.publisher.PublishMessage(p.commandTopic, EncodeCommandCode(p.commandTopic, code, nowNs())); err != nil {
		return err
	}
	p.logger.Infof("Published command %d (%s) on '%s'", int(code), code, p.commandTopic)
	return nil
}
