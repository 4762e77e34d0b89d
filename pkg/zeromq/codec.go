package zeromq

import (
	"fmt"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/open-teleop/commandbot/domain/motion"
	message "github.com/open-teleop/commandbot/pkg/flatbuffers/commandbot/message"
)

// EnvelopeVersion is written into every outgoing OttMessage
const EnvelopeVersion = 1

// Envelope is the decoded form of an OttMessage
type Envelope struct {
	Version     uint32
	Topic       string
	ContentType message.ContentType
	Payload     []byte
	TimestampNs int64
}

// EncodeEnvelope wraps payload in an OttMessage flatbuffer
func EncodeEnvelope(topic string, contentType message.ContentType, payload []byte, timestampNs int64) []byte {
	builder := flatbuffers.NewBuilder(len(payload) + len(topic) + 64)

	payloadOffset := builder.CreateByteVector(payload)
	topicOffset := builder.CreateString(topic)

	message.OttMessageStart(builder)
	message.OttMessageAddVersion(builder, EnvelopeVersion)
	message.OttMessageAddPayload(builder, payloadOffset)
	message.OttMessageAddContentType(builder, contentType)
	message.OttMessageAddOtt(builder, topicOffset)
	message.OttMessageAddTimestampNs(builder, timestampNs)
	msg := message.OttMessageEnd(builder)
	message.FinishOttMessageBuffer(builder, msg)

	return builder.FinishedBytes()
}

// DecodeEnvelope parses an OttMessage flatbuffer
func DecodeEnvelope(data []byte) (env Envelope, err error) {
	if len(data) < flatbuffers.SizeUOffsetT {
		return Envelope{}, fmt.Errorf("%w: envelope too short (%d bytes)", ErrInvalidMessage, len(data))
	}
	// Truncated or foreign buffers make the accessors index out of range.
	defer func() {
		if r := recover(); r != nil {
			env = Envelope{}
			err = fmt.Errorf("%w: malformed envelope: %v", ErrInvalidMessage, r)
		}
	}()

	ottMsg := message.GetRootAsOttMessage(data, 0)
	payload := ottMsg.PayloadBytes()
	env = Envelope{
		Version:     ottMsg.Version(),
		Topic:       string(ottMsg.Ott()),
		ContentType: ottMsg.ContentType(),
		Payload:     append([]byte(nil), payload...),
		TimestampNs: ottMsg.TimestampNs(),
	}
	return env, nil
}

// EncodeVelocity encodes v as a Twist inside an envelope. Linear maps to
// linear.x and Angular to angular.z.
func EncodeVelocity(topic string, v motion.Velocity, timestampNs int64) []byte {
	builder := flatbuffers.NewBuilder(64)
	message.TwistStart(builder)
	message.TwistAddLinearX(builder, v.Linear)
	message.TwistAddLinearY(builder, 0)
	message.TwistAddLinearZ(builder, 0)
	message.TwistAddAngularX(builder, 0)
	message.TwistAddAngularY(builder, 0)
	message.TwistAddAngularZ(builder, v.Angular)
	twist := message.TwistEnd(builder)
	message.FinishTwistBuffer(builder, twist)

	return EncodeEnvelope(topic, message.ContentTypeTWIST, builder.FinishedBytes(), timestampNs)
}

// DecodeVelocity extracts the velocity from a TWIST envelope
func DecodeVelocity(data []byte) (v motion.Velocity, err error) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return motion.Velocity{}, err
	}
	if env.ContentType != message.ContentTypeTWIST {
		return motion.Velocity{}, fmt.Errorf("%w: expected TWIST, got %s", ErrInvalidMessage, env.ContentType)
	}
	if len(env.Payload) < flatbuffers.SizeUOffsetT {
		return motion.Velocity{}, fmt.Errorf("%w: empty twist payload", ErrInvalidMessage)
	}

	defer func() {
		if r := recover(); r != nil {
			v = motion.Velocity{}
			err = fmt.Errorf("%w: malformed twist: %v", ErrInvalidMessage, r)
		}
	}()

	twist := message.GetRootAsTwist(env.Payload, 0)
	return motion.Velocity{Linear: twist.LinearX(), Angular: twist.AngularZ()}, nil
}

// EncodeCommandCode encodes code as a RobotCommand inside an envelope
func EncodeCommandCode(topic string, code motion.CommandCode, timestampNs int64) []byte {
	builder := flatbuffers.NewBuilder(64)
	name := builder.CreateString(code.String())
	message.RobotCommandStart(builder)
	message.RobotCommandAddCode(builder, int32(code))
	message.RobotCommandAddName(builder, name)
	cmd := message.RobotCommandEnd(builder)
	message.FinishRobotCommandBuffer(builder, cmd)

	return EncodeEnvelope(topic, message.ContentTypeROBOT_COMMAND, builder.FinishedBytes(), timestampNs)
}

// DecodeCommandCode extracts and validates the code from a ROBOT_COMMAND envelope
func DecodeCommandCode(data []byte) (code motion.CommandCode, err error) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return 0, err
	}
	if env.ContentType != message.ContentTypeROBOT_COMMAND {
		return 0, fmt.Errorf("%w: expected ROBOT_COMMAND, got %s", ErrInvalidMessage, env.ContentType)
	}
	if len(env.Payload) < flatbuffers.SizeUOffsetT {
		return 0, fmt.Errorf("%w: empty command payload", ErrInvalidMessage)
	}

	var raw int32
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: malformed robot command: %v", ErrInvalidMessage, r)
			}
		}()
		raw = message.GetRootAsRobotCommand(env.Payload, 0).Code()
	}()
	if err != nil {
		return 0, err
	}

	return motion.ParseCommandCode(int(raw))
}

func nowNs() int64 {
	return time.Now().UnixNano()
}
