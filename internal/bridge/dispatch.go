package bridge

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/woxQAQ/scriptbridge/pkg/protocol"
)

// Outcome labels of inbound messages.
const (
	outcomeAck       = "ack"
	outcomeNoAck     = "no_ack"
	outcomeOK        = "ok"
	outcomeDropped   = "dropped"
	outcomeFailed    = "failed"
	outcomeMalformed = "malformed"
)

// HandleMessage is the receive callback of the extension's channel. Bad
// messages are logged and dropped; the returned error is non-nil only for
// fatal mismatches between the native surface and its proxy (see IsFatal).
func (e *Extension) HandleMessage(body []byte) error {
	start := time.Now()
	logger := e.log()

	_, span := e.tracer.Start(context.Background(), "bridge.dispatch",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("bridge.extension", e.typeName),
			attribute.Int64("bridge.channel", e.ChannelID()),
		),
	)
	defer span.End()

	msg, err := protocol.DecodeMessage(body)
	if err != nil {
		err = &UnknownMessageError{Body: string(body), Err: err}
		logger.Error("Failed to decode message", zap.Error(err))
		span.RecordError(err)
		e.metrics.ObserveInbound("unknown", outcomeMalformed, time.Since(start))
		return nil
	}

	switch {
	case msg.IsMethodCall():
		span.SetAttributes(attribute.String("bridge.method", *msg.Method))
		outcome, err := e.dispatchMethod(logger, msg)
		e.metrics.ObserveInbound("method", outcome, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	case msg.IsPropertySet():
		span.SetAttributes(attribute.String("bridge.property", *msg.Property))
		outcome, err := e.dispatchProperty(logger, msg)
		e.metrics.ObserveInbound("property", outcome, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	default:
		err := &UnknownMessageError{Body: string(body)}
		logger.Error("Unknown message", zap.Error(err))
		span.RecordError(err)
		e.metrics.ObserveInbound("unknown", outcomeDropped, time.Since(start))
		return nil
	}
}

func (e *Extension) dispatchMethod(logger *zap.Logger, msg *protocol.Message) (string, error) {
	method := *msg.Method

	for i, arg := range msg.Arguments {
		if len(arg) == 0 {
			logger.Error("Dropping call with undefined argument",
				zap.Error(&MalformedArgumentsError{Method: method, Index: i}),
			)
			return outcomeMalformed, nil
		}
	}

	inv := NewInvocation(MemberMethod, method)
	inv.AppendArgument(protocol.CallIDParam, msg.CallID)
	for _, arg := range msg.Arguments {
		for name, value := range arg {
			inv.AppendArgument(name, value)
		}
	}

	result, err := inv.Call(e.manifest)
	if err != nil {
		var typeErr *TypeError
		if errors.As(err, &typeErr) {
			logger.Error("Native method broke its contract",
				zap.String("method", method),
				zap.Error(err),
			)
			return outcomeFailed, err
		}
		logger.Warn("Dropping call",
			zap.String("method", method),
			zap.Error(err),
		)
		return outcomeDropped, nil
	}

	if ack, _ := result.AsBool(); ack {
		e.ReleaseArguments(msg.CallID)
		return outcomeAck, nil
	}
	return outcomeNoAck, nil
}

func (e *Extension) dispatchProperty(logger *zap.Logger, msg *protocol.Message) (string, error) {
	inv := NewInvocation(MemberSetter, *msg.Property)
	inv.AppendArgument(protocol.SetterParam, msg.Value)
	if _, err := inv.Call(e.manifest); err != nil {
		if IsFatal(err) {
			logger.Error("Property is not writable on the native side",
				zap.String("property", *msg.Property),
				zap.Error(err),
			)
			return outcomeFailed, err
		}
		logger.Warn("Dropping property update",
			zap.String("property", *msg.Property),
			zap.Error(err),
		)
		return outcomeDropped, nil
	}
	return outcomeOK, nil
}
