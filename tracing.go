// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/luxfi/rpcproxy"

// Traced wraps next so that every generic call runs in a client span named
// service/method. The span context travels to the remote side as
// attachments. Errors from next are returned as is.
func Traced(next GenericService, service string, tp trace.TracerProvider) GenericService {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(tracerName)
	propagator := propagation.TraceContext{}

	return GenericServiceFunc(func(ctx context.Context, method string, parameterTypes []string, args []any) (any, error) {
		ctx, span := tracer.Start(ctx, service+"/"+method,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("rpc.system", "rpcproxy"),
				attribute.String("rpc.service", service),
				attribute.String("rpc.method", method),
				attribute.StringSlice("rpcproxy.parameter_types", parameterTypes),
			),
		)
		defer span.End()

		carrier := propagation.MapCarrier{}
		propagator.Inject(ctx, carrier)
		if len(carrier) > 0 {
			ctx = WithAttachments(ctx, carrier)
		}

		res, err := next.Invoke(ctx, method, parameterTypes, args)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return res, err
	})
}

// ExtractTrace returns ctx carrying the span context found in the
// attachments of an incoming generic call.
func ExtractTrace(ctx context.Context) context.Context {
	attachments := AttachmentsFromContext(ctx)
	if len(attachments) == 0 {
		return ctx
	}
	return propagation.TraceContext{}.Extract(ctx, propagation.MapCarrier(attachments))
}
