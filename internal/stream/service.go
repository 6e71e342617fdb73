package stream

import (
	"context"

	"google.golang.org/grpc"

	"telemetry-sim/internal/model"
)

const (
	ServiceName = "telemetry.v1.TelemetryService"
	MethodName  = "GetTelemetryStream"
	FullMethod  = "/" + ServiceName + "/" + MethodName
)

// TelemetryStreamer answers one subscribe request with a sequence of events
// until it is cancelled or has nothing more to send.
type TelemetryStreamer interface {
	GetTelemetryStream(req *model.TelemetryRequest, stream EventStream) error
}

// EventStream is the server side of one subscription.
type EventStream interface {
	Context() context.Context
	Send(ev *model.TelemetryEvent) error
}

type eventServerStream struct {
	grpc.ServerStream
}

func (s *eventServerStream) Send(ev *model.TelemetryEvent) error {
	return s.ServerStream.SendMsg(ev)
}

func getTelemetryStreamHandler(srv any, stream grpc.ServerStream) error {
	req := new(model.TelemetryRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(TelemetryStreamer).GetTelemetryStream(req, &eventServerStream{stream})
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TelemetryStreamer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodName,
			Handler:       getTelemetryStreamHandler,
			ServerStreams: true,
		},
	},
}

func RegisterTelemetryStreamer(s grpc.ServiceRegistrar, srv TelemetryStreamer) {
	s.RegisterService(&ServiceDesc, srv)
}
