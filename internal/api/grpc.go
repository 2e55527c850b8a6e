package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/live"
	"github.com/banshee-data/gaze.intent/internal/timeutil"
)

const classifyStreamMethod = "/gaze.v1.GazeService/ClassifyStream"

// GazeServiceServer is the server API for gaze.v1.GazeService.
type GazeServiceServer interface {
	ClassifyStream(GazeService_ClassifyStreamServer) error
}

// GazeService_ClassifyStreamServer is the server side of ClassifyStream.
type GazeService_ClassifyStreamServer interface {
	Send(*structpb.Struct) error
	Recv() (*structpb.Struct, error)
	grpc.ServerStream
}

// GazeService_ClassifyStreamClient is the client side of ClassifyStream.
type GazeService_ClassifyStreamClient interface {
	Send(*structpb.Struct) error
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

// GazeServiceDesc describes gaze.v1.GazeService. Messages are
// google.protobuf.Struct so no generated code is needed.
var GazeServiceDesc = grpc.ServiceDesc{
	ServiceName: "gaze.v1.GazeService",
	HandlerType: (*GazeServiceServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ClassifyStream",
			Handler:       classifyStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "gaze/v1/gaze.proto",
}

func classifyStreamHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(GazeServiceServer).ClassifyStream(&classifyStreamServer{stream})
}

type classifyStreamServer struct {
	grpc.ServerStream
}

func (x *classifyStreamServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func (x *classifyStreamServer) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type classifyStreamClient struct {
	grpc.ClientStream
}

func (x *classifyStreamClient) Send(m *structpb.Struct) error {
	return x.ClientStream.SendMsg(m)
}

func (x *classifyStreamClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// NewClassifyStreamClient opens a ClassifyStream on cc.
func NewClassifyStreamClient(ctx context.Context, cc grpc.ClientConnInterface, opts ...grpc.CallOption) (GazeService_ClassifyStreamClient, error) {
	stream, err := cc.NewStream(ctx, &GazeServiceDesc.Streams[0], classifyStreamMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &classifyStreamClient{stream}, nil
}

// Ensure GRPCService implements the gRPC interface.
var _ GazeServiceServer = (*GRPCService)(nil)

// GRPCService classifies streamed frames. Each stream gets its own
// smoothing history and a snapshot of the active profile taken when the
// stream opens.
type GRPCService struct {
	pipeline *live.Pipeline
	clock    timeutil.Clock
}

// NewGRPCService creates the service backed by pipeline's profile and
// window. A nil clock uses the real clock.
func NewGRPCService(pipeline *live.Pipeline, clock timeutil.Clock) *GRPCService {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &GRPCService{pipeline: pipeline, clock: clock}
}

// RegisterService registers the gRPC service with the server.
func RegisterService(grpcServer *grpc.Server, svc *GRPCService) {
	grpcServer.RegisterService(&GazeServiceDesc, svc)
}

// ClassifyStream implements the bidirectional classification RPC. Each
// request {ts?, faces:[[[x,y,z?],...],...]} yields one reply
// {direction, confidence, ts, x?, y?}.
func (g *GRPCService) ClassifyStream(stream GazeService_ClassifyStreamServer) error {
	id := uuid.New().String()
	log.Printf("[gRPC] ClassifyStream %s opened", id)
	pipe := live.New(g.pipeline.Window(), g.pipeline.Profile())

	frames := 0
	defer func() {
		log.Printf("[gRPC] ClassifyStream %s closed after %d frames", id, frames)
	}()

	for {
		req, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		frame, err := frameFromStruct(req, g.clock.Now())
		if err != nil {
			return status.Error(codes.InvalidArgument, err.Error())
		}
		frames++
		reply, err := outputToStruct(pipe.Process(frame), frame.Timestamp)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		if err := stream.Send(reply); err != nil {
			return err
		}
	}
}

// frameFromStruct reads a frame out of a Struct message. A missing ts is
// replaced by now.
func frameFromStruct(msg *structpb.Struct, now time.Time) (live.Frame, error) {
	frame := live.Frame{Timestamp: now}
	if ts, ok := msg.GetFields()["ts"]; ok {
		if _, isNum := ts.GetKind().(*structpb.Value_NumberValue); !isNum {
			return live.Frame{}, fmt.Errorf("ts must be a number")
		}
		if ms := int64(ts.GetNumberValue()); ms > 0 {
			frame.Timestamp = time.UnixMilli(ms)
		}
	}

	faces, ok := msg.GetFields()["faces"]
	if !ok {
		return frame, nil
	}
	faceList := faces.GetListValue()
	if faceList == nil {
		return live.Frame{}, fmt.Errorf("faces must be a list")
	}
	for i, face := range faceList.GetValues() {
		points := face.GetListValue()
		if points == nil {
			return live.Frame{}, fmt.Errorf("face %d must be a list", i)
		}
		mesh := make([]gaze.Landmark, 0, len(points.GetValues()))
		for j, p := range points.GetValues() {
			coords := p.GetListValue().GetValues()
			if len(coords) < 2 {
				return live.Frame{}, fmt.Errorf("face %d landmark %d needs at least x and y", i, j)
			}
			lm := gaze.Landmark{X: coords[0].GetNumberValue(), Y: coords[1].GetNumberValue()}
			if len(coords) > 2 {
				lm.Z = coords[2].GetNumberValue()
			}
			mesh = append(mesh, lm)
		}
		frame.Faces = append(frame.Faces, mesh)
	}
	return frame, nil
}

func outputToStruct(out gaze.Output, at time.Time) (*structpb.Struct, error) {
	m := map[string]interface{}{
		"direction":  string(out.Direction),
		"confidence": out.Confidence,
		"ts":         float64(at.UnixMilli()),
	}
	if out.Features != nil {
		m["x"] = out.Features.X
		m["y"] = out.Features.Y
	}
	return structpb.NewStruct(m)
}
