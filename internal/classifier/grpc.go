package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/flower-lookup/internal/logging"
)

const (
	serviceName    = "flower.v1.Classifier"
	classifyMethod = "/" + serviceName + "/Classify"
)

// ErrInvalidReply marks a classifier answer that does not carry the predictions list.
var ErrInvalidReply = errors.New("invalid classifier reply")

// DialClassifier returns a ready-to-use gRPC client for the model service.
// The wire contract uses well-known types only: the request is a BytesValue holding
// the encoded image and the reply a Struct {"predictions": [{"label", "confidence"}]}.
func DialClassifier(ctx context.Context, addr string, logger *zap.Logger, opts ...grpc.DialOption) (Classifier, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)
	conn, err := grpc.DialContext(dialCtx, addr, dialOpts...)
	if err != nil {
		wrapped := logging.NewOperationError("classifier.dial", "", err)
		logger.Error("failed to dial classifier", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return NewGRPCClassifier(conn, logger), conn, nil
}

// NewGRPCClassifier wraps an existing connection.
func NewGRPCClassifier(conn grpc.ClientConnInterface, logger *zap.Logger) Classifier {
	return &grpcClassifier{conn: conn, logger: logger.Named("classifier")}
}

type grpcClassifier struct {
	conn   grpc.ClientConnInterface
	logger *zap.Logger
}

func (g *grpcClassifier) Classify(ctx context.Context, image []byte) ([]Prediction, error) {
	reply := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, classifyMethod, wrapperspb.Bytes(image), reply); err != nil {
		wrapped := logging.NewOperationError("classifier.classify", "", err)
		g.logger.Error("classifier call failed", zap.Error(wrapped), zap.Int("image_bytes", len(image)))
		return nil, wrapped
	}

	predictions, err := DecodePredictions(reply)
	if err != nil {
		g.logger.Error("classifier reply rejected", zap.Error(err))
		return nil, logging.NewOperationError("classifier.decode_reply", "", err)
	}
	return predictions, nil
}

// DecodePredictions reads the predictions list out of a classifier reply.
func DecodePredictions(reply *structpb.Struct) ([]Prediction, error) {
	field, ok := reply.GetFields()["predictions"]
	if !ok {
		return nil, fmt.Errorf("%w: missing predictions", ErrInvalidReply)
	}
	list := field.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: predictions is not a list", ErrInvalidReply)
	}

	predictions := make([]Prediction, 0, len(list.GetValues()))
	for i, value := range list.GetValues() {
		entry := value.GetStructValue()
		if entry == nil {
			return nil, fmt.Errorf("%w: prediction %d is not an object", ErrInvalidReply, i)
		}
		label := entry.GetFields()["label"].GetStringValue()
		if label == "" {
			return nil, fmt.Errorf("%w: prediction %d has no label", ErrInvalidReply, i)
		}
		predictions = append(predictions, Prediction{
			Label:      label,
			Confidence: float32(entry.GetFields()["confidence"].GetNumberValue()),
		})
	}
	return predictions, nil
}

// EncodePredictions builds the reply a classifier service sends back.
func EncodePredictions(predictions []Prediction) (*structpb.Struct, error) {
	values := make([]interface{}, 0, len(predictions))
	for _, p := range predictions {
		values = append(values, map[string]interface{}{
			"label":      p.Label,
			"confidence": float64(p.Confidence),
		})
	}
	return structpb.NewStruct(map[string]interface{}{"predictions": values})
}

// Server is implemented by a classifier service hosted in Go.
type Server interface {
	Classify(ctx context.Context, image *wrapperspb.BytesValue) (*structpb.Struct, error)
}

// RegisterServer exposes srv under the flower.v1.Classifier service name.
func RegisterServer(registrar grpc.ServiceRegistrar, srv Server) {
	registrar.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Classify", Handler: classifyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "flower/v1/classifier.proto",
}

func classifyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Classify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: classifyMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).Classify(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}
