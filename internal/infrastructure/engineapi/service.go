// Package engineapi exposes the instruction processor over gRPC. Messages are
// google.protobuf.Struct values so the service needs no generated stubs.
package engineapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"mev_engine/internal/auth"
	"mev_engine/internal/core"
	"mev_engine/internal/engine/processor"
	apperrors "mev_engine/pkg/errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "mev_engine.v1.Engine"

	ExecuteMethod   = "/" + ServiceName + "/Execute"
	GetRecordMethod = "/" + ServiceName + "/GetRecord"
	AirdropMethod   = "/" + ServiceName + "/Airdrop"
)

// EngineServer is the server API of the Engine service
type EngineServer interface {
	Execute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRecord(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Airdrop(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the Engine service for grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: unaryHandler(ExecuteMethod, EngineServer.Execute)},
		{MethodName: "GetRecord", Handler: unaryHandler(GetRecordMethod, EngineServer.GetRecord)},
		{MethodName: "Airdrop", Handler: unaryHandler(AirdropMethod, EngineServer.Airdrop)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mev_engine/v1/engine.proto",
}

type structMethod func(EngineServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EngineServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(EngineServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// EngineService adapts the processor to the Engine service
type EngineService struct {
	proc   *processor.Processor
	logger core.ILogger
}

func NewEngineService(proc *processor.Processor, logger core.ILogger) *EngineService {
	return &EngineService{
		proc:   proc,
		logger: logger.WithField("component", "engine_service"),
	}
}

// NewGRPCServer registers the service and the standard health service.
// A nil validator leaves the server unauthenticated.
func NewGRPCServer(svc EngineServer, validator *auth.APIKeyValidator) (*grpc.Server, *health.Server) {
	var opts []grpc.ServerOption
	if validator != nil {
		opts = append(opts,
			grpc.ChainUnaryInterceptor(validator.UnaryServerInterceptor()),
			grpc.ChainStreamInterceptor(validator.StreamServerInterceptor()),
		)
	}

	grpcServer := grpc.NewServer(opts...)
	grpcServer.RegisterService(&ServiceDesc, svc)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return grpcServer, healthServer
}

func (s *EngineService) Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ix, err := DecodeInstruction(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res, err := s.proc.Process(ctx, ix)
	if err != nil {
		s.logger.Debug("Execute rejected", "op", ix.Op, "request_id", auth.RequestID(ctx), "error", err)
		return nil, mapError(err)
	}
	return jsonStruct("result", res, map[string]interface{}{"op": string(res.Op)})
}

func (s *EngineService) GetRecord(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	slot, err := pubkeyField(req, "slot")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	rec, err := s.proc.ReadRecord(ctx, slot)
	if err != nil {
		return nil, mapError(err)
	}
	return jsonStruct("record", rec, nil)
}

func (s *EngineService) Airdrop(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	account, err := pubkeyField(req, "account")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	lamports, err := strconv.ParseUint(req.GetFields()["lamports"].GetStringValue(), 10, 64)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "lamports must be a base-10 string")
	}

	total, err := s.proc.Airdrop(ctx, account, lamports)
	if err != nil {
		return nil, mapError(err)
	}
	s.logger.Info("Airdrop", "account", account, "lamports", lamports, "total", total)
	return structpb.NewStruct(map[string]interface{}{"lamports": strconv.FormatUint(total, 10)})
}

// EncodeInstruction is the wire form of an instruction
func EncodeInstruction(ix processor.Instruction) (*structpb.Struct, error) {
	accounts := make([]interface{}, len(ix.Accounts))
	for i, a := range ix.Accounts {
		accounts[i] = a.String()
	}
	return structpb.NewStruct(map[string]interface{}{
		"op":       string(ix.Op),
		"signer":   ix.Signer.String(),
		"accounts": accounts,
		"data":     base64.StdEncoding.EncodeToString(ix.Data),
	})
}

// DecodeInstruction parses the wire form. A missing signer means an unsigned call.
func DecodeInstruction(req *structpb.Struct) (processor.Instruction, error) {
	fields := req.GetFields()
	ix := processor.Instruction{Op: processor.Op(fields["op"].GetStringValue())}

	if s := fields["signer"].GetStringValue(); s != "" {
		signer, err := core.ParsePubkey(s)
		if err != nil {
			return ix, fmt.Errorf("signer: %w", err)
		}
		ix.Signer = signer
	}

	for i, v := range fields["accounts"].GetListValue().GetValues() {
		key, err := core.ParsePubkey(v.GetStringValue())
		if err != nil {
			return ix, fmt.Errorf("accounts[%d]: %w", i, err)
		}
		ix.Accounts = append(ix.Accounts, key)
	}

	data, err := base64.StdEncoding.DecodeString(fields["data"].GetStringValue())
	if err != nil {
		return ix, fmt.Errorf("data: %w", err)
	}
	ix.Data = data
	return ix, nil
}

func pubkeyField(req *structpb.Struct, name string) (core.Pubkey, error) {
	key, err := core.ParsePubkey(req.GetFields()[name].GetStringValue())
	if err != nil {
		return core.Pubkey{}, fmt.Errorf("%s: %w", name, err)
	}
	return key, nil
}

// jsonStruct carries v as a JSON string under key. Struct numbers are doubles,
// so u64 values would not survive as native fields.
func jsonStruct(key string, v interface{}, extra map[string]interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	fields := map[string]interface{}{key: string(raw)}
	for k, val := range extra {
		fields[k] = val
	}
	return structpb.NewStruct(fields)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, apperrors.ErrNotAuthorized):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, apperrors.ErrMissingSignature):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, apperrors.ErrAlreadyInitialized):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, apperrors.ErrDeserialization),
		errors.Is(err, apperrors.ErrInvalidInstructionData),
		errors.Is(err, apperrors.ErrInvalidAccountData),
		errors.Is(err, apperrors.ErrNotEnoughAccountKeys),
		errors.Is(err, apperrors.ErrUnknownInstruction),
		errors.Is(err, apperrors.ErrZeroSteps),
		errors.Is(err, apperrors.ErrDivisionByZero):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, apperrors.ErrAccountRetired),
		errors.Is(err, apperrors.ErrTradingDisabled),
		errors.Is(err, apperrors.ErrMEVDisabled),
		errors.Is(err, apperrors.ErrBelowLiquidityThreshold):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, apperrors.ErrPriceQuote), errors.Is(err, apperrors.ErrTradeExecution):
		return status.Error(codes.Unavailable, err.Error())
	}

	return status.Error(codes.Unknown, err.Error())
}
