package auth

import (
	"context"
	"testing"
	"time"

	"mev_engine/internal/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var testInfo = &grpc.UnaryServerInfo{FullMethod: "/mev_engine.v1.Engine/Execute"}

func okHandler(ctx context.Context, req interface{}) (interface{}, error) {
	return RequestID(ctx), nil
}

func TestAPIKeyValidator_AddRemoveAPIKey(t *testing.T) {
	validator := NewAPIKeyValidator([]string{"initial-key"}, 100, &mock.MockLogger{})

	assert.True(t, validator.ValidateAPIKey("initial-key"))
	assert.False(t, validator.ValidateAPIKey(""))

	validator.AddAPIKey("new-key")
	assert.True(t, validator.ValidateAPIKey("new-key"))

	validator.RemoveAPIKey("new-key")
	assert.False(t, validator.ValidateAPIKey("new-key"))
	assert.True(t, validator.ValidateAPIKey("initial-key"))
}

func TestAPIKeyValidator_RateLimit(t *testing.T) {
	rateLimit := 5
	validator := NewAPIKeyValidator([]string{"test-key"}, rateLimit, &mock.MockLogger{})

	for i := 0; i < rateLimit; i++ {
		assert.True(t, validator.CheckRateLimit("test-key"), "request %d", i+1)
	}
	assert.False(t, validator.CheckRateLimit("test-key"))
	assert.True(t, validator.CheckRateLimit("other-key"), "limits are per key")

	time.Sleep(300 * time.Millisecond)
	assert.True(t, validator.CheckRateLimit("test-key"))
}

func TestUnaryServerInterceptor_Rejections(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		code codes.Code
	}{
		{"missing metadata", context.Background(), codes.Unauthenticated},
		{"missing key", metadata.NewIncomingContext(context.Background(), metadata.Pairs("other-key", "value")), codes.Unauthenticated},
		{"invalid key", metadata.NewIncomingContext(context.Background(), metadata.Pairs(MetadataKeyAPIKey, "invalid-key")), codes.Unauthenticated},
	}

	validator := NewAPIKeyValidator([]string{"valid-key"}, 100, &mock.MockLogger{})
	interceptor := validator.UnaryServerInterceptor()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := interceptor(tt.ctx, nil, testInfo, okHandler)
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestUnaryServerInterceptor_ValidAPIKeyAssignsRequestID(t *testing.T) {
	validator := NewAPIKeyValidator([]string{"valid-key"}, 100, &mock.MockLogger{})
	interceptor := validator.UnaryServerInterceptor()
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(MetadataKeyAPIKey, "valid-key"))

	first, err := interceptor(ctx, nil, testInfo, okHandler)
	require.NoError(t, err)
	second, err := interceptor(ctx, nil, testInfo, okHandler)
	require.NoError(t, err)

	assert.Len(t, first, 36)
	assert.NotEqual(t, first, second)
	assert.Equal(t, "unknown", RequestID(context.Background()))
}

func TestUnaryServerInterceptor_RateLimitExceeded(t *testing.T) {
	validator := NewAPIKeyValidator([]string{"valid-key"}, 2, &mock.MockLogger{})
	interceptor := validator.UnaryServerInterceptor()
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(MetadataKeyAPIKey, "valid-key"))

	for i := 0; i < 2; i++ {
		_, err := interceptor(ctx, nil, testInfo, okHandler)
		require.NoError(t, err)
	}

	_, err := interceptor(ctx, nil, testInfo, okHandler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeStream) Context() context.Context { return f.ctx }

func TestStreamServerInterceptor(t *testing.T) {
	validator := NewAPIKeyValidator([]string{"valid-key"}, 100, &mock.MockLogger{})
	interceptor := validator.StreamServerInterceptor()
	info := &grpc.StreamServerInfo{FullMethod: "/mev_engine.v1.Engine/Watch"}

	var seen string
	handler := func(srv interface{}, ss grpc.ServerStream) error {
		seen = RequestID(ss.Context())
		return nil
	}

	err := interceptor(nil, &fakeStream{ctx: context.Background()}, info, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(MetadataKeyAPIKey, "valid-key"))
	require.NoError(t, interceptor(nil, &fakeStream{ctx: ctx}, info, handler))
	assert.Len(t, seen, 36)
}
