package engineapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"mev_engine/internal/auth"
	"mev_engine/internal/core"
	"mev_engine/internal/engine/processor"
	"mev_engine/internal/state"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the Engine service
type Client struct {
	conn   *grpc.ClientConn
	apiKey string
}

// Dial connects to target over plaintext; opts are applied after the defaults
func Dial(target, apiKey string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial gRPC server at %s: %w", target, err)
	}
	return &Client{conn: conn, apiKey: apiKey}, nil
}

// Close closes the underlying gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	if c.apiKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, auth.MetadataKeyAPIKey, c.apiKey)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Execute submits one instruction
func (c *Client) Execute(ctx context.Context, ix processor.Instruction) (*processor.Result, error) {
	in, err := EncodeInstruction(ix)
	if err != nil {
		return nil, err
	}
	out, err := c.invoke(ctx, ExecuteMethod, in)
	if err != nil {
		return nil, err
	}

	var res processor.Result
	if err := json.Unmarshal([]byte(out.GetFields()["result"].GetStringValue()), &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &res, nil
}

// GetRecord reads the decoded record of a slot
func (c *Client) GetRecord(ctx context.Context, slot core.Pubkey) (*state.Record, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"slot": slot.String()})
	if err != nil {
		return nil, err
	}
	out, err := c.invoke(ctx, GetRecordMethod, in)
	if err != nil {
		return nil, err
	}

	var rec state.Record
	if err := json.Unmarshal([]byte(out.GetFields()["record"].GetStringValue()), &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

// Airdrop credits lamports to an account and returns its new balance
func (c *Client) Airdrop(ctx context.Context, account core.Pubkey, lamports uint64) (uint64, error) {
	in, err := structpb.NewStruct(map[string]interface{}{
		"account":  account.String(),
		"lamports": strconv.FormatUint(lamports, 10),
	})
	if err != nil {
		return 0, err
	}
	out, err := c.invoke(ctx, AirdropMethod, in)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(out.GetFields()["lamports"].GetStringValue(), 10, 64)
}
