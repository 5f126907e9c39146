package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"mev_engine/internal/config"
	"mev_engine/internal/core"
	"mev_engine/internal/engine/processor"
	"mev_engine/internal/infrastructure/engineapi"
	"mev_engine/internal/state"
)

type dialFunc func() (*engineapi.Client, error)

type command func(ctx context.Context, dial dialFunc, args []string) (interface{}, error)

var commands = map[string]command{
	"slot":    slotCmd,
	"airdrop": airdropCmd,
	"init":    initCmd,
	"get":     getCmd,
	"exec":    execCmd,
	"ops":     opsCmd,
}

// rentSysvar is passed where initialize expects the rent sysvar account
var rentSysvar = state.DeriveAddress(core.SystemProgram, []byte("sysvar"), []byte("rent"))

func slotCmd(_ context.Context, _ dialFunc, args []string) (interface{}, error) {
	fs := flag.NewFlagSet("slot", flag.ContinueOnError)
	program := fs.String("program", config.DefaultProgramID, "program id")
	owner := fs.String("owner", "", "slot owner")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	slot, err := slotAddress(*program, *owner)
	if err != nil {
		return nil, err
	}
	return map[string]string{"slot": slot.String()}, nil
}

func airdropCmd(ctx context.Context, dial dialFunc, args []string) (interface{}, error) {
	fs := flag.NewFlagSet("airdrop", flag.ContinueOnError)
	account := fs.String("account", "", "account to credit")
	lamports := fs.Uint64("lamports", 0, "lamports to credit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	key, err := core.ParsePubkey(*account)
	if err != nil {
		return nil, err
	}

	c, err := dial()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	total, err := c.Airdrop(ctx, key, *lamports)
	if err != nil {
		return nil, err
	}
	return map[string]string{"account": key.String(), "lamports": strconv.FormatUint(total, 10)}, nil
}

func initCmd(ctx context.Context, dial dialFunc, args []string) (interface{}, error) {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	program := fs.String("program", config.DefaultProgramID, "program id")
	owner := fs.String("owner", "", "slot owner, who also pays the rent")
	arbTxPrice := fs.Uint64("arb-tx-price", 0, "initial arbitrage transaction price")
	trading := fs.Bool("trading", false, "enable trading from the start")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	ownerKey, err := core.ParsePubkey(*owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	slot, err := slotAddress(*program, *owner)
	if err != nil {
		return nil, err
	}

	rec := &state.Record{Owner: ownerKey, ArbTxPrice: *arbTxPrice, EnableTrading: *trading}
	return execute(ctx, dial, processor.Instruction{
		Op:       processor.OpInitialize,
		Signer:   ownerKey,
		Accounts: []core.Pubkey{ownerKey, slot, core.SystemProgram, rentSysvar},
		Data:     state.Encode(rec),
	})
}

func getCmd(ctx context.Context, dial dialFunc, args []string) (interface{}, error) {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	slot := fs.String("slot", "", "state slot address")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	key, err := core.ParsePubkey(*slot)
	if err != nil {
		return nil, err
	}

	c, err := dial()
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.GetRecord(ctx, key)
}

func execCmd(ctx context.Context, dial dialFunc, args []string) (interface{}, error) {
	fs := flag.NewFlagSet("exec", flag.ContinueOnError)
	op := fs.String("op", "", "instruction op, see mevctl ops")
	signer := fs.String("signer", "", "signing account; empty for unsigned ops")
	accounts := fs.String("accounts", "", "comma-separated account keys in op order")
	p := payloadFlags{
		u64:     fs.String("u64", "", "u64 amount payload"),
		u32:     fs.String("u32", "", "u32 step-count payload"),
		u8:      fs.String("u8", "", "u8 payload"),
		pair:    fs.String("pair", "", "two u64 amounts as a,b"),
		boolean: fs.String("bool", "", "boolean payload"),
		raw:     fs.String("data", "", "raw hex payload"),
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	ix := processor.Instruction{Op: processor.Op(*op)}
	if *signer != "" {
		key, err := core.ParsePubkey(*signer)
		if err != nil {
			return nil, fmt.Errorf("signer: %w", err)
		}
		ix.Signer = key
	}
	keys, err := parseKeys(*accounts)
	if err != nil {
		return nil, err
	}
	ix.Accounts = keys
	if ix.Data, err = p.encode(); err != nil {
		return nil, err
	}
	return execute(ctx, dial, ix)
}

func opsCmd(context.Context, dialFunc, []string) (interface{}, error) {
	return processor.Ops(), nil
}

func execute(ctx context.Context, dial dialFunc, ix processor.Instruction) (interface{}, error) {
	c, err := dial()
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Execute(ctx, ix)
}

func slotAddress(program, owner string) (core.Pubkey, error) {
	programKey, err := core.ParsePubkey(program)
	if err != nil {
		return core.Pubkey{}, fmt.Errorf("program: %w", err)
	}
	ownerKey, err := core.ParsePubkey(owner)
	if err != nil {
		return core.Pubkey{}, fmt.Errorf("owner: %w", err)
	}
	return state.SlotAddress(programKey, ownerKey), nil
}

func parseKeys(list string) ([]core.Pubkey, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	parts := strings.Split(list, ",")
	keys := make([]core.Pubkey, len(parts))
	for i, part := range parts {
		key, err := core.ParsePubkey(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("accounts[%d]: %w", i, err)
		}
		keys[i] = key
	}
	return keys, nil
}

type payloadFlags struct {
	u64, u32, u8, pair, boolean, raw *string
}

var errManyPayloads = errors.New("give at most one payload flag")

// encode builds the instruction data from whichever payload flag is set
func (p payloadFlags) encode() ([]byte, error) {
	var (
		data []byte
		set  int
	)
	if *p.u64 != "" {
		set++
		v, err := strconv.ParseUint(*p.u64, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("u64: %w", err)
		}
		data = processor.EncodeU64(v)
	}
	if *p.u32 != "" {
		set++
		v, err := strconv.ParseUint(*p.u32, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("u32: %w", err)
		}
		data = processor.EncodeU32(uint32(v))
	}
	if *p.u8 != "" {
		set++
		v, err := strconv.ParseUint(*p.u8, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("u8: %w", err)
		}
		data = []byte{uint8(v)}
	}
	if *p.pair != "" {
		set++
		a, b, ok := strings.Cut(*p.pair, ",")
		if !ok {
			return nil, fmt.Errorf("pair: want a,b")
		}
		av, err := strconv.ParseUint(strings.TrimSpace(a), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("pair: %w", err)
		}
		bv, err := strconv.ParseUint(strings.TrimSpace(b), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("pair: %w", err)
		}
		data = processor.EncodePair(av, bv)
	}
	if *p.boolean != "" {
		set++
		v, err := strconv.ParseBool(*p.boolean)
		if err != nil {
			return nil, fmt.Errorf("bool: %w", err)
		}
		data = processor.EncodeBool(v)
	}
	if *p.raw != "" {
		set++
		v, err := hex.DecodeString(*p.raw)
		if err != nil {
			return nil, fmt.Errorf("data: %w", err)
		}
		data = v
	}
	if set > 1 {
		return nil, errManyPayloads
	}
	return data, nil
}
