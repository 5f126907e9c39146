// mevctl sends instructions to a running mev_engine over gRPC
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"mev_engine/internal/infrastructure/engineapi"
)

const usage = `usage: mevctl [-addr host:port] [-api-key key] <command> [flags]

commands:
  slot      print the state slot address of an owner
  airdrop   credit lamports to an account
  init      initialize the state slot of an owner
  get       read a state slot
  exec      run any instruction
  ops       list instruction ops
`

func main() {
	addr := flag.String("addr", "localhost:50051", "engine gRPC address")
	apiKey := flag.String("api-key", os.Getenv("MEV_ENGINE_API_KEY"), "API key sent as x-api-key")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", flag.Arg(0))
		flag.Usage()
		os.Exit(2)
	}

	dial := func() (*engineapi.Client, error) { return engineapi.Dial(*addr, *apiKey) }
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	out, err := cmd(ctx, dial, flag.Args()[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
