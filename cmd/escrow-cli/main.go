package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"swapescrow/config"
)

const (
	rpcURLEnv     = "ESCROW_RPC_URL"
	chainIDEnv    = "ESCROW_CHAIN_ID"
	passphraseEnv = "ESCROW_KEY_PASSPHRASE"
)

var (
	rpcEndpoint = defaultRPCEndpoint()
	chainID     = defaultChainID()
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) < 1 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "keygen":
		return runKeygen(args[1:], stdout, stderr)
	case "asset":
		return runAssetCommand(args[1:], stdout, stderr)
	case "transfer":
		return runTransfer(args[1:], stdout, stderr)
	case "balance":
		return runBalance(args[1:], stdout, stderr)
	case "nonce":
		return runNonce(args[1:], stdout, stderr)
	case "escrow":
		return runEscrowCommand(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.Join([]string{
		"Usage: escrow-cli [--rpc URL] [--chain-id N] <command> [flags]",
		"",
		"Commands:",
		"  keygen   --out FILE",
		"  asset    create|mint|get",
		"  transfer --key FILE --asset ADDR --to ADDR --amount N",
		"  balance  --owner ADDR --asset ADDR",
		"  nonce    --address ADDR",
		"  escrow   init|exchange|refund|get|find|derive|history",
	}, "\n")
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv(rpcURLEnv)); v != "" {
		return v
	}
	return "http://" + config.DefaultRPCAddress
}

func defaultChainID() uint64 {
	if v := strings.TrimSpace(os.Getenv(chainIDEnv)); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			return parsed
		}
	}
	return config.DefaultChainID
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")
		if name != "--rpc" && name != "--chain-id" {
			out = append(out, arg)
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for %s", name)
			}
			value = args[i+1]
			i++
		}
		switch name {
		case "--rpc":
			rpcEndpoint = value
		case "--chain-id":
			parsed, err := strconv.ParseUint(value, 10, 64)
			if err != nil || parsed == 0 {
				return nil, fmt.Errorf("invalid --chain-id %q", value)
			}
			chainID = parsed
		}
	}
	return out, nil
}
