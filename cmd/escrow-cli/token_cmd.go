package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"swapescrow/core/types"
)

func runAssetCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: escrow-cli asset create|mint|get [flags]")
		return 1
	}
	switch args[0] {
	case "create":
		return runAssetCreate(args[1:], stdout, stderr)
	case "mint":
		return runAssetMint(args[1:], stdout, stderr)
	case "get":
		return runAssetGet(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown asset subcommand: %s\n", args[0])
		return 1
	}
}

func runAssetCreate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("asset create", stderr)
	var (
		keyPath  string
		symbol   string
		decimals uint
	)
	fs.StringVar(&keyPath, "key", "", "keystore of the mint authority")
	fs.StringVar(&symbol, "symbol", "", "asset symbol")
	fs.UintVar(&decimals, "decimals", 0, "display decimals")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(symbol) == "" {
		return printError(stderr, "--symbol is required")
	}
	if decimals > math.MaxUint8 {
		return printError(stderr, "--decimals must fit in a byte")
	}
	return signAndSend(keyPath, types.TxTypeCreateAsset, &types.CreateAssetPayload{Symbol: symbol, Decimals: uint8(decimals)}, stdout, stderr)
}

func runAssetMint(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("asset mint", stderr)
	var keyPath, assetStr, ownerStr, amountStr string
	fs.StringVar(&keyPath, "key", "", "keystore of the mint authority")
	fs.StringVar(&assetStr, "asset", "", "asset address")
	fs.StringVar(&ownerStr, "owner", "", "recipient identity")
	fs.StringVar(&amountStr, "amount", "", "units to mint")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	asset, err := requireAddress("asset", assetStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	owner, err := requireAddress("owner", ownerStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	amount, err := requirePositive("amount", amountStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSend(keyPath, types.TxTypeMintTo, &types.MintToPayload{Asset: asset, Owner: owner, Amount: amount}, stdout, stderr)
}

func runAssetGet(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("asset get", stderr)
	var assetStr string
	fs.StringVar(&assetStr, "asset", "", "asset address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	asset, err := requireAddress("asset", assetStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return query("token_getAsset", map[string]string{"asset": asset.String()}, stdout, stderr)
}

func runTransfer(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("transfer", stderr)
	var keyPath, assetStr, toStr, amountStr string
	fs.StringVar(&keyPath, "key", "", "keystore of the sender")
	fs.StringVar(&assetStr, "asset", "", "asset address")
	fs.StringVar(&toStr, "to", "", "recipient identity")
	fs.StringVar(&amountStr, "amount", "", "units to send")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	asset, err := requireAddress("asset", assetStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	to, err := requireAddress("to", toStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	amount, err := requirePositive("amount", amountStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return signAndSend(keyPath, types.TxTypeTransfer, &types.TransferPayload{Asset: asset, To: to, Amount: amount}, stdout, stderr)
}

func runBalance(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("balance", stderr)
	var ownerStr, assetStr string
	fs.StringVar(&ownerStr, "owner", "", "holder identity")
	fs.StringVar(&assetStr, "asset", "", "asset address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	owner, err := requireAddress("owner", ownerStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	asset, err := requireAddress("asset", assetStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return query("token_getBalance", map[string]string{"owner": owner.String(), "asset": asset.String()}, stdout, stderr)
}

func runNonce(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("nonce", stderr)
	var addrStr string
	fs.StringVar(&addrStr, "address", "", "signer identity")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	addr, err := requireAddress("address", addrStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return query("ledger_getNonce", map[string]string{"address": addr.String()}, stdout, stderr)
}

func parseSeed(value string) (uint64, error) {
	if strings.TrimSpace(value) == "" {
		return 0, fmt.Errorf("--seed is required")
	}
	seed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("--seed must be an unsigned integer")
	}
	return seed, nil
}
