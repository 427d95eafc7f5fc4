package main

import (
	"fmt"
	"io"
	"strings"

	"swapescrow/core/types"
)

func runEscrowCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, escrowUsage())
		return 1
	}
	switch args[0] {
	case "init":
		return runEscrowInit(args[1:], stdout, stderr)
	case "exchange":
		return runEscrowSettle("escrow exchange", types.TxTypeEscrowExchange, args[1:], stdout, stderr)
	case "refund":
		return runEscrowSettle("escrow refund", types.TxTypeEscrowRefund, args[1:], stdout, stderr)
	case "get":
		return runEscrowGet(args[1:], stdout, stderr)
	case "find":
		return runEscrowFind(args[1:], stdout, stderr)
	case "derive":
		return runEscrowDerive(args[1:], stdout, stderr)
	case "history":
		return runEscrowHistory(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown escrow subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, escrowUsage())
		return 1
	}
}

func escrowUsage() string {
	return strings.Join([]string{
		"Usage: escrow-cli escrow <subcommand> [flags]",
		"  init     --key FILE --seed N --asset-a ADDR --asset-b ADDR --deposit N --receive N",
		"  exchange --key FILE --escrow ADDR",
		"  refund   --key FILE --escrow ADDR",
		"  get      --escrow ADDR",
		"  find     --asset-a ADDR --asset-b ADDR",
		"  derive   --maker ADDR --seed N",
		"  history  --escrow ADDR | --maker ADDR [--limit N]",
	}, "\n")
}

func runEscrowInit(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("escrow init", stderr)
	var keyPath, seedStr, assetAStr, assetBStr, depositStr, receiveStr string
	fs.StringVar(&keyPath, "key", "", "maker keystore")
	fs.StringVar(&seedStr, "seed", "", "maker-chosen seed distinguishing this escrow")
	fs.StringVar(&assetAStr, "asset-a", "", "asset the maker deposits")
	fs.StringVar(&assetBStr, "asset-b", "", "asset the maker wants")
	fs.StringVar(&depositStr, "deposit", "", "units of asset A to lock")
	fs.StringVar(&receiveStr, "receive", "", "units of asset B expected")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	seed, err := parseSeed(seedStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	assetA, err := requireAddress("asset-a", assetAStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	assetB, err := requireAddress("asset-b", assetBStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	deposit, err := requirePositive("deposit", depositStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	receive, err := requirePositive("receive", receiveStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	payload := &types.EscrowInitializePayload{Seed: seed, Deposit: deposit, Receive: receive, AssetA: assetA, AssetB: assetB}
	return signAndSend(keyPath, types.TxTypeEscrowInitialize, payload, stdout, stderr)
}

func runEscrowSettle(name string, txType types.TxType, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr)
	var keyPath, escrowStr string
	fs.StringVar(&keyPath, "key", "", "signer keystore")
	fs.StringVar(&escrowStr, "escrow", "", "escrow address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	addr, err := requireAddress("escrow", escrowStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	var payload interface{}
	if txType == types.TxTypeEscrowExchange {
		payload = &types.EscrowExchangePayload{Escrow: addr}
	} else {
		payload = &types.EscrowRefundPayload{Escrow: addr}
	}
	return signAndSend(keyPath, txType, payload, stdout, stderr)
}

func runEscrowGet(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("escrow get", stderr)
	var escrowStr string
	fs.StringVar(&escrowStr, "escrow", "", "escrow address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	addr, err := requireAddress("escrow", escrowStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return query("escrow_get", map[string]string{"escrow": addr.String()}, stdout, stderr)
}

func runEscrowFind(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("escrow find", stderr)
	var assetAStr, assetBStr string
	fs.StringVar(&assetAStr, "asset-a", "", "asset offered")
	fs.StringVar(&assetBStr, "asset-b", "", "asset wanted")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	assetA, err := requireAddress("asset-a", assetAStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	assetB, err := requireAddress("asset-b", assetBStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return query("escrow_find", map[string]string{"assetA": assetA.String(), "assetB": assetB.String()}, stdout, stderr)
}

func runEscrowDerive(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("escrow derive", stderr)
	var makerStr, seedStr string
	fs.StringVar(&makerStr, "maker", "", "maker identity")
	fs.StringVar(&seedStr, "seed", "", "escrow seed")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	maker, err := requireAddress("maker", makerStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	seed, err := parseSeed(seedStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return query("escrow_derive", map[string]interface{}{"maker": maker.String(), "seed": seed}, stdout, stderr)
}

func runEscrowHistory(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("escrow history", stderr)
	var escrowStr, makerStr string
	var limit int
	fs.StringVar(&escrowStr, "escrow", "", "escrow address")
	fs.StringVar(&makerStr, "maker", "", "maker identity")
	fs.IntVar(&limit, "limit", 0, "maximum events when listing by maker")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if (strings.TrimSpace(escrowStr) == "") == (strings.TrimSpace(makerStr) == "") {
		return printError(stderr, "exactly one of --escrow or --maker is required")
	}
	params := map[string]interface{}{}
	if escrowStr != "" {
		addr, err := requireAddress("escrow", escrowStr)
		if err != nil {
			return printError(stderr, err.Error())
		}
		params["escrow"] = addr.String()
	} else {
		maker, err := requireAddress("maker", makerStr)
		if err != nil {
			return printError(stderr, err.Error())
		}
		params["maker"] = maker.String()
		if limit > 0 {
			params["limit"] = limit
		}
	}
	return query("escrow_history", params, stdout, stderr)
}
