package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"swapescrow/core/types"
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

var (
	escrowRPCCall = callRPC
	httpClient    = &http.Client{Timeout: 15 * time.Second}
)

func callRPC(method string, params interface{}) (json.RawMessage, *rpcError, error) {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	} else {
		payload["params"] = []interface{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	resp, err := httpClient.Post(rpcEndpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode RPC response: %w", err)
	}
	return rpcResp.Result, rpcResp.Error, nil
}

// query performs a read call and pretty-prints the result.
func query(method string, params interface{}, stdout, stderr io.Writer) int {
	result, rpcErr, err := escrowRPCCall(method, params)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	return printJSON(stdout, stderr, result)
}

func printJSON(stdout, stderr io.Writer, raw json.RawMessage) int {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return printError(stderr, fmt.Sprintf("failed to format result: %v", err))
	}
	fmt.Fprintln(stdout, pretty.String())
	return 0
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func printError(w io.Writer, msg string) int {
	fmt.Fprintf(w, "Error: %s\n", msg)
	return 1
}

func handleRPCError(w io.Writer, err *rpcError) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "RPC error %d: %s\n", err.Code, err.Message)
	return 1
}

func requireAddress(flagName, value string) (types.Address, error) {
	if strings.TrimSpace(value) == "" {
		return types.ZeroAddress, fmt.Errorf("--%s is required", flagName)
	}
	addr, err := types.ParseAddress(value)
	if err != nil {
		return types.ZeroAddress, fmt.Errorf("--%s: %v", flagName, err)
	}
	return addr, nil
}

func requirePositive(flagName, value string) (uint64, error) {
	if strings.TrimSpace(value) == "" {
		return 0, fmt.Errorf("--%s is required", flagName)
	}
	amount, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("--%s must be an unsigned integer", flagName)
	}
	if amount == 0 {
		return 0, fmt.Errorf("--%s must be greater than zero", flagName)
	}
	return amount, nil
}
