package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"swapescrow/cmd/internal/passphrase"
	"swapescrow/core/types"
	"swapescrow/crypto"
)

var loadKey = loadKeystoreKey

func loadKeystoreKey(path string) (*crypto.PrivateKey, error) {
	pass, err := passphrase.NewSource(passphraseEnv, "keystore").Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	var out string
	fs.StringVar(&out, "out", "", "keystore file to create")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(out) == "" {
		return printError(stderr, "--out is required")
	}
	pass, err := passphrase.NewSource(passphraseEnv, "new keystore").Get()
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := crypto.SaveToKeystore(out, key, pass); err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintf(stdout, "Identity: %s\nKeystore: %s\n", key.Identity(), out)
	return 0
}

// signAndSend fetches the signer's nonce, signs payload and submits it.
func signAndSend(keyPath string, txType types.TxType, payload interface{}, stdout, stderr io.Writer) int {
	if strings.TrimSpace(keyPath) == "" {
		return printError(stderr, "--key is required")
	}
	key, err := loadKey(keyPath)
	if err != nil {
		return printError(stderr, fmt.Sprintf("load key: %v", err))
	}

	raw, rpcErr, err := escrowRPCCall("ledger_getNonce", map[string]string{"address": key.Identity().String()})
	if err != nil {
		return printError(stderr, err.Error())
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	var nonce struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := json.Unmarshal(raw, &nonce); err != nil {
		return printError(stderr, fmt.Sprintf("decode nonce: %v", err))
	}

	tx, err := types.NewTransaction(chainID, txType, nonce.Nonce, payload)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := tx.Sign(key.PrivateKey); err != nil {
		return printError(stderr, err.Error())
	}
	return query("ledger_sendTransaction", tx, stdout, stderr)
}
