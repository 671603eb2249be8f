package main

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// readTransaction reads an encoded transaction from path, or stdin for "-".
func readTransaction(path string, stdin io.Reader) (*solana.Transaction, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read transaction: %w", err)
	}
	return decodeTransaction(data)
}

// decodeTransaction accepts base64 or base58 wire bytes. Signature slots may be empty.
func decodeTransaction(data []byte) (*solana.Transaction, error) {
	text := bytes.TrimSpace(data)
	if len(text) == 0 {
		return nil, errors.New("empty transaction input")
	}

	// base58 text can also be valid base64, so both are tried as wire bytes.
	var decoded bool
	var lastErr error
	for _, decode := range []func(string) ([]byte, error){base64.StdEncoding.DecodeString, base58.Decode} {
		raw, err := decode(string(text))
		if err != nil {
			continue
		}
		decoded = true
		dec := bin.NewBinDecoder(raw)
		tx, err := solana.TransactionFromDecoder(dec)
		if err == nil && dec.Remaining() > 0 {
			err = fmt.Errorf("%d trailing bytes", dec.Remaining())
		}
		if err != nil {
			lastErr = err
			continue
		}
		if len(tx.Message.Instructions) == 0 {
			return nil, errors.New("transaction has no instructions")
		}
		return tx, nil
	}
	if !decoded {
		return nil, errors.New("transaction is neither base64 nor base58")
	}
	return nil, fmt.Errorf("decode transaction: %w", lastErr)
}

func encodeBase64(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
