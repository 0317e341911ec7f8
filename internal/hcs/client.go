package hcs

import (
	"errors"
	"fmt"
	"strings"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

// ErrInvalidCredential indicates the operator key matched none of the
// supported encodings.
var ErrInvalidCredential = errors.New("hcs: operator key is not a valid DER, Ed25519, or ECDSA key")

// ClientOptions parameterise Hedera client construction.
type ClientOptions struct {
	Network     string
	OperatorID  string
	OperatorKey string
}

// NewClient builds a Hedera client for the configured network with the
// operator credentials applied.
func NewClient(opts ClientOptions) (*hedera.Client, error) {
	if opts.OperatorID == "" || opts.OperatorKey == "" {
		return nil, errors.New("hcs: operator id and operator key are required")
	}

	client, err := clientForNetwork(opts.Network)
	if err != nil {
		return nil, err
	}

	operatorID, err := hedera.AccountIDFromString(opts.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("parse operator id: %w", err)
	}

	operatorKey, err := parseOperatorKey(opts.OperatorKey)
	if err != nil {
		return nil, err
	}

	client.SetOperator(operatorID, operatorKey)
	return client, nil
}

func clientForNetwork(network string) (*hedera.Client, error) {
	switch strings.ToLower(strings.TrimSpace(network)) {
	case "mainnet":
		return hedera.ClientForMainnet(), nil
	case "previewnet":
		return hedera.ClientForPreviewnet(), nil
	case "", "testnet":
		return hedera.ClientForTestnet(), nil
	default:
		return nil, fmt.Errorf("hcs: unknown network %q", network)
	}
}

// parseOperatorKey tries the supported key encodings in a fixed order;
// the first decoder that succeeds wins.
func parseOperatorKey(raw string) (hedera.PrivateKey, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "0x")

	decoders := []func(string) (hedera.PrivateKey, error){
		hedera.PrivateKeyFromStringDer,
		hedera.PrivateKeyFromStringEd25519,
		hedera.PrivateKeyFromStringECDSA,
	}
	for _, decode := range decoders {
		if key, err := decode(s); err == nil {
			return key, nil
		}
	}

	// Last resort: the generic parser against the untrimmed input, the
	// way operators sometimes paste keys with their original prefix.
	if key, err := hedera.PrivateKeyFromString(raw); err == nil {
		return key, nil
	}
	return hedera.PrivateKey{}, ErrInvalidCredential
}
