package hcs

import (
	"errors"
	"testing"
)

func TestNewClientRequiresOperator(t *testing.T) {
	if _, err := NewClient(ClientOptions{Network: "testnet"}); err == nil {
		t.Fatal("missing operator credentials should be an error")
	}
}

func TestNewClientUnknownNetwork(t *testing.T) {
	_, err := NewClient(ClientOptions{Network: "localnet", OperatorID: "0.0.2", OperatorKey: "x"})
	if err == nil {
		t.Fatal("unknown network should be an error")
	}
}

func TestParseOperatorKeyGarbage(t *testing.T) {
	if _, err := parseOperatorKey("not-a-key"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestParseOperatorKeyStripsHexPrefix(t *testing.T) {
	// Both spellings must resolve to the same decoder input.
	_, errPlain := parseOperatorKey("deadbeef")
	_, errPrefixed := parseOperatorKey("0xdeadbeef")
	if (errPlain == nil) != (errPrefixed == nil) {
		t.Fatalf("0x-prefixed and plain keys should behave identically: %v vs %v", errPlain, errPrefixed)
	}
}
