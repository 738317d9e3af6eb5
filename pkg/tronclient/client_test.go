package tronclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/base58"
)

func TestGenerateAccount_AddressRoundTrip(t *testing.T) {
	account, err := GenerateAccount()
	if err != nil {
		t.Fatalf("GenerateAccount: %v", err)
	}
	if !ValidAddress(account.Base58Address) {
		t.Fatalf("generated address %q is not valid", account.Base58Address)
	}
	if !strings.HasPrefix(account.HexAddress, "41") {
		t.Fatalf("hex address %q missing version byte", account.HexAddress)
	}

	derived, err := AddressFromPrivateKey(account.PrivateKey)
	if err != nil {
		t.Fatalf("AddressFromPrivateKey: %v", err)
	}
	if derived != account.Base58Address {
		t.Fatalf("derived address %q does not match generated %q", derived, account.Base58Address)
	}
}

func TestValidAddress_RejectsGarbage(t *testing.T) {
	for _, addr := range []string{"", "not-an-address", "TceSh0rt"} {
		if ValidAddress(addr) {
			t.Fatalf("expected %q to be invalid", addr)
		}
	}
}

func TestToSun(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1", 1000000},
		{"1.5", 1500000},
		{"0.000001", 1},
		{"42.123456", 42123456},
	}
	for _, tc := range cases {
		got, err := ToSun(tc.in)
		if err != nil {
			t.Fatalf("ToSun(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ToSun(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if _, err := ToSun("abc"); err == nil {
		t.Fatal("expected an error for a non-numeric amount")
	}
}

func TestEncodeTransferParameter(t *testing.T) {
	account, err := GenerateAccount()
	if err != nil {
		t.Fatalf("GenerateAccount: %v", err)
	}
	parameter, err := encodeTransferParameter(account.Base58Address, 1500000)
	if err != nil {
		t.Fatalf("encodeTransferParameter: %v", err)
	}
	if len(parameter) != 128 {
		t.Fatalf("expected two 32-byte words, got %d hex chars", len(parameter))
	}

	payload, _, _ := base58.CheckDecode(account.Base58Address)
	if parameter[:64] != "000000000000000000000000"+hex.EncodeToString(payload) {
		t.Fatalf("address word mismatch: %s", parameter[:64])
	}
	if !strings.HasSuffix(parameter, "16e360") {
		t.Fatalf("amount word mismatch: %s", parameter[64:])
	}
}

func TestEncodeTransferParameter_RejectsInvalidRecipient(t *testing.T) {
	if _, err := encodeTransferParameter("not-an-address", 1); err == nil {
		t.Fatal("expected an error for an invalid recipient")
	}
}

func TestSign(t *testing.T) {
	account, err := GenerateAccount()
	if err != nil {
		t.Fatalf("GenerateAccount: %v", err)
	}

	raw := []byte("serialized transaction bytes")
	hash := sha256.Sum256(raw)
	tx := &Transaction{
		TxID:       hex.EncodeToString(hash[:]),
		RawDataHex: hex.EncodeToString(raw),
	}

	if err := Sign(tx, account.PrivateKey); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(tx.Signature) != 1 {
		t.Fatalf("expected one signature, got %d", len(tx.Signature))
	}
	// 65-byte recoverable ECDSA signature.
	if len(tx.Signature[0]) != 130 {
		t.Fatalf("unexpected signature length %d", len(tx.Signature[0]))
	}
}

func TestSign_RejectsTxIDMismatch(t *testing.T) {
	account, err := GenerateAccount()
	if err != nil {
		t.Fatalf("GenerateAccount: %v", err)
	}
	tx := &Transaction{
		TxID:       strings.Repeat("ab", 32),
		RawDataHex: hex.EncodeToString([]byte("different bytes")),
	}
	if err := Sign(tx, account.PrivateKey); err == nil {
		t.Fatal("expected a txID mismatch error")
	}
}

func TestTRC20Balance_SumsMatchingTransfers(t *testing.T) {
	const contract = "TContractAddress"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[
			{"transaction_id":"tx1","value":"5000000","token_info":{"address":"TContractAddress","decimals":6}},
			{"transaction_id":"tx2","value":"2500000","token_info":{"address":"TContractAddress","decimals":6}},
			{"transaction_id":"tx3","value":"9000000","token_info":{"address":"TOtherContract","decimals":6}}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	balance, err := client.TRC20Balance(context.Background(), "TDeposit", contract)
	if err != nil {
		t.Fatalf("TRC20Balance: %v", err)
	}
	if balance != 7.5 {
		t.Fatalf("expected 7.5, got %v", balance)
	}
}

func TestBroadcast_DecodesRejectionMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// "SIGERROR" hex-encoded, as the node reports it.
		w.Write([]byte(`{"result":false,"code":"SIGERROR","message":"5349474552524f52"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.Broadcast(context.Background(), &Transaction{TxID: "abc"})
	if err == nil {
		t.Fatal("expected a rejection error")
	}
	if !strings.Contains(err.Error(), "SIGERROR") {
		t.Fatalf("expected the decoded node message, got %v", err)
	}
}
