/**
 * @description
 * This package provides a client for the TRON ledger over the TronGrid HTTP
 * API. It encapsulates the read paths the polling stages depend on (account
 * activation, balances, resources, token transfer history) and the write path
 * used at finalization (build, locally sign, and broadcast a transaction).
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/crypto: secp256k1 keys, Keccak-256.
 * - github.com/btcsuite/btcd/btcutil/base58: base58check address encoding.
 */
package tronclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/crypto"
)

// addressPrefix is the TRON mainnet address version byte.
const addressPrefix = 0x41

// Client is a client for a TronGrid-compatible node API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new TRON node client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Account is a locally generated keypair with both TRON address encodings.
type Account struct {
	Base58Address string `json:"address"`
	HexAddress    string `json:"hexAddress"`
	PrivateKey    string `json:"privateKey"`
	PublicKey     string `json:"publicKey"`
}

// AccountResources is the node's resource accounting for one address.
type AccountResources struct {
	FreeNetLimit int64 `json:"freeNetLimit"`
	FreeNetUsed  int64 `json:"freeNetUsed"`
	NetLimit     int64 `json:"NetLimit"`
	NetUsed      int64 `json:"NetUsed"`
	EnergyLimit  int64 `json:"EnergyLimit"`
	EnergyUsed   int64 `json:"EnergyUsed"`
}

// Transaction is an unsigned or signed transaction as the node returns it.
// RawData is carried opaquely; the signature covers its hash (the txID).
type Transaction struct {
	TxID       string          `json:"txID"`
	RawData    json.RawMessage `json:"raw_data"`
	RawDataHex string          `json:"raw_data_hex"`
	Visible    bool            `json:"visible,omitempty"`
	Signature  []string        `json:"signature,omitempty"`
}

// SizeBytes returns the serialized byte length of the transaction's raw data.
func (t *Transaction) SizeBytes() int {
	return len(t.RawDataHex) / 2
}

// GenerateAccount creates a fresh secp256k1 keypair and derives its TRON
// address.
func GenerateAccount() (Account, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return Account{}, fmt.Errorf("generate keypair: %w", err)
	}
	ethAddr := crypto.PubkeyToAddress(key.PublicKey)
	return Account{
		Base58Address: base58.CheckEncode(ethAddr.Bytes(), addressPrefix),
		HexAddress:    hex.EncodeToString(append([]byte{addressPrefix}, ethAddr.Bytes()...)),
		PrivateKey:    hex.EncodeToString(crypto.FromECDSA(key)),
		PublicKey:     hex.EncodeToString(crypto.FromECDSAPub(&key.PublicKey)),
	}, nil
}

// AddressFromPrivateKey derives the base58 TRON address for a hex private key.
func AddressFromPrivateKey(privateKeyHex string) (string, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	ethAddr := crypto.PubkeyToAddress(key.PublicKey)
	return base58.CheckEncode(ethAddr.Bytes(), addressPrefix), nil
}

// ValidAddress reports whether addr is a well-formed base58check TRON address.
func ValidAddress(addr string) bool {
	payload, version, err := base58.CheckDecode(addr)
	return err == nil && version == addressPrefix && len(payload) == 20
}

// ToSun converts a decimal TRX/token amount to its 6-decimal integer form.
func ToSun(amount string) (int64, error) {
	f, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return int64(math.Round(f * 1e6)), nil
}

type accountListResponse struct {
	Data []struct {
		Balance int64               `json:"balance"`
		TRC20   []map[string]string `json:"trc20"`
	} `json:"data"`
}

type trc20TxResponse struct {
	Data []struct {
		TransactionID string `json:"transaction_id"`
		Value         string `json:"value"`
		TokenInfo     struct {
			Address  string `json:"address"`
			Decimals int    `json:"decimals"`
		} `json:"token_info"`
	} `json:"data"`
}

// IsActive reports whether the address exists on chain. An account with no
// on-chain record has never been activated and cannot receive resources.
func (c *Client) IsActive(ctx context.Context, address string) (bool, error) {
	var resp accountListResponse
	if err := c.get(ctx, "/v1/accounts/"+address, &resp); err != nil {
		return false, err
	}
	return len(resp.Data) > 0, nil
}

// TRXBalance returns the address balance in sun. Inactive accounts report
// zero.
func (c *Client) TRXBalance(ctx context.Context, address string) (int64, error) {
	var resp accountListResponse
	if err := c.get(ctx, "/v1/accounts/"+address, &resp); err != nil {
		return 0, err
	}
	if len(resp.Data) == 0 {
		return 0, nil
	}
	return resp.Data[0].Balance, nil
}

// TRC20Balance sums the address's inbound token transfers for the given
// contract and returns the total in whole-token units. Deposit wallets are
// single-use, so transfer history is the balance.
func (c *Client) TRC20Balance(ctx context.Context, address, contract string) (float64, error) {
	var resp trc20TxResponse
	if err := c.get(ctx, "/v1/accounts/"+address+"/transactions/trc20", &resp); err != nil {
		return 0, err
	}

	total := new(big.Int)
	decimals := 0
	for _, tx := range resp.Data {
		if tx.TokenInfo.Address != contract {
			continue
		}
		val, ok := new(big.Int).SetString(tx.Value, 10)
		if !ok {
			continue
		}
		total.Add(total, val)
		decimals = tx.TokenInfo.Decimals
	}
	if total.Sign() == 0 {
		return 0, nil
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	result, _ := new(big.Float).Quo(new(big.Float).SetInt(total), scale).Float64()
	return result, nil
}

// LastTRC20Transaction returns the most recent token transaction id for the
// address and contract, or "" when there is none.
func (c *Client) LastTRC20Transaction(ctx context.Context, address, contract string) (string, error) {
	var resp trc20TxResponse
	if err := c.get(ctx, "/v1/accounts/"+address+"/transactions/trc20?contract_address="+contract, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", nil
	}
	return resp.Data[0].TransactionID, nil
}

// Resources returns the node's resource accounting for the address.
func (c *Client) Resources(ctx context.Context, address string) (AccountResources, error) {
	var resources AccountResources
	err := c.post(ctx, "/wallet/getaccountresource", map[string]any{
		"address": address,
		"visible": true,
	}, &resources)
	return resources, err
}

// CreateTRXTransfer builds an unsigned native transfer.
func (c *Client) CreateTRXTransfer(ctx context.Context, from, to string, amountSun int64) (*Transaction, error) {
	var tx Transaction
	err := c.post(ctx, "/wallet/createtransaction", map[string]any{
		"owner_address": from,
		"to_address":    to,
		"amount":        amountSun,
		"visible":       true,
	}, &tx)
	if err != nil {
		return nil, err
	}
	if tx.TxID == "" {
		return nil, fmt.Errorf("node returned no transaction for transfer %s -> %s", from, to)
	}
	return &tx, nil
}

type triggerResponse struct {
	Result struct {
		Result  bool   `json:"result"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"result"`
	Transaction Transaction `json:"transaction"`
}

// CreateTRC20Transfer builds an unsigned transfer(address,uint256) contract
// call moving amountSun tokens from owner to recipient.
func (c *Client) CreateTRC20Transfer(ctx context.Context, owner, contract, recipient string, amountSun, feeLimit int64) (*Transaction, error) {
	parameter, err := encodeTransferParameter(recipient, amountSun)
	if err != nil {
		return nil, err
	}
	var resp triggerResponse
	err = c.post(ctx, "/wallet/triggersmartcontract", map[string]any{
		"owner_address":     owner,
		"contract_address":  contract,
		"function_selector": "transfer(address,uint256)",
		"parameter":         parameter,
		"fee_limit":         feeLimit,
		"visible":           true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Result.Result {
		return nil, fmt.Errorf("trigger contract %s: %s %s", contract, resp.Result.Code, decodeNodeMessage(resp.Result.Message))
	}
	return &resp.Transaction, nil
}

// Sign signs the transaction in place with the given hex private key. The
// TRON signature is ECDSA over the txID, which is the SHA-256 of the
// serialized raw data; the txID from the node is verified against the raw
// bytes before signing.
func Sign(tx *Transaction, privateKeyHex string) error {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}
	raw, err := hex.DecodeString(tx.RawDataHex)
	if err != nil {
		return fmt.Errorf("decode raw transaction: %w", err)
	}
	hash := sha256.Sum256(raw)
	if tx.TxID != "" && tx.TxID != hex.EncodeToString(hash[:]) {
		return fmt.Errorf("transaction id mismatch: node reported %s", tx.TxID)
	}
	sig, err := crypto.Sign(hash[:], key)
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	tx.TxID = hex.EncodeToString(hash[:])
	tx.Signature = append(tx.Signature, hex.EncodeToString(sig))
	return nil
}

type broadcastResponse struct {
	Result  bool   `json:"result"`
	TxID    string `json:"txid"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Broadcast submits a signed transaction and returns its id.
func (c *Client) Broadcast(ctx context.Context, tx *Transaction) (string, error) {
	var resp broadcastResponse
	if err := c.post(ctx, "/wallet/broadcasttransaction", tx, &resp); err != nil {
		return "", err
	}
	if !resp.Result {
		return "", fmt.Errorf("broadcast %s rejected: %s %s", tx.TxID, resp.Code, decodeNodeMessage(resp.Message))
	}
	if resp.TxID != "" {
		return resp.TxID, nil
	}
	return tx.TxID, nil
}

// encodeTransferParameter ABI-encodes the (address, uint256) argument pair
// for transfer calls.
func encodeTransferParameter(recipient string, amountSun int64) (string, error) {
	payload, version, err := base58.CheckDecode(recipient)
	if err != nil || version != addressPrefix || len(payload) != 20 {
		return "", fmt.Errorf("invalid recipient address %q", recipient)
	}
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("%064s", hex.EncodeToString(payload)))
	buf.WriteString(fmt.Sprintf("%064x", amountSun))
	return buf.String(), nil
}

// decodeNodeMessage converts the node's hex-encoded error strings to text.
func decodeNodeMessage(msg string) string {
	decoded, err := hex.DecodeString(msg)
	if err != nil {
		return msg
	}
	return string(decoded)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("TRON-PRO-API-KEY", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("node returned status %d for %s", resp.StatusCode, req.URL.Path)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response %s: %w", req.URL.Path, err)
	}
	return nil
}
