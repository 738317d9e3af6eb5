package domain

// Wallet is a generated keypair with its TRON address forms. Ephemeral
// deposit wallets of this shape are cached under a TTL until the transfer is
// finalized; the private key never leaves the service.
type Wallet struct {
	Address    string `json:"address"`
	HexAddress string `json:"hexAddress"`
	PrivateKey string `json:"privateKey"`
	PublicKey  string `json:"publicKey"`
}

// Public returns a copy safe to return to callers, with the private material
// stripped.
func (w Wallet) Public() Wallet {
	w.PrivateKey = ""
	return w
}
