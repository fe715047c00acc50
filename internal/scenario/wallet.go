// internal/scenario/wallet.go
package scenario

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Wallet is a named account taking part in a scenario.
type Wallet struct {
	Name       string
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
}

// NewWallet создаёт кошелёк из base58-encoded приватного ключа.
func NewWallet(name, privateKeyBase58 string) (*Wallet, error) {
	privateKey, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("wallet %q: invalid private key: %w", name, err)
	}
	return &Wallet{
		Name:       name,
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
	}, nil
}

// GenerateWallet создаёт кошелёк со случайным ключом.
func GenerateWallet(name string) *Wallet {
	w := solana.NewWallet()
	return &Wallet{
		Name:       name,
		PrivateKey: w.PrivateKey,
		PublicKey:  w.PublicKey(),
	}
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Wallet) String() string {
	return w.PublicKey.String()
}

// resolveWallets builds every declared wallet, then generates one for each
// referenced name that was not declared.
func resolveWallets(specs []WalletSpec, referenced []string) (map[string]*Wallet, error) {
	wallets := make(map[string]*Wallet)
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("wallet without name")
		}
		if _, dup := wallets[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate wallet %q", spec.Name)
		}
		if spec.PrivateKey == "" {
			wallets[spec.Name] = GenerateWallet(spec.Name)
			continue
		}
		w, err := NewWallet(spec.Name, spec.PrivateKey)
		if err != nil {
			return nil, err
		}
		wallets[spec.Name] = w
	}

	for _, name := range referenced {
		if name == "" {
			continue
		}
		if _, ok := wallets[name]; !ok {
			wallets[name] = GenerateWallet(name)
		}
	}
	return wallets, nil
}
