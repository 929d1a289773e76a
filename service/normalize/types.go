package normalize

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// Shape identifies which upstream envelope a payload was recognized as.
type Shape string

const (
	// ShapeEnhancedNFT is a top-level array whose first element carries an events.nft object.
	ShapeEnhancedNFT Shape = "enhanced_nft"

	// ShapeEnhanced is a top-level array of enriched transactions without NFT data.
	ShapeEnhanced Shape = "enhanced"

	// ShapeTransactions is an object with a "transactions" list.
	ShapeTransactions Shape = "transactions"

	// ShapeTransaction is the legacy object with a single "transaction" object.
	ShapeTransaction Shape = "transaction"

	// ShapeUnknown means no matcher recognized the payload.
	ShapeUnknown Shape = "unknown"
)

// Event is the data pulled out of one inbound webhook payload.
// It lives for a single request and is never stored.
type Event struct {
	Shape Shape

	// Signature is the transaction signature. Empty means nothing to relay.
	Signature string

	// NFT sale fields. Empty strings and nil pointers mean absent.
	Mint           string
	AmountLamports *float64
	PriceSOL       *float64
	Buyer          string
	Seller         string
	Marketplace    string
}

// HasSignature reports whether the event should trigger an alert.
func (e Event) HasSignature() bool {
	return e.Signature != ""
}

// IsNFTSale reports whether the event should be formatted as an NFT sale.
func (e Event) IsNFTSale() bool {
	return e.Signature != "" && e.Mint != ""
}

// Kind returns "nft_sale" or "transaction".
func (e Event) Kind() string {
	if e.IsNFTSale() {
		return "nft_sale"
	}
	return "transaction"
}

// Validate checks that the signature and mint look like base58 Solana values.
// A failure is informational only: upstream providers are trusted and the
// relay forwards whatever signature it extracted.
func (e Event) Validate() error {
	if e.Signature == "" {
		return fmt.Errorf("signature is empty")
	}
	if _, err := solana.SignatureFromBase58(e.Signature); err != nil {
		return fmt.Errorf("invalid signature %q: %w", e.Signature, err)
	}
	if e.Mint != "" {
		if _, err := solana.PublicKeyFromBase58(e.Mint); err != nil {
			return fmt.Errorf("invalid mint %q: %w", e.Mint, err)
		}
	}
	return nil
}
