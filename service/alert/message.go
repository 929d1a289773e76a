package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/brojonat/luxabot/service/normalize"
)

// Embed colors.
const (
	ColorTransaction = 16711680 // red
	ColorNFTSale     = 10181046 // purple
)

const (
	titleTransaction = "🔔 New Wallet Transaction"
	titleNFTSale     = "🖼️ NFT Sale"

	footerTimeLayout = "2006-01-02 15:04:05"
)

// Message is the body of a Discord webhook execution.
type Message struct {
	Username string  `json:"username,omitempty"`
	Embeds   []Embed `json:"embeds"`
}

// Embed is one Discord rich embed.
type Embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Color       int     `json:"color"`
	Fields      []Field `json:"fields,omitempty"`
	Footer      Footer  `json:"footer"`
}

// Field is one name/value row in an embed.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Footer is the embed footer.
type Footer struct {
	Text string `json:"text"`
}

// Formatter turns extracted events into Discord messages.
type Formatter struct {
	BotName       string
	ExplorerTxURL string
	Username      string

	// Now defaults to time.Now. Footer timestamps are rendered in its location.
	Now func() time.Time
}

// ExplorerLink returns the block explorer URL for a signature.
func (f *Formatter) ExplorerLink(signature string) string {
	base := f.ExplorerTxURL
	if base == "" {
		base = "https://solscan.io/tx/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + signature
}

// Format builds the alert for ev. NFT sales get a field table; anything else
// gets the generic wallet transaction alert.
func (f *Formatter) Format(ev normalize.Event) *Message {
	embed := Embed{
		Title:       titleTransaction,
		Description: fmt.Sprintf("[View on Solscan](%s)", f.ExplorerLink(ev.Signature)),
		Color:       ColorTransaction,
		Footer:      Footer{Text: f.footer()},
	}

	if ev.IsNFTSale() {
		embed.Title = titleNFTSale
		embed.Color = ColorNFTSale
		embed.Fields = []Field{
			{Name: "Price", Value: formatPrice(ev.PriceSOL), Inline: true},
			{Name: "Mint", Value: orDefault(ev.Mint, "N/A"), Inline: false},
			{Name: "Buyer", Value: orDefault(ev.Buyer, "Unknown"), Inline: true},
			{Name: "Seller", Value: orDefault(ev.Seller, "Unknown"), Inline: true},
			{Name: "Marketplace", Value: orDefault(ev.Marketplace, "Unknown"), Inline: true},
		}
	}

	return &Message{
		Username: f.Username,
		Embeds:   []Embed{embed},
	}
}

func (f *Formatter) footer() string {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	name := f.BotName
	if name == "" {
		name = "LuxaBot"
	}
	return fmt.Sprintf("%s | %s", name, now().Format(footerTimeLayout))
}

func formatPrice(price *float64) string {
	if price == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f SOL", *price)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
