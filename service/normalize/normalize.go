// Package normalize pulls transaction signatures and NFT sale data out of
// webhook payloads whose shape is not known in advance.
package normalize

// matcher inspects a decoded JSON value and reports whether it recognized the
// envelope. A recognized envelope may still yield an event without a signature.
type matcher struct {
	shape Shape
	match func(payload any) (Event, bool)
}

// matchers are tried in order; the first one that recognizes the payload wins.
// The enhanced NFT and enhanced matchers stay separate so that the nested
// events.nft.signature is never mixed with the element's own signature.
var matchers = []matcher{
	{shape: ShapeEnhancedNFT, match: matchEnhancedNFT},
	{shape: ShapeEnhanced, match: matchEnhanced},
	{shape: ShapeTransactions, match: matchTransactions},
	{shape: ShapeTransaction, match: matchTransaction},
}

// Normalize extracts an Event from an arbitrary decoded JSON value
// (the result of json.Unmarshal into an `any`). It never fails: anything it
// cannot make sense of produces an Event with ShapeUnknown and no signature.
func Normalize(payload any) Event {
	for _, m := range matchers {
		if ev, ok := m.match(payload); ok {
			ev.Shape = m.shape
			return ev
		}
	}
	return Event{Shape: ShapeUnknown}
}

// matchEnhancedNFT handles [{"events":{"nft":{"signature":...,"nfts":[{"mint":...}],...}}}].
func matchEnhancedNFT(payload any) (Event, bool) {
	first, ok := firstObject(payload)
	if !ok {
		return Event{}, false
	}
	nft, ok := object(path(first, "events", "nft"))
	if !ok {
		return Event{}, false
	}
	sig, ok := str(nft["signature"])
	if !ok {
		return Event{}, false
	}

	ev := Event{
		Signature:   sig,
		Buyer:       strOrEmpty(nft["buyer"]),
		Seller:      strOrEmpty(nft["seller"]),
		Marketplace: strOrEmpty(nft["source"]),
	}
	if nfts, ok := nft["nfts"].([]any); ok && len(nfts) > 0 {
		if entry, ok := object(nfts[0]); ok {
			ev.Mint = strOrEmpty(entry["mint"])
		}
	}
	if lamports, ok := positiveNumber(nft["amount"]); ok {
		price := lamports / LamportsPerSOL
		ev.AmountLamports = &lamports
		ev.PriceSOL = &price
	}
	return ev, true
}

// matchEnhanced handles a non-empty top-level array by reading element 0's
// own signature. The array is recognized even when that signature is missing.
func matchEnhanced(payload any) (Event, bool) {
	list, ok := payload.([]any)
	if !ok || len(list) == 0 {
		return Event{}, false
	}
	first, _ := object(list[0])
	return Event{Signature: strOrEmpty(first["signature"])}, true
}

// matchTransactions handles {"transactions":[{"signature":...}, ...]}.
func matchTransactions(payload any) (Event, bool) {
	obj, ok := object(payload)
	if !ok {
		return Event{}, false
	}
	list, ok := obj["transactions"].([]any)
	if !ok || len(list) == 0 {
		return Event{}, false
	}
	first, _ := object(list[0])
	return Event{Signature: strOrEmpty(first["signature"])}, true
}

// matchTransaction handles the legacy {"transaction":{"signature":...}} envelope.
func matchTransaction(payload any) (Event, bool) {
	obj, ok := object(payload)
	if !ok {
		return Event{}, false
	}
	tx, ok := object(obj["transaction"])
	if !ok {
		return Event{}, false
	}
	if _, present := tx["signature"]; !present {
		return Event{}, false
	}
	return Event{Signature: strOrEmpty(tx["signature"])}, true
}

func firstObject(payload any) (map[string]any, bool) {
	list, ok := payload.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	return object(list[0])
}

func object(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok && m != nil
}

// path walks nested objects and returns nil if any step is missing.
func path(v any, keys ...string) any {
	for _, k := range keys {
		m, ok := object(v)
		if !ok {
			return nil
		}
		v = m[k]
	}
	return v
}

// str returns a non-empty string value.
func str(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok && s != ""
}

func strOrEmpty(v any) string {
	s, _ := str(v)
	return s
}

// positiveNumber accepts JSON numbers decoded as float64 (or json.Number)
// and rejects zero, negatives and everything else.
func positiveNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case interface{ Float64() (float64, error) }:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if f <= 0 {
		return 0, false
	}
	return f, true
}
