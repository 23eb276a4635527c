package domain

import "time"

// PriceLevel is a single price+size entry in an orderbook.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderbookSnapshot is a depth snapshot of bids and asks for one symbol on
// one venue. Bids are sorted best-first, asks likewise.
type OrderbookSnapshot struct {
	Exchange  string
	Symbol    string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// BestBid returns the top-of-book bid price, or 0 when the book is empty.
func (s OrderbookSnapshot) BestBid() float64 {
	if len(s.Bids) == 0 {
		return 0
	}
	return s.Bids[0].Price
}

// BestAsk returns the top-of-book ask price, or 0 when the book is empty.
func (s OrderbookSnapshot) BestAsk() float64 {
	if len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].Price
}

// AvgTopSize returns the average level size across the top n levels of both
// sides. Used by the execution-cost model as the book-depth reference.
func (s OrderbookSnapshot) AvgTopSize(n int) float64 {
	var total float64
	var count int
	for i, l := range s.Bids {
		if i >= n {
			break
		}
		total += l.Size
		count++
	}
	for i, l := range s.Asks {
		if i >= n {
			break
		}
		total += l.Size
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// Ticker is a top-of-book quote for one symbol on one venue, in the venue's
// native quote currency.
type Ticker struct {
	Exchange      string
	Symbol        string
	Bid           float64
	Ask           float64
	Last          float64
	QuoteCurrency string
	Timestamp     time.Time
}
