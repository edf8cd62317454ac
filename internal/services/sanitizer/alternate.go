package sanitizer

import "PVResonance/internal/domain/models"

// Pairs holds accepted BUY and SELL bar indices; Buys[i] opens the trade
// that Sells[i] closes.
type Pairs struct {
	Buys  []int
	Sells []int
}

// Len returns the number of complete pairs.
func (p Pairs) Len() int { return min(len(p.Buys), len(p.Sells)) }

// Alternation is the outcome of merging BUY and SELL candidates.
type Alternation struct {
	Pairs
	DiscardedBuys  []int
	DiscardedSells []int
	TruncatedBuys  []int
	TruncatedSells []int
}

type side int

const (
	sideBuy side = iota
	sideSell
)

// Alternate merges ascending BUY and SELL candidate indices into a strictly
// alternating sequence that starts with a BUY. A candidate at or before the
// last accepted index is discarded; the first one after it is accepted and
// the matched side switches. The merge stops when the side being matched has
// no candidates left, and the longer accepted list is cut to the shorter.
// The inputs are never modified.
func Alternate(buys, sells []int) (*Alternation, error) {
	if len(buys) == 0 {
		return nil, &models.NoSignalError{Missing: models.SignalBuy}
	}
	if len(sells) == 0 {
		return nil, &models.NoSignalError{Missing: models.SignalSell}
	}

	out := &Alternation{}
	bi, si := 0, 0
	last := -1
	want := sideBuy
	for {
		if want == sideBuy {
			for bi < len(buys) && buys[bi] <= last {
				out.DiscardedBuys = append(out.DiscardedBuys, buys[bi])
				bi++
			}
			if bi == len(buys) {
				break
			}
			last = buys[bi]
			out.Buys = append(out.Buys, last)
			bi++
			want = sideSell
			continue
		}
		for si < len(sells) && sells[si] <= last {
			out.DiscardedSells = append(out.DiscardedSells, sells[si])
			si++
		}
		if si == len(sells) {
			break
		}
		last = sells[si]
		out.Sells = append(out.Sells, last)
		si++
		want = sideBuy
	}
	// candidates never reached once the other side ran out
	out.DiscardedBuys = append(out.DiscardedBuys, buys[bi:]...)
	out.DiscardedSells = append(out.DiscardedSells, sells[si:]...)

	n := out.Len()
	if len(out.Buys) > n {
		out.TruncatedBuys = append(out.TruncatedBuys, out.Buys[n:]...)
		out.Buys = out.Buys[:n]
	}
	if len(out.Sells) > n {
		out.TruncatedSells = append(out.TruncatedSells, out.Sells[n:]...)
		out.Sells = out.Sells[:n]
	}
	return out, nil
}
