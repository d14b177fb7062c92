package core

// MaybeExtend applies the anti-snipe rule: a qualifying action with window
// seconds or less remaining pushes the end time so that exactly window
// seconds remain. Returns the new end time and whether an extension applies.
//
// Cancellations qualify as well as bids, so a sniper cannot cancel to dodge
// the extension. The caller is responsible for checking the auction's
// extendable flag; non-extendable auctions strictly enforce the original
// end time.
func MaybeExtend(now, endTime, window int64) (int64, bool) {
	if window <= 0 || now >= endTime {
		return 0, false
	}
	if endTime-now <= window {
		return now + window, true
	}
	return 0, false
}
