package pool

import "time"

// VestingRateUnit is the lock time added per basis point of requested daily
// rate: a 50 bps vote locks the deposit for 50 * 12h = 25 days. Demanding a
// higher yield costs a longer minimum commitment.
const VestingRateUnit = 12 * time.Hour

// UnlockTime computes the vesting deadline for a deposit made now at rateBps.
func UnlockTime(now time.Time, rateBps uint64) time.Time {
	return now.Add(time.Duration(rateBps) * VestingRateUnit)
}

// ExtendUnlock merges a new deposit's candidate unlock into the position's
// existing one. The result never moves backwards: a later deposit at a lower
// rate keeps the longer existing lock.
func ExtendUnlock(existing, candidate time.Time) time.Time {
	if candidate.After(existing) {
		return candidate
	}
	return existing
}
