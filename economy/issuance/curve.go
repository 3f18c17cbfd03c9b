package issuance

// RawLoadIndex computes the unsmoothed load index from §4.8 step 2's
// signals: busier queues and scarcer agents raise load, abundant capacity
// lowers it. Mirrors pricing.Quote's shape (queue-pressure term plus a
// capacity discount) since both translate the same capacity signals into a
// single scalar, just for different downstream curves.
func RawLoadIndex(signals LoadSignals) float64 {
	load := float64(signals.Queued)
	if signals.ActiveAgents > 0 {
		load += float64(signals.Queued) / float64(signals.ActiveAgents)
	}
	capacity := signals.CPUCapacity + signals.GPUCapacity
	if capacity > 0 {
		load /= (1 + capacity/10)
	}
	if load < 0 {
		load = 0
	}
	return load
}

// Smooth applies the §4.8 step 3 exponential smoothing: smoothed = α·raw +
// (1−α)·prevSmoothed.
func Smooth(alpha, raw, prevSmoothed float64) float64 {
	if alpha <= 0 {
		alpha = DefaultAlpha
	}
	return alpha*raw + (1-alpha)*prevSmoothed
}

// DailyPool derives the §4.8 step 4 pool size from the smoothed load index
// via a monotonic linear curve bounded by [Min, Max].
func DailyPool(params CurveParams, smoothed float64) float64 {
	if params.MaxDailyPoolTokens <= 0 {
		params = DefaultCurveParams()
	}
	pool := params.MinDailyPoolTokens + params.Slope*smoothed
	if pool < params.MinDailyPoolTokens {
		pool = params.MinDailyPoolTokens
	}
	if pool > params.MaxDailyPoolTokens {
		pool = params.MaxDailyPoolTokens
	}
	return pool
}

// Allocate derives the §4.8 step 5 hourly allocation: hourly = daily/24,
// split across samples weighted by each account's share of the window's
// total weighted contribution. Accounts with zero contribution receive a
// zero allocation rather than being dropped, so callers can still see them
// in the epoch's allocation list.
func Allocate(dailyPoolTokens float64, samples []ContributionSample) (hourlyTokens float64, allocations []Allocation, totalWeighted float64) {
	hourlyTokens = dailyPoolTokens / 24

	for _, s := range samples {
		totalWeighted += s.WeightedContribution
	}

	allocations = make([]Allocation, 0, len(samples))
	for _, s := range samples {
		var share float64
		if totalWeighted > 0 {
			share = s.WeightedContribution / totalWeighted
		}
		allocations = append(allocations, Allocation{
			AccountID:            s.AccountID,
			WeightedContribution: s.WeightedContribution,
			AllocationShare:      share,
			IssuedTokens:         share * hourlyTokens,
		})
	}
	return hourlyTokens, allocations, totalWeighted
}
