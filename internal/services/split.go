package services

import (
	"math"

	"github.com/google/uuid"
)

// WorkerShare is one worker's slice of an appointment's earnings. The
// per-share amounts always satisfy GrossCents = FeeCents + NetCents.
type WorkerShare struct {
	WorkerID      uuid.UUID
	GrossCents    int64
	FeeCents      int64
	NetCents      int64
	PercentOfWork int
}

// SplitResult is the outcome of dividing an appointment's price among its
// workers. Sum of share nets equals NetCents and sum of share fees equals
// PlatformFeeCents, exactly.
type SplitResult struct {
	GrossCents       int64
	PlatformFeeCents int64
	NetCents         int64
	Shares           []WorkerShare
}

// WorkerEffort pairs a worker with their claimed effort minutes. Callers
// pass these in assignment order; split results preserve that order.
type WorkerEffort struct {
	WorkerID      uuid.UUID
	EffortMinutes int
}

// SoloEarnings is the recalculated pay for a worker finishing a
// multi-worker job alone.
type SoloEarnings struct {
	GrossCents       int64
	PlatformFeeCents int64
	NetCents         int64
	BonusCents       int64
	TotalCents       int64
}

// PartialResult is a pro-rated payment for partially completed work.
type PartialResult struct {
	PartialCents     int64
	PlatformFeeCents int64
	NetCents         int64
	PercentComplete  int
}

func platformFee(totalCents int64, feePercent float64) int64 {
	return int64(math.Round(float64(totalCents) * feePercent / 100))
}

// EqualSplit divides totalCents evenly among the given workers after taking
// the platform fee. The first worker absorbs the division remainder so the
// share nets always sum to the post-fee net.
func EqualSplit(totalCents int64, feePercent float64, workerIDs []uuid.UUID) SplitResult {
	fee := platformFee(totalCents, feePercent)
	net := totalCents - fee

	res := SplitResult{
		GrossCents:       totalCents,
		PlatformFeeCents: fee,
		NetCents:         net,
	}
	n := int64(len(workerIDs))
	if n == 0 {
		return res
	}

	base := net / n
	remainder := net - base*n
	percent := int(math.Round(100 / float64(n)))

	res.Shares = make([]WorkerShare, 0, n)
	for i, id := range workerIDs {
		share := WorkerShare{WorkerID: id, NetCents: base, PercentOfWork: percent}
		if i == 0 {
			share.NetCents += remainder
		}
		res.Shares = append(res.Shares, share)
	}
	allocateFees(&res)
	return res
}

// ProportionalSplit divides the post-fee net by each worker's share of the
// total effort minutes. The last worker with nonzero effort absorbs the
// rounding remainder; zero-effort workers receive exactly zero. All-zero
// effort falls back to an equal split.
func ProportionalSplit(totalCents int64, feePercent float64, efforts []WorkerEffort) SplitResult {
	var totalEffort int
	for _, e := range efforts {
		totalEffort += e.EffortMinutes
	}
	if totalEffort == 0 {
		ids := make([]uuid.UUID, 0, len(efforts))
		for _, e := range efforts {
			ids = append(ids, e.WorkerID)
		}
		return EqualSplit(totalCents, feePercent, ids)
	}

	fee := platformFee(totalCents, feePercent)
	net := totalCents - fee

	res := SplitResult{
		GrossCents:       totalCents,
		PlatformFeeCents: fee,
		NetCents:         net,
		Shares:           make([]WorkerShare, 0, len(efforts)),
	}

	lastNonzero := -1
	for i, e := range efforts {
		if e.EffortMinutes > 0 {
			lastNonzero = i
		}
	}

	var allocated int64
	for i, e := range efforts {
		share := WorkerShare{WorkerID: e.WorkerID}
		if e.EffortMinutes > 0 {
			ratio := float64(e.EffortMinutes) / float64(totalEffort)
			share.PercentOfWork = int(math.Round(ratio * 100))
			if i == lastNonzero {
				share.NetCents = net - allocated
			} else {
				share.NetCents = int64(math.Round(ratio * float64(net)))
			}
			allocated += share.NetCents
		}
		res.Shares = append(res.Shares, share)
	}
	allocateFees(&res)
	return res
}

// allocateFees distributes the platform fee across shares in proportion to
// each net, so per-share gross = fee + net holds without losing cents. The
// last share with a nonzero net absorbs the fee remainder.
func allocateFees(res *SplitResult) {
	if res.NetCents <= 0 || res.PlatformFeeCents == 0 {
		for i := range res.Shares {
			res.Shares[i].GrossCents = res.Shares[i].NetCents + res.Shares[i].FeeCents
		}
		return
	}

	lastNonzero := -1
	for i, s := range res.Shares {
		if s.NetCents > 0 {
			lastNonzero = i
		}
	}

	var allocated int64
	for i := range res.Shares {
		s := &res.Shares[i]
		if s.NetCents > 0 {
			if i == lastNonzero {
				s.FeeCents = res.PlatformFeeCents - allocated
			} else {
				ratio := float64(s.NetCents) / float64(res.NetCents)
				s.FeeCents = int64(math.Round(ratio * float64(res.PlatformFeeCents)))
			}
			allocated += s.FeeCents
		}
		s.GrossCents = s.NetCents + s.FeeCents
	}
}

// SoloCompletionEarnings recalculates pay for a worker who finishes a
// multi-worker appointment alone. The regular single-worker fee percent
// applies to the full price, and the flat bonus is added on top of net.
func SoloCompletionEarnings(jobPriceCents int64, regularFeePercent float64, soloBonusCents int64) SoloEarnings {
	fee := platformFee(jobPriceCents, regularFeePercent)
	net := jobPriceCents - fee
	return SoloEarnings{
		GrossCents:       jobPriceCents,
		PlatformFeeCents: fee,
		NetCents:         net,
		BonusCents:       soloBonusCents,
		TotalCents:       net + soloBonusCents,
	}
}

// PartialPayment pro-rates a price by completed work units. The display
// percentage is rounded; monetary values use the raw ratio.
func PartialPayment(completedUnits, totalUnits int, totalPriceCents int64, feePercent float64) PartialResult {
	var ratio float64
	if totalUnits > 0 {
		ratio = float64(completedUnits) / float64(totalUnits)
	}
	partial := int64(math.Round(float64(totalPriceCents) * ratio))
	fee := platformFee(partial, feePercent)
	return PartialResult{
		PartialCents:     partial,
		PlatformFeeCents: fee,
		NetCents:         partial - fee,
		PercentComplete:  int(math.Round(ratio * 100)),
	}
}
