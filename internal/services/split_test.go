package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func requireShareSums(t *testing.T, res SplitResult) {
	t.Helper()
	var netSum, feeSum int64
	for _, s := range res.Shares {
		require.Equal(t, s.GrossCents, s.FeeCents+s.NetCents, "per-share gross must equal fee + net")
		netSum += s.NetCents
		feeSum += s.FeeCents
	}
	require.Equal(t, res.NetCents, netSum, "share nets must sum to the post-fee net")
	require.Equal(t, res.PlatformFeeCents, feeSum, "share fees must sum to the platform fee")
	require.Equal(t, res.GrossCents, res.PlatformFeeCents+res.NetCents)
}

func TestPlatformFeeRounding(t *testing.T) {
	res := EqualSplit(99, 10, []uuid.UUID{uuid.New()})
	require.Equal(t, int64(10), res.PlatformFeeCents)
	require.Equal(t, int64(89), res.NetCents)

	res = EqualSplit(0, 10, []uuid.UUID{uuid.New()})
	require.Equal(t, int64(0), res.PlatformFeeCents)
	require.Equal(t, int64(0), res.NetCents)

	res = EqualSplit(1, 10, []uuid.UUID{uuid.New()})
	require.Equal(t, int64(0), res.PlatformFeeCents)
	require.Equal(t, int64(1), res.NetCents)
}

func TestEqualSplitTwoWorkers(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	res := EqualSplit(10000, 13, []uuid.UUID{a, b})
	require.Equal(t, int64(1300), res.PlatformFeeCents)
	require.Equal(t, int64(8700), res.NetCents)
	require.Len(t, res.Shares, 2)
	require.Equal(t, int64(4350), res.Shares[0].NetCents)
	require.Equal(t, int64(4350), res.Shares[1].NetCents)
	require.Equal(t, a, res.Shares[0].WorkerID)
	require.Equal(t, b, res.Shares[1].WorkerID)
	requireShareSums(t, res)
}

func TestEqualSplitFirstWorkerAbsorbsRemainder(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	res := EqualSplit(10001, 13, []uuid.UUID{a, b})
	require.Equal(t, int64(1300), res.PlatformFeeCents)
	require.Equal(t, int64(8701), res.NetCents)
	require.Equal(t, int64(4351), res.Shares[0].NetCents)
	require.Equal(t, int64(4350), res.Shares[1].NetCents)
	requireShareSums(t, res)
}

func TestEqualSplitNoWorkers(t *testing.T) {
	res := EqualSplit(10000, 13, nil)
	require.Empty(t, res.Shares)
	require.Equal(t, int64(1300), res.PlatformFeeCents)
}

func TestProportionalSplitByEffort(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	efforts := []WorkerEffort{
		{WorkerID: a, EffortMinutes: 60},
		{WorkerID: b, EffortMinutes: 30},
		{WorkerID: c, EffortMinutes: 30},
	}

	res := ProportionalSplit(10000, 13, efforts)
	require.Equal(t, int64(1300), res.PlatformFeeCents)
	require.Equal(t, int64(8700), res.NetCents)
	require.Len(t, res.Shares, 3)
	require.Equal(t, int64(4350), res.Shares[0].NetCents)
	require.Equal(t, int64(2175), res.Shares[1].NetCents)
	require.Equal(t, int64(2175), res.Shares[2].NetCents)
	require.Equal(t, 50, res.Shares[0].PercentOfWork)
	require.Equal(t, 25, res.Shares[1].PercentOfWork)
	require.Equal(t, 25, res.Shares[2].PercentOfWork)
	requireShareSums(t, res)
}

func TestProportionalSplitZeroEffortWorkerGetsNothing(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	efforts := []WorkerEffort{
		{WorkerID: a, EffortMinutes: 60},
		{WorkerID: b, EffortMinutes: 0},
		{WorkerID: c, EffortMinutes: 60},
	}

	res := ProportionalSplit(9999, 13, efforts)
	require.Equal(t, int64(0), res.Shares[1].NetCents)
	require.Equal(t, int64(0), res.Shares[1].FeeCents)
	require.Equal(t, int64(0), res.Shares[1].GrossCents)
	require.Equal(t, 0, res.Shares[1].PercentOfWork)
	requireShareSums(t, res)
}

func TestProportionalSplitAllZeroFallsBackToEqual(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	efforts := []WorkerEffort{
		{WorkerID: a, EffortMinutes: 0},
		{WorkerID: b, EffortMinutes: 0},
	}

	res := ProportionalSplit(10000, 13, efforts)
	require.Len(t, res.Shares, 2)
	require.Equal(t, int64(4350), res.Shares[0].NetCents)
	require.Equal(t, int64(4350), res.Shares[1].NetCents)
	requireShareSums(t, res)
}

func TestSplitSumsExactAcrossAwkwardAmounts(t *testing.T) {
	amounts := []int64{1, 99, 101, 9999, 10001, 12345, 333333}
	effortSets := [][]int{{1}, {1, 1}, {7, 3}, {50, 25, 25}, {17, 13, 11, 7}, {90, 0, 30}}

	for _, amount := range amounts {
		for _, set := range effortSets {
			efforts := make([]WorkerEffort, len(set))
			ids := make([]uuid.UUID, len(set))
			for i, m := range set {
				ids[i] = uuid.New()
				efforts[i] = WorkerEffort{WorkerID: ids[i], EffortMinutes: m}
			}
			requireShareSums(t, ProportionalSplit(amount, 13, efforts))
			requireShareSums(t, EqualSplit(amount, 10, ids))
		}
	}
}

func TestSoloCompletionEarnings(t *testing.T) {
	solo := SoloCompletionEarnings(15000, 10, 500)
	require.Equal(t, int64(15000), solo.GrossCents)
	require.Equal(t, int64(1500), solo.PlatformFeeCents)
	require.Equal(t, int64(13500), solo.NetCents)
	require.Equal(t, int64(500), solo.BonusCents)
	require.Equal(t, int64(14000), solo.TotalCents)

	noBonus := SoloCompletionEarnings(15000, 10, 0)
	require.Equal(t, int64(13500), noBonus.TotalCents)
}

func TestPartialPayment(t *testing.T) {
	res := PartialPayment(3, 4, 10000, 10)
	require.Equal(t, int64(7500), res.PartialCents)
	require.Equal(t, int64(750), res.PlatformFeeCents)
	require.Equal(t, int64(6750), res.NetCents)
	require.Equal(t, 75, res.PercentComplete)

	none := PartialPayment(0, 4, 10000, 10)
	require.Equal(t, int64(0), none.PartialCents)
	require.Equal(t, 0, none.PercentComplete)

	zeroUnits := PartialPayment(2, 0, 10000, 10)
	require.Equal(t, int64(0), zeroUnits.PartialCents)
}
