/**
 * @description
 * Resource accounting for TRON operations. A transfer cannot be broadcast
 * until the rented energy and bandwidth have actually landed on the wallet,
 * so the resources worker compares what the chain reports against the targets
 * computed here.
 */
package domain

import "math"

const (
	// baseTransferBandwidth is the fixed per-transaction overhead on top of
	// the serialized transaction size.
	baseTransferBandwidth = 195
	// minBandwidthRental is the provisioner's minimum rentable bandwidth per
	// order.
	minBandwidthRental = 1000
	// energySlackFactor tolerates the provisioner's imprecise energy
	// accounting: 90% of the target is accepted as delivered.
	energySlackFactor = 0.9
)

// EstimateBandwidth computes the bandwidth needed to broadcast a transaction
// of the given serialized byte length, floored at the provisioner's minimum
// order size.
func EstimateBandwidth(rawTxBytes int) int64 {
	bw := math.Ceil(float64(baseTransferBandwidth + rawTxBytes))
	if bw < minBandwidthRental {
		bw = minBandwidthRental
	}
	return int64(bw)
}

// AvailableResource returns how much of a resource pool is left, never
// negative.
func AvailableResource(limit, used int64) int64 {
	if used >= limit {
		return 0
	}
	return limit - used
}

// ResourcesSatisfied reports whether the wallet's remaining energy and
// bandwidth are enough to run the terminal chain operation. Bandwidth is
// required in full; energy gets the provisioner slack.
func ResourcesSatisfied(energyLeft, bandwidthLeft, targetEnergy, targetBandwidth int64) bool {
	if bandwidthLeft < targetBandwidth {
		return false
	}
	return float64(energyLeft) >= float64(targetEnergy)*energySlackFactor
}
