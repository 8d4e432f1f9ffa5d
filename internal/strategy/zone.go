package strategy

// InPivotZone reports whether spot is within buffer points of the pivot, both ends inclusive.
func InPivotZone(spot, pivot, buffer float64) bool {
	lo, hi := ZoneBounds(pivot, buffer)
	return spot >= lo && spot <= hi
}

func ZoneBounds(pivot, buffer float64) (lo, hi float64) {
	return pivot - buffer, pivot + buffer
}

// DistanceToPivot is spot minus pivot, rounded for display.
func DistanceToPivot(spot, pivot float64) float64 {
	return Round2(spot - pivot)
}
