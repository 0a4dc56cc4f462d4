package state

// DeltaEncode stores the first value followed by successive differences.
func DeltaEncode(values []int64) []int64 {
	if len(values) == 0 {
		return nil
	}

	out := make([]int64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i] - values[i-1]
	}
	return out
}

func DeltaDecode(deltas []int64) []int64 {
	if len(deltas) == 0 {
		return nil
	}

	out := make([]int64, len(deltas))
	out[0] = deltas[0]
	for i := 1; i < len(deltas); i++ {
		out[i] = out[i-1] + deltas[i]
	}
	return out
}
