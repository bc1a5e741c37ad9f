package pipeline

import "math"

func float32FromBits(bits uint32) float32 { return math.Float32frombits(bits) }
func float32ToBits(v float32) uint32      { return math.Float32bits(v) }
func float64FromBits(bits uint64) float64 { return math.Float64frombits(bits) }
func float64ToBits(v float64) uint64      { return math.Float64bits(v) }
