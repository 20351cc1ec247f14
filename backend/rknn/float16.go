package rknn

import "github.com/x448/float16"

var f16LookupTable [65536]float32

func init() {
	// precompute the float16 lookup table for faster conversion to float32
	for i := range f16LookupTable {
		f16LookupTable[i] = float16.Frombits(uint16(i)).Float32()
	}
}

// convertFloat16Buffer converts a raw fp16 buffer to float32 as Go has no
// native fp16 support.
func convertFloat16Buffer(f16Buf []uint16) []float32 {

	f32Buf := make([]float32, len(f16Buf))

	for i, bits := range f16Buf {
		f32Buf[i] = f16LookupTable[bits]
	}

	return f32Buf
}
