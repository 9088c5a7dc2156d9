package audio

import "math"

// maxPCM16 is the maximum absolute amplitude of 16-bit signed PCM, used to
// normalise RMS energy into [0, 1].
const maxPCM16 = 32768.0

// Energy computes the normalised root-mean-square level of a 16-bit signed
// little-endian PCM frame. The result is in [0, 1]: 0 for digital silence,
// 1 for a full-scale square wave. Trailing odd bytes are ignored.
//
// Energy is the scalar the activity monitor thresholds against; it is also
// forwarded as the non-authoritative level signal for UI meters.
func Energy(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum/float64(n)) / maxPCM16
}

// Int16sToBytes converts a slice of int16 PCM samples to interleaved
// little-endian bytes.
func Int16sToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// BytesToInt16s converts interleaved little-endian PCM bytes to int16 samples.
// Trailing odd bytes are ignored.
func BytesToInt16s(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(b[2*i]) | int16(b[2*i+1])<<8
	}
	return out
}
