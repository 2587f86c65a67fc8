package pcm

// Normalize converts a decoded clip to the target format. If the clip already
// matches, it is returned unchanged (zero allocation). Conversion order:
// resample first, then channel convert — this avoids resampling stereo data
// when the target is mono.
func Normalize(c Clip, target Format) Clip {
	if c.Format.SampleRate == target.SampleRate && c.Format.Channels == target.Channels {
		return Clip{Samples: c.Samples, Format: target}
	}

	samples := c.Samples
	rate := c.Format.SampleRate
	channels := c.Format.Channels

	if rate != target.SampleRate {
		if channels == 1 {
			samples = ResampleMono(samples, rate, target.SampleRate)
		} else {
			samples = ResampleStereo(samples, rate, target.SampleRate)
		}
		rate = target.SampleRate
	}

	if channels != target.Channels {
		if channels == 1 && target.Channels == 2 {
			samples = MonoToStereo(samples)
		} else if channels == 2 && target.Channels == 1 {
			samples = StereoToMono(samples)
		}
	}

	return Clip{Samples: samples, Format: target}
}

// ResampleMono resamples mono int16 samples from srcRate to dstRate using
// linear interpolation. If srcRate == dstRate the input is returned unchanged.
func ResampleMono(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) < 1 {
		return samples
	}
	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]int16, dstLen)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstLen {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := samples[srcIdx]
		s1 := s0
		if srcIdx+1 < len(samples) {
			s1 = samples[srcIdx+1]
		}
		out[i] = int16(float64(s0)*(1-frac) + float64(s1)*frac)
	}
	return out
}

// ResampleStereo resamples interleaved stereo int16 samples from srcRate to
// dstRate using linear interpolation, operating on L+R pairs so the channels
// stay aligned. If srcRate == dstRate the input is returned unchanged.
func ResampleStereo(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) < 2 {
		return samples
	}
	srcFrames := len(samples) / 2
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]int16, dstFrames*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		l0 := samples[srcIdx*2]
		r0 := samples[srcIdx*2+1]
		l1, r1 := l0, r0
		if srcIdx+1 < srcFrames {
			l1 = samples[(srcIdx+1)*2]
			r1 = samples[(srcIdx+1)*2+1]
		}

		out[i*2] = int16(float64(l0)*(1-frac) + float64(l1)*frac)
		out[i*2+1] = int16(float64(r0)*(1-frac) + float64(r1)*frac)
	}
	return out
}

// MonoToStereo duplicates each mono sample into an L+R pair.
func MonoToStereo(samples []int16) []int16 {
	out := make([]int16, len(samples)*2)
	for i, s := range samples {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

// StereoToMono averages each interleaved L+R pair into one mono sample.
// Uses int32 arithmetic to prevent overflow; the average of two int16 values
// always fits back into int16.
func StereoToMono(samples []int16) []int16 {
	frames := len(samples) / 2
	out := make([]int16, frames)
	for i := range frames {
		out[i] = int16((int32(samples[i*2]) + int32(samples[i*2+1])) / 2)
	}
	return out
}

// ClampSample saturates a widened sample to the int16 range. Saturation is
// bounded and predictable; integer wraparound would produce audible spikes.
func ClampSample(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
