package detector

import "math"

// goertzel computes the normalized power of one frequency in a sample
// block using the Goertzel algorithm. Cheaper than a full FFT when only a
// handful of probe frequencies are needed.
func goertzel(samples []float64, sampleRateHz, freqHz float64) float64 {
	n := len(samples)
	if n == 0 || sampleRateHz <= 0 || freqHz <= 0 || freqHz >= sampleRateHz/2 {
		return 0
	}

	k := freqHz / sampleRateHz
	w := 2 * math.Pi * k
	coeff := 2 * math.Cos(w)

	var s0, s1, s2 float64
	for _, x := range samples {
		s0 = x + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	power := s1*s1 + s2*s2 - coeff*s1*s2
	return power / float64(n)
}

// totalPower is the mean squared amplitude of the block.
func totalPower(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range samples {
		sum += x * x
	}
	return sum / float64(len(samples))
}

// arcingProbeCount spreads probe frequencies across the band.
const arcingProbeCount = 8

// ArcingSignatureScore estimates how strongly a sample block matches the
// broadband arcing signature: energy spread across the configured band
// relative to total signal energy. Arcing discharges excite the whole
// 1-20 kHz band rather than a single tone, so the score rewards flat,
// elevated band energy.
func ArcingSignatureScore(samples []float64, sampleRateHz, lowHz, highHz float64) float64 {
	if len(samples) == 0 || sampleRateHz <= 0 || lowHz >= highHz {
		return 0
	}
	total := totalPower(samples)
	if total <= 0 {
		return 0
	}

	step := (highHz - lowHz) / float64(arcingProbeCount-1)
	var bandPower float64
	active := 0
	for i := 0; i < arcingProbeCount; i++ {
		p := goertzel(samples, sampleRateHz, lowHz+float64(i)*step)
		bandPower += p
		if p > 0.01*total {
			active++
		}
	}

	// Fraction of signal energy in band, weighted by how many probe
	// bins are active: a single tone is not arcing.
	bandFraction := math.Min(bandPower/(total*float64(arcingProbeCount)), 1.0)
	spread := float64(active) / float64(arcingProbeCount)
	return clampUnit(bandFraction * spread * 4)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// slope fits a least-squares line through equally spaced samples and
// returns its per-sample gradient.
func slope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	fn := float64(n)
	den := fn*sumXX - sumX*sumX
	if den == 0 {
		return 0
	}
	return (fn*sumXY - sumX*sumY) / den
}

// cyclicAmplitude detects alternating rise/fall patterns (loose-connection
// thermal signature). Returns the mean peak-to-trough swing when the
// series alternates direction at least half the time, else 0.
func cyclicAmplitude(values []float64) float64 {
	if len(values) < 6 {
		return 0
	}

	reversals := 0
	var swings []float64
	lastExtreme := values[0]
	prevDelta := 0.0
	for i := 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta == 0 {
			continue
		}
		if prevDelta != 0 && ((delta > 0) != (prevDelta > 0)) {
			reversals++
			swings = append(swings, math.Abs(values[i-1]-lastExtreme))
			lastExtreme = values[i-1]
		}
		prevDelta = delta
	}

	if reversals < (len(values)-1)/2 || len(swings) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range swings {
		sum += s
	}
	return sum / float64(len(swings))
}
