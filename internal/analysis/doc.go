// Package analysis summarizes the per-frame statistics of a finished run.
//
//   - [PowerSpectrum] and [DominantFrequency]: sloshing frequency of a series
//   - [SettleTime]: when the kinetic energy stays below a fraction of its peak
//   - [NewPortrait]: one statistic plotted against another, as text
//
// Series are sampled once per frame, so the sample rate is the frame rate:
//
//	heights := analysis.Series(stats, analysis.MeanHeight)
//	freq, _ := analysis.DominantFrequency(heights, frameRate)
package analysis
