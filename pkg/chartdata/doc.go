/*
Package chartdata is the data-reduction pipeline between stored telemetry
samples and the chart renderer.

Charts collect samples every few seconds, indefinitely. Handing tens of
thousands of raw points to a renderer makes charts slow and unreadable, so
every chart request runs this pipeline:

	raw samples
	   → NormalizeTimestamp  (heterogeneous timestamp strings → epoch ms)
	   → Smooth              (dual-pass EMA, optional, suppresses noise)
	   → Downsample          (LTTB, fixed visual point budget)
	   → AxisMax / AxisMaxAll (stable "nice" Y-axis ceiling)

Every function here is pure: no I/O, no shared state, no clock reads.
Identical inputs always produce identical outputs, which makes the pipeline
safe to re-run on every refresh tick and trivially safe for concurrent use.

The pipeline trusts its caller to supply chronologically ordered points;
unordered input produces meaningless (but non-crashing) output.

# Why LTTB?

Naive every-Nth-point sampling silently drops transient spikes, which is the
one thing an operator looking at a CPU chart must never lose. The
largest-triangle-three-buckets algorithm keeps, per bucket, the point that
preserves the most visual shape relative to its neighbors, so a reduced
chart still shows the peaks and valleys of the full data.

# Why a dual-pass EMA?

A single forward exponential moving average lags: smoothed peaks land later
and lower than the real ones. Running the same filter backward over the
reversed data and averaging both passes cancels the lag in each direction
while still attenuating noise.
*/
package chartdata
