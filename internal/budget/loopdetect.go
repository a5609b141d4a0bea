package budget

// LoopDetector maintains a rolling window of the last K (tool_name,
// fingerprint) pairs from assistant-proposed tool calls. If the same pair
// appears twice consecutively, the second call should be intercepted
// before dispatch and served the prior cached result instead.
type LoopDetector struct {
	window []callKey
	k      int
}

type callKey struct {
	toolName    string
	fingerprint string
}

// NewLoopDetector creates a detector retaining the last k calls (k is a
// cap on memory, not the repeat threshold — the threshold is always 2
// consecutive identical calls).
func NewLoopDetector(k int) *LoopDetector {
	if k < 2 {
		k = 2
	}
	return &LoopDetector{k: k}
}

// Check reports whether (toolName, fingerprint) is an immediate repeat of
// the last recorded call, i.e. whether this call should be intercepted.
// It does not itself record the call — call Record after.
func (d *LoopDetector) Check(toolName, fingerprint string) bool {
	if len(d.window) == 0 {
		return false
	}
	last := d.window[len(d.window)-1]
	return last.toolName == toolName && last.fingerprint == fingerprint
}

// Record appends a call to the rolling window, evicting the oldest entry
// once the window exceeds its cap.
func (d *LoopDetector) Record(toolName, fingerprint string) {
	d.window = append(d.window, callKey{toolName, fingerprint})
	if len(d.window) > d.k {
		d.window = d.window[len(d.window)-d.k:]
	}
}

// CacheBreakAnnotation is appended to a served-from-cache result so the
// model sees the repeat was intercepted and is nudged to change strategy.
const CacheBreakAnnotation = "\n\n(cached, loop-break: this is identical to your previous call — change your approach instead of repeating it)"
