package privacy

import (
	"context"

	"github.com/mdombrov-33/go-promptguard/detector"
)

// promptGuard is the package-level detector instance. Initialized once at
// import time with all pattern-matching and statistical detectors enabled,
// no LLM judge, so every call stays sub-millisecond. Window titles and file
// paths are attacker-influenced text (a browser tab can be named anything)
// and they flow straight into an assistant's context.
var promptGuard = detector.New(
	detector.WithThreshold(0.6),
	detector.WithAllDetectors(),
	detector.WithMaxInputLength(1000),
)

const filteredPlaceholder = "[content filtered for security]"

// SanitizeText replaces text that trips the injection detector with a
// placeholder. Empty input passes through unchanged.
func SanitizeText(text string) string {
	if text == "" {
		return text
	}
	result := promptGuard.Detect(context.Background(), text)
	if !result.Safe {
		return filteredPlaceholder
	}
	return text
}
