package flow

import (
	"log/slog"
	"sort"
)

// ProgressFunc receives structured step events from the executor: stage
// start/end, checkpoint saves, suspensions, resumes. Nil disables emission.
type ProgressFunc func(event map[string]any)

// SlogProgress adapts a slog.Logger into a progress sink. The "event" key
// becomes the message; remaining keys become attributes in sorted order.
func SlogProgress(l *slog.Logger) ProgressFunc {
	return func(event map[string]any) {
		if l == nil {
			return
		}
		msg, _ := event["event"].(string)
		keys := make([]string, 0, len(event))
		for k := range event {
			if k != "event" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		attrs := make([]any, 0, len(keys)*2)
		for _, k := range keys {
			attrs = append(attrs, k, event[k])
		}
		l.Info(msg, attrs...)
	}
}
