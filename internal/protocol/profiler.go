package protocol

import "fmt"

// ValidateProfile checks that events nest properly and that counters never
// go backwards.
func ValidateProfile(events []ProfilerEvent) error {
	var stack []int
	var last int64
	for i, ev := range events {
		if i > 0 && ev.At < last {
			return fmt.Errorf("profile event %d: counter %d before %d", i, ev.At, last)
		}
		last = ev.At
		if ev.Open {
			stack = append(stack, ev.Frame)
			continue
		}
		if len(stack) == 0 {
			return fmt.Errorf("profile event %d: close without open", i)
		}
		top := stack[len(stack)-1]
		if top != ev.Frame {
			return fmt.Errorf("profile event %d: closes frame %d, open frame is %d", i, ev.Frame, top)
		}
		stack = stack[:len(stack)-1]
	}
	if len(stack) != 0 {
		return fmt.Errorf("profile: %d frames left open", len(stack))
	}
	return nil
}
