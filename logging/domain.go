package logging

import "time"

type actionCallLogger interface {
	LogActionCall(action, mode string, attempts int, dur time.Duration, err error)
}

type generationLogger interface {
	LogGeneration(model string, round int, dur time.Duration, err error)
}

type timerLogger interface {
	StartTimer(op string) func()
}

type exitStepLogger interface {
	LogExitStep(step string, dur time.Duration, err error)
}

// ActionCall records an action dispatch on l, using the structured form when
// l supports it.
func ActionCall(l Logger, action, mode string, attempts int, dur time.Duration, err error) {
	if al, ok := l.(actionCallLogger); ok {
		al.LogActionCall(action, mode, attempts, dur, err)
		return
	}
	if err != nil {
		OrNoOp(l).Error("action.failed", "action", action, "mode", mode, "attempts", attempts, "duration", dur, "error", err)
		return
	}
	OrNoOp(l).Info("action.completed", "action", action, "mode", mode, "attempts", attempts, "duration", dur)
}

// Generation records one generation round on l.
func Generation(l Logger, model string, round int, dur time.Duration, err error) {
	if gl, ok := l.(generationLogger); ok {
		gl.LogGeneration(model, round, dur, err)
		return
	}
	if err != nil {
		OrNoOp(l).Error("generation.failed", "model", model, "round", round, "duration", dur, "error", err)
		return
	}
	OrNoOp(l).Info("generation.completed", "model", model, "round", round, "duration", dur)
}

// ExitStep records the settlement of a shutdown step on l.
func ExitStep(l Logger, step string, dur time.Duration, err error) {
	if el, ok := l.(exitStepLogger); ok {
		el.LogExitStep(step, dur, err)
		return
	}
	if err != nil {
		OrNoOp(l).Warn("shutdown.step.failed", "step", step, "duration", dur, "error", err)
		return
	}
	OrNoOp(l).Info("shutdown.step.settled", "step", step, "duration", dur)
}

// StartTimer starts timing op on l. The returned function records the
// elapsed duration.
func StartTimer(l Logger, op string) func() {
	if tl, ok := l.(timerLogger); ok {
		return tl.StartTimer(op)
	}
	start := time.Now()
	return func() { OrNoOp(l).Info("operation.completed", "operation", op, "duration", time.Since(start)) }
}
