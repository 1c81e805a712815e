// Package action implements named, schema-typed agent capabilities and the
// dispatcher that runs them.
//
// An action is declared through an immutable Builder:
//
//	lookup, err := action.New("lookup_order").
//		Description("Look up an order by id").
//		Input(schema.Object(map[string]*schema.Schema{"id": schema.String()}, "id")).
//		Options(func(o *action.Options) {
//			o.Timeout = 2 * time.Second
//			o.Retries = 2
//		}).
//		Execute(func(ctx context.Context, in action.Input) (core.ActionResult, error) {
//			return core.ActionResult{Output: map[string]any{"status": "shipped"}}, nil
//		}).
//		Build()
//
// Dispatch semantics:
//   - Unknown names fail with NotFound, disabled actions with Disabled and
//     modes outside Options.CanRun with ModeNotAllowed
//   - Arguments are parsed against the input schema before the first attempt
//   - Every attempt races a timer; when it fires the attempt is abandoned
//     with a Timeout failure and its context is cancelled
//   - Returned errors and panics are retried up to Options.Retries times and
//     then surfaced as Unknown
//   - A result carrying Error (an expected business failure) is returned as-is
//     and never retried
//
// Retried attempts are not rolled back. Actions with side effects must be
// idempotent if they are configured with retries.
package action
