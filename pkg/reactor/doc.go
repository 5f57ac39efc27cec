// Package reactor is the entry point of the client framework.
//
// Connect opens the transport session described by a Config, follows the
// platform structure and returns once the first structure frame has been
// received. FindAttribute then resolves topics or glob patterns against the
// structure and turns them into typed attribute handles:
//
//	r, err := reactor.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer r.Close()
//
//	b, err := r.FindAttribute("pza/tester/boolean/rw").TryIntoBoolean(ctx)
//	if err != nil {
//		return err
//	}
//	err = b.Set(ctx, true)
//
// Handles opened on the same topic share one attribute core and one
// inbound subscription.
package reactor
