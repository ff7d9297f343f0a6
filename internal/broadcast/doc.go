// Package broadcast implements the single-producer, multi-subscriber fan-out
// used for gamepad events.
//
// The hub keeps the last N messages (default 2048) in a ring. Send never
// blocks; a subscriber that is more than N messages behind receives a
// *LaggedError with the exact number of skipped messages and then resumes
// with the oldest message still retained.
//
// Usage:
//
//	hub := broadcast.NewHub(broadcast.DefaultCapacity)
//	sub := hub.Subscribe()
//	defer sub.Close()
//	for {
//	    msg, err := sub.Recv(ctx)
//	    var lagged *broadcast.LaggedError
//	    if errors.As(err, &lagged) {
//	        continue
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    write(msg)
//	}
package broadcast
