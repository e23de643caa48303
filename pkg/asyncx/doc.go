// Package asyncx holds the small set of context-aware concurrency helpers the
// service needs in its request path.
//
// # Waiting
//
// [Sleep] is a cancellable wait. The OTP verification flow uses it for
// progressive delays so a client that disconnects does not pin a goroutine:
//
//	if err := asyncx.Sleep(ctx, 2*time.Second); err != nil {
//	    return err // ctx cancelled
//	}
//
// # Retries
//
// [RetryWithBackoff] calls a function until it succeeds or the attempt
// budget is spent, doubling the wait between tries. SMS delivery goes
// through it:
//
//	_, err := asyncx.RetryWithBackoff(ctx, 3, 200*time.Millisecond,
//	    func(ctx context.Context) (struct{}, error) {
//	        return struct{}{}, sender.SendSMS(ctx, msg)
//	    })
package asyncx
