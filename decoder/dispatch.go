package decoder

import (
	"context"

	"github.com/ectf-2025/satdecoder/led"
	"github.com/ectf-2025/satdecoder/secrets"
	"github.com/ectf-2025/satdecoder/transport"
	"github.com/ectf-2025/satdecoder/wire"
)

const (
	// subscribeBudgetMicros and decodeBudgetMicros are the fixed response
	// budgets a command must occupy regardless of its actual outcome, so an
	// observer watching response latency alone cannot distinguish success
	// from failure.
	subscribeBudgetMicros = 450000
	decodeBudgetMicros    = 87000
)

// listChannels encodes and sends the non-broadcast channel list: u32
// count, then per channel u32 id | u64 start | u64 end, in table order.
func (d *Device) listChannels() {
	channels := d.Table.NonZeroChannels()
	w := wire.NewWriter(4 + len(channels)*20)
	w.PutU32(uint32(len(channels)))
	for _, ch := range channels {
		w.PutU32(ch.ID())
		w.PutU64(ch.StartTime())
		w.PutU64(ch.EndTime())
	}
	if err := d.Bus.WriteResponse(transport.OpList, w.Bytes()); err != nil {
		d.Diag.Printf("failed to write list response: %v", err)
	}
}

// updateSubscription reloads the provisioned secrets fresh (rather than
// keeping decrypted key material resident between commands) and applies
// one subscription-update blob, then replies within a fixed time budget
// regardless of outcome.
func (d *Device) updateSubscription(body []byte) {
	mat, err := secrets.Load(d.Provisioned, d.Fast)
	d.Diag.Assert(err == nil, "failed to load provisioned secrets")
	if err != nil {
		return
	}
	success := ProcessSubscriptionData(d.Table, d.Flash, d.Fast, d.Clock, d.Diag, mat, body, true)
	mat.Release()

	d.Bus.CommandTimer().WaitUntilElapsed(subscribeBudgetMicros - int64(transport.EstimateIOTime(0).Microseconds()))

	op := transport.OpError
	if success {
		op = transport.OpSubscribe
	}
	if err := d.Bus.WriteResponse(op, nil); err != nil {
		d.Diag.Printf("failed to write subscribe response: %v", err)
	}
}

// decodeFrame validates and decrypts one frame, then replies within a
// fixed time budget sized by the actual response length — the budget
// still masks success/failure, but a longer frame legitimately takes
// longer to transmit and that part of the variance is unavoidable and
// accounted for rather than hidden.
func (d *Device) decodeFrame(body []byte) {
	frame, ok := TryDecodeFrame(d.Table, d.Fast, d.Clock, body)
	retSize := 0
	if ok {
		retSize = len(frame)
	}
	d.Bus.CommandTimer().WaitUntilElapsed(decodeBudgetMicros - int64(transport.EstimateIOTime(retSize).Microseconds()))

	if !ok {
		if err := d.Bus.WriteResponse(transport.OpError, nil); err != nil {
			d.Diag.Printf("failed to write decode error response: %v", err)
		}
		return
	}
	if err := d.Bus.WriteResponse(transport.OpDecode, frame); err != nil {
		d.Diag.Printf("failed to write decode response: %v", err)
	}
}

// RunLoop services commands forever. It is intentionally single-threaded
// and non-preemptible: every command runs to completion, including its
// constant-time wait, before the next ReadCommand call — there is no
// per-command goroutine and no cancellation mid-command. ctx is checked
// only between commands, so a cancellation takes effect at the next
// command boundary rather than interrupting one in flight.
func (d *Device) RunLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.LED.Set(led.Green)
		op, body, err := d.Bus.ReadCommand()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.Diag.Assert(false, "transport read fault")
			continue
		}
		switch op {
		case transport.OpList:
			d.listChannels()
		case transport.OpSubscribe:
			d.updateSubscription(body)
		case transport.OpDecode:
			d.decodeFrame(body)
		default:
			d.LED.Set(led.White)
			d.Diag.Printf("received invalid opcode: %v", op)
			if err := d.Bus.WriteResponse(transport.OpError, nil); err != nil {
				d.Diag.Printf("failed to write error response: %v", err)
			}
		}
	}
}
