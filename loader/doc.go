// Package loader implements the device side of the line-based flash
// loading protocol.
//
// # Overview
//
// Bytes arrive one at a time from a serial link. A Session reassembles them
// into lines, decodes each line as a command and applies it to two address
// spaces: a staging buffer in RAM and the linear address space of a
// flashdev.Device. After every line the host receives one reply token:
//
//	loader_rx_cplt   the line was framed and dispatched
//	loader_rx_fail   the line overflowed the receive buffer or was malformed
//
// The reply reports framing only. Whether an erase or program actually
// succeeded is reported through LineCallback and the log, not on the wire.
//
// # Commands
//
//	s<decimal>     set the staging working address
//	w<HEXHEX...>   decode bytes to the staging working address
//	S<decimal>     set the flash working address
//	X<decimal>     erase one flash sector
//	M<decimal>     program bytes from staging offset 0 to the flash working address
//	Z              end the session
//
// # State Machine
//
// Session.OnByte is the single entry point for received bytes. It returns an
// Action telling the caller which token, if any, to transmit, and does no I/O
// itself. Controller wraps a Session for use from concurrent contexts: the
// transport goroutine feeds HandleByte while a foreground caller blocks in
// RunUntilDone until the Z command has been answered.
//
//	ctrl := loader.New(dev, loader.WithLogger(log))
//	go transport.Serve(ctx, port, ctrl)
//	if err := ctrl.RunUntilDone(ctx); err != nil {
//	    return err
//	}
package loader
