// Package transport connects a loader.Controller to a byte stream.
//
// Serve plays the part of the receive interrupt and the transmit routine of
// the firmware: one goroutine pulls bytes from the port into a bounded
// lock-free FIFO, and a second drains the FIFO one byte at a time into the
// controller and writes each reply token back to the port before taking the
// next byte.
//
// Serial ports are opened with OpenSerial, which uses go.bug.st/serial.
package transport
