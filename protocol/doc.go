// Package protocol implements the line-based serial flash loader protocol.
//
// This package provides the wire constants shared by both ends of the link,
// the uppercase hex codec used for payload lines, functions to build command
// lines on the host, and functions to read the device's replies.
//
// # Protocol Overview
//
// The host sends one ASCII command per line. A line is an opcode byte followed
// by its operand and is terminated by a line feed or a carriage return:
//
//	s<decimal>      set the staging buffer working address
//	w<HEXHEX...>    write hex-encoded bytes at the staging working address
//	S<decimal>      set the flash working address
//	X<decimal>      erase flash sector <decimal>
//	M<decimal>      program <decimal> bytes from the staging buffer into flash
//	Z               end the session
//
// The line including its terminator must fit in the device's receive buffer
// (DefaultRxCapacity bytes unless configured otherwise).
//
// After every line the device answers with a fixed token: AckToken when the
// line was framed correctly, NackToken when it was too long or malformed.
// Each token is followed by a single NUL byte on the wire.
//
// # Command Builders
//
// Use the Build* functions to create command lines:
//
//	line, err := protocol.BuildSetStageAddrCmd(0)
//	line, err := protocol.BuildWriteStageCmd(data, protocol.DefaultRxCapacity)
//	// ... etc
//
// # Responses
//
// Use ReadResponse to consume one reply from a buffered reader:
//
//	resp, err := protocol.ReadResponse(r)
//	if resp == protocol.ResponseNack {
//	    return &protocol.ProtocolError{Operation: "write stage", Line: line}
//	}
//
// An ACK only reports framing. It does not say whether the requested erase or
// program operation succeeded on the device.
package protocol
