// Package session implements the create/join handshake with the relay and
// the full-document snapshot transfer that follows a join.
//
// Each attempt walks Idle -> AwaitingAck -> {Active | Rejected | Idle}.
// A transport failure returns the attempt to Idle; an unexpected reply is a
// protocol error and leaves it Rejected.
package session
