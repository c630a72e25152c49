// Package wire implements the newline-delimited token protocol spoken
// between the editor and the relay.
//
// Every message is one or more space-separated ASCII tokens terminated by a
// single '\n'. Integers are decimal ASCII. There are no length prefixes and
// no escaping, so a row carried in a snapshot must never contain '\n'.
//
//	create <password>                  -> <sessionId>
//	join <sessionId> <password>        -> success | invalid id | invalid pass
//	request                            -> response, <rowCount>, rows...
//	char <byte> <col> <row>            (fire and forget)
//	newline <col> <row>
//	delete <col> <row>
//	host                               (relay to the peer promoted after the host left)
//
// The byte of a char message is sent as a decimal number.
package wire
