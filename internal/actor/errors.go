package actor

import "errors"

// errAlreadyLinked is returned by ValidateConnect when a proactive dial is
// skipped because a link to the same peer already exists — e.g. the peer
// dialed us first and the handshake already completed.
var errAlreadyLinked = errors.New("actor: already have an active link to this peer")
