package callcore

import "log"

// createConnection asks the injected PeerConnectionFactory for a
// PeerConnection configured per spec §4.2, wires its callbacks back
// onto the event-thread mutex, and binds the context's local tracks as
// senders. Grounded in Session.initExternalPC, generalized from a
// hard-coded Pion setup to the PeerConnectionFactory boundary.
func (m *CallManager) createConnection(rec *callRecord) error {
	pc, err := m.pcFactory.CreatePeerConnection(rec.context)
	if err != nil {
		return err
	}
	rec.pc = pc

	id := rec.id
	pc.OnICECandidate(func(c IceCandidate) {
		m.mu.Lock()
		defer m.mu.Unlock()
		r, ok := m.reg.calls[id]
		if !ok || r.state == Terminated {
			return
		}
		m.enqueue(r, directive{kind: dirIce, dest: r.selectedDevice, candidates: []IceCandidate{c}})
	})

	pc.OnConnectionStateChange(func(s PeerConnectionState) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.onConnectionStateChange(id, s)
	})

	pc.OnConnectMedia(func(t RemoteTrack, kind TrackKind) {
		m.mu.Lock()
		defer m.mu.Unlock()
		r, ok := m.reg.calls[id]
		if !ok || r.state == Terminated {
			return
		}
		if kind == TrackVideo {
			m.delegate.OnAddRemoteVideoTrack(r.remote, t)
			m.emit(r, RemoteVideoEnable)
		} else {
			log.Printf("callcore[%d]: remote media connected without a video track", r.id)
		}
		m.onConnectMedia(r)
	})

	if rec.context.AudioTrack != nil {
		if err := pc.AddAudioTrack(rec.context.AudioTrack); err != nil {
			log.Printf("callcore[%d]: AddAudioTrack error: %v", rec.id, err)
		}
	}
	if rec.context.VideoTrack != nil {
		if err := pc.AddVideoTrack(rec.context.VideoTrack); err != nil {
			log.Printf("callcore[%d]: AddVideoTrack error: %v", rec.id, err)
		}
	}

	flushPendingICE(rec)
	return nil
}

// flushPendingICE replays buffered remote candidates once both the
// PeerConnection exists and the remote description is set, in arrival
// order (invariant I5, property P6).
func flushPendingICE(rec *callRecord) {
	if rec.pc == nil || !rec.remoteDescSet || len(rec.pendingICEIn) == 0 {
		return
	}
	pending := rec.pendingICEIn
	rec.pendingICEIn = nil
	for _, c := range pending {
		if err := rec.pc.AddICECandidate(c); err != nil {
			log.Printf("callcore[%d]: AddICECandidate (buffered) error: %v", rec.id, err)
		}
	}
}

// onConnectMedia drives Ringing/Accepting -> Connected on the arrival
// of a remote media track (spec §4.2/§4.3), independent of the
// underlying ICE/DTLS state tracked by onConnectionStateChange. Must
// be called with m.mu held.
func (m *CallManager) onConnectMedia(rec *callRecord) {
	switch rec.state {
	case Ringing, Accepting:
		wasInbound := rec.direction == Inbound
		m.reg.setState(rec, Connected)
		rec.connectedAt = m.now()
		stopTimer(rec.setupTimer)
		if wasInbound {
			m.emit(rec, ConnectedLocal)
		} else {
			m.emit(rec, ConnectedRemote)
		}
	}
}

// onConnectionStateChange drives reconnection off PeerConnection
// connectivity changes (spec §4.3); the initial Connected transition is
// driven by onConnectMedia instead. Must be called with m.mu held.
func (m *CallManager) onConnectionStateChange(id CallId, s PeerConnectionState) {
	rec, ok := m.reg.calls[id]
	if !ok || rec.state == Terminated {
		return
	}
	log.Printf("callcore[%d]: pc state -> %v", rec.id, s)

	switch s {
	case PCConnected:
		if rec.state == Reconnecting {
			m.reg.setState(rec, Connected)
			stopTimer(rec.reconnectTimer)
			m.emit(rec, EventReconnected)
		}
	case PCDisconnected:
		if rec.state == Connected {
			m.reg.setState(rec, Reconnecting)
			m.emit(rec, EventReconnecting)
			rec.reconnectTimer = m.afterFunc(m.opts.ReconnectBudget, func() {
				m.mu.Lock()
				defer m.mu.Unlock()
				r, ok := m.reg.calls[id]
				if ok && r.state == Reconnecting {
					m.terminate(r, ConnectionFailure)
				}
			})
		}
	case PCFailed:
		m.terminate(rec, ConnectionFailure)
	}
}
