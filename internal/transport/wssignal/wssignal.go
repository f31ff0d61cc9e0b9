// Package wssignal is a demonstration signaling transport for callcore,
// carrying offer/answer/ICE/hangup/busy messages over a JSON-framed
// gorilla/websocket connection per remote device. The core never
// depends on this package — wire framing is explicitly out of its
// scope — but an embedding application needs something concrete to
// plug into callcore.Delegate's ShouldSend* slots, so this package
// plays that role the way internal/viewer/routes/call.go wires a
// WebSocket endpoint around call.Manager.
package wssignal

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/petervdpas/callcore/internal/callcore"
)

// message is the wire envelope for every signaling exchange. Only the
// fields relevant to Type are populated.
type message struct {
	Type       string               `json:"type"`
	CallId     uint64               `json:"call_id"`
	Device     uint32               `json:"device"`
	SDP        string               `json:"sdp,omitempty"`
	Candidates []wireCandidate      `json:"candidates,omitempty"`
	Timestamp  int64                `json:"timestamp,omitempty"`
}

type wireCandidate struct {
	SDPMid        string `json:"sdp_mid"`
	SDPMLineIndex int32  `json:"sdp_mline_index"`
	SDP           string `json:"sdp"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// conn is one device's live WebSocket connection, serialized for
// writes since gorilla/websocket forbids concurrent writers.
type conn struct {
	ws    *websocket.Conn
	wmu   sync.Mutex
	remote string
}

// Transport bridges a CallManager to one or more device WebSocket
// connections keyed by (remote, device). It is the only place in this
// module that imports gorilla/websocket.
type Transport struct {
	mgr *callcore.CallManager

	mu    sync.Mutex
	conns map[string]map[callcore.DeviceId]*conn
}

// New constructs a Transport. Call SetManager before serving any
// connection — the CallManager and Transport are constructed as a
// pair (the Delegate needs the Transport's send functions, and the
// Transport needs the CallManager to route inbound messages to).
func New() *Transport {
	return &Transport{
		conns: make(map[string]map[callcore.DeviceId]*conn),
	}
}

// SetManager binds the CallManager this transport routes inbound
// signaling messages to and reports send outcomes back to.
func (t *Transport) SetManager(mgr *callcore.CallManager) {
	t.mgr = mgr
}

// ServeDevice upgrades r to a WebSocket and registers it as remote's
// device, then blocks reading inbound signaling messages until the
// connection closes.
func (t *Transport) ServeDevice(w http.ResponseWriter, r *http.Request, remote string, device callcore.DeviceId) error {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &conn{ws: ws, remote: remote}
	t.register(remote, device, c)
	defer t.unregister(remote, device)

	log.Printf("wssignal: device %d of %s connected", device, remote)
	for {
		var msg message
		if err := ws.ReadJSON(&msg); err != nil {
			log.Printf("wssignal: device %d of %s disconnected: %v", device, remote, err)
			return nil
		}
		t.dispatchInbound(remote, device, msg)
	}
}

func (t *Transport) register(remote string, device callcore.DeviceId, c *conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conns[remote] == nil {
		t.conns[remote] = make(map[callcore.DeviceId]*conn)
	}
	t.conns[remote][device] = c
}

func (t *Transport) unregister(remote string, device callcore.DeviceId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns[remote], device)
}

func (t *Transport) connFor(remote string, device *callcore.DeviceId) *conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	devices := t.conns[remote]
	if devices == nil {
		return nil
	}
	if device != nil {
		return devices[*device]
	}
	for _, c := range devices {
		return c // any device — used for dest-less directives (e.g. hangup with no contacted list)
	}
	return nil
}

// dispatchInbound decodes a wire message and feeds it to the matching
// CallManager.Receive* entrypoint.
func (t *Transport) dispatchInbound(remote string, device callcore.DeviceId, msg message) {
	id := callcore.CallId(msg.CallId)
	var err error
	switch msg.Type {
	case "offer":
		ts := time.UnixMilli(msg.Timestamp)
		err = t.mgr.ReceiveOffer(id, remote, device, msg.SDP, ts)
	case "answer":
		err = t.mgr.ReceiveAnswer(id, device, msg.SDP)
	case "ice":
		err = t.mgr.ReceiveIceCandidates(id, device, fromWireCandidates(msg.Candidates))
	case "hangup":
		err = t.mgr.ReceiveHangup(id)
	case "busy":
		err = t.mgr.ReceiveBusy(id)
	default:
		log.Printf("wssignal: unknown message type %q from %s/%d", msg.Type, remote, device)
		return
	}
	if err != nil {
		log.Printf("wssignal: %s from %s/%d rejected: %v", msg.Type, remote, device, err)
	}
}

func fromWireCandidates(in []wireCandidate) []callcore.IceCandidate {
	out := make([]callcore.IceCandidate, len(in))
	for i, c := range in {
		out[i] = callcore.IceCandidate{SDPMid: c.SDPMid, SDPMLineIndex: c.SDPMLineIndex, SDP: c.SDP}
	}
	return out
}

func toWireCandidates(in []callcore.IceCandidate) []wireCandidate {
	out := make([]wireCandidate, len(in))
	for i, c := range in {
		out[i] = wireCandidate{SDPMid: c.SDPMid, SDPMLineIndex: c.SDPMLineIndex, SDP: c.SDP}
	}
	return out
}

// send writes msg to remote's addressed device (or any connected
// device, if dest is nil) and reports the outcome back to the
// CallManager's dispatcher so the next queued directive can proceed.
func (t *Transport) send(id callcore.CallId, remote string, dest *callcore.DeviceId, msg message) {
	c := t.connFor(remote, dest)
	if c == nil {
		log.Printf("wssignal[%d]: no connection for %s dest=%v, send failure", id, remote, dest)
		_ = t.mgr.MessageSendFailure(id)
		return
	}
	c.wmu.Lock()
	err := c.ws.WriteJSON(msg)
	c.wmu.Unlock()
	if err != nil {
		log.Printf("wssignal[%d]: write error: %v", id, err)
		_ = t.mgr.MessageSendFailure(id)
		return
	}
	_ = t.mgr.MessageSent(id)
}

// Delegate returns the ShouldSend* function values to assign onto a
// callcore.Delegate. Kept separate from Delegate construction so the
// caller can populate the remaining (non-transport) slots itself.
func (t *Transport) Delegate() (
	sendOffer func(id callcore.CallId, remote callcore.RemoteHandle, dest *callcore.DeviceId, sdp string),
	sendAnswer func(id callcore.CallId, remote callcore.RemoteHandle, dest *callcore.DeviceId, sdp string),
	sendIce func(id callcore.CallId, remote callcore.RemoteHandle, dest *callcore.DeviceId, candidates []callcore.IceCandidate),
	sendHangup func(id callcore.CallId, remote callcore.RemoteHandle, dest *callcore.DeviceId),
	sendBusy func(id callcore.CallId, remote callcore.RemoteHandle, dest *callcore.DeviceId),
) {
	asString := func(remote callcore.RemoteHandle) string {
		s, _ := remote.(string)
		return s
	}
	// Each slot is invoked under the CallManager's lock and send reports
	// back via MessageSent/MessageSendFailure, so sends run on their own
	// goroutine.
	sendOffer = func(id callcore.CallId, remote callcore.RemoteHandle, dest *callcore.DeviceId, sdp string) {
		go t.send(id, asString(remote), dest, message{Type: "offer", CallId: uint64(id), SDP: sdp, Timestamp: time.Now().UnixMilli()})
	}
	sendAnswer = func(id callcore.CallId, remote callcore.RemoteHandle, dest *callcore.DeviceId, sdp string) {
		go t.send(id, asString(remote), dest, message{Type: "answer", CallId: uint64(id), SDP: sdp})
	}
	sendIce = func(id callcore.CallId, remote callcore.RemoteHandle, dest *callcore.DeviceId, candidates []callcore.IceCandidate) {
		go t.send(id, asString(remote), dest, message{Type: "ice", CallId: uint64(id), Candidates: toWireCandidates(candidates)})
	}
	sendHangup = func(id callcore.CallId, remote callcore.RemoteHandle, dest *callcore.DeviceId) {
		go t.send(id, asString(remote), dest, message{Type: "hangup", CallId: uint64(id)})
	}
	sendBusy = func(id callcore.CallId, remote callcore.RemoteHandle, dest *callcore.DeviceId) {
		go t.send(id, asString(remote), dest, message{Type: "busy", CallId: uint64(id)})
	}
	return
}
