// cmd/callcored runs the call-signaling core behind a WebSocket
// transport for local testing: each connecting device registers under
// a remote id and exchanges offer/answer/ICE/hangup/busy messages in
// JSON, and every core event is logged to stderr.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/petervdpas/callcore/internal/callcore"
	"github.com/petervdpas/callcore/internal/config"
	"github.com/petervdpas/callcore/internal/transport/wssignal"
	"github.com/petervdpas/callcore/internal/util"
	"github.com/petervdpas/callcore/internal/webrtcfactory"
)

var (
	cfgPath  = flag.String("config", "data/callcored.json", "path to the JSON config file")
	showHelp = flag.Bool("h", false, "show help")
)

func main() {
	flag.Parse()
	if *showHelp {
		fmt.Fprintln(os.Stderr, "Usage: callcored [-config path]")
		return
	}

	cfg, created, err := config.Ensure(*cfgPath)
	if err != nil {
		log.Fatalf("callcored: config: %v", err)
	}
	if created {
		log.Printf("callcored: wrote default config to %s", *cfgPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("callcored: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	pcFactory := &webrtcfactory.Factory{}
	mediaFactory := &webrtcfactory.MediaFactory{}

	mgr, transport := wire(cfg, pcFactory, mediaFactory)

	mux := http.NewServeMux()
	mux.HandleFunc("/signal/", func(w http.ResponseWriter, r *http.Request) {
		remote, device, err := parseSignalPath(r.URL.Path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := transport.ServeDevice(w, r, remote, device); err != nil {
			log.Printf("callcored: websocket upgrade failed for %s/%d: %v", remote, device, err)
		}
	})
	mux.HandleFunc("/place/", func(w http.ResponseWriter, r *http.Request) {
		remote, err := util.ValidateRemoteID(strings.TrimPrefix(r.URL.Path, "/place/"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		id, err := mgr.Place(remote)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "call %d placed to %s\n", id, remote)
	})

	srv := &http.Server{Addr: cfg.Signaling.ListenAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.Printf("callcored: listening on %s", cfg.Signaling.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// parseSignalPath extracts (remote, device) from "/signal/{remote}/{device}".
func parseSignalPath(path string) (string, callcore.DeviceId, error) {
	tail := strings.TrimPrefix(path, "/signal/")
	parts := strings.SplitN(tail, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", 0, fmt.Errorf("expected /signal/{remote}/{device}")
	}
	remote, err := util.ValidateRemoteID(parts[0])
	if err != nil {
		return "", 0, err
	}
	n, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("invalid device id: %v", err)
	}
	return remote, callcore.DeviceId(n), nil
}

func wire(cfg config.Config, pcFactory callcore.PeerConnectionFactory, mediaFactory callcore.MediaFactory) (*callcore.CallManager, *wssignal.Transport) {
	var mgr *callcore.CallManager
	transport := wssignal.New()
	sendOffer, sendAnswer, sendIce, sendHangup, sendBusy := transport.Delegate()

	delegate := &callcore.Delegate{
		ShouldSendOffer:         sendOffer,
		ShouldSendAnswer:        sendAnswer,
		ShouldSendIceCandidates: sendIce,
		ShouldSendHangup:        sendHangup,
		ShouldSendBusy:          sendBusy,
		ShouldStartCall: func(id callcore.CallId, remote callcore.RemoteHandle, outbound bool) {
			log.Printf("callcored: ShouldStartCall id=%d remote=%v outbound=%v", id, remote, outbound)
			devices := []callcore.DeviceId{1}
			// Called under the manager's lock: Proceed must run on another goroutine.
			go func() {
				if err := mgr.Proceed(id, toCallcoreICEServers(cfg.ICEServers), cfg.HideIP, devices); err != nil {
					log.Printf("callcored: proceed failed: %v", err)
				}
			}()
		},
		OnEvent: func(remote callcore.RemoteHandle, event callcore.Event) {
			log.Printf("callcored: event remote=%v %s", remote, event)
		},
		ShouldCompareCalls: func(remote1, remote2 callcore.RemoteHandle) bool {
			return remote1 == remote2
		},
		OnUpdateLocalVideoSession: func(remote callcore.RemoteHandle, active bool) {
			log.Printf("callcored: local video session remote=%v active=%v", remote, active)
		},
		OnAddRemoteVideoTrack: func(remote callcore.RemoteHandle, track callcore.RemoteVideoTrack) {
			log.Printf("callcored: remote video track added remote=%v", remote)
		},
	}

	mgr = callcore.New(delegate, pcFactory, mediaFactory, callcore.Options{
		SetupBudget:     cfg.SetupBudget(),
		ReconnectBudget: cfg.ReconnectBudget(),
	})
	transport.SetManager(mgr)

	return mgr, transport
}

func toCallcoreICEServers(servers []config.ICEServer) []callcore.IceServer {
	out := make([]callcore.IceServer, len(servers))
	for i, s := range servers {
		out[i] = callcore.IceServer{URLs: s.URLs, Username: s.Username, Credential: s.Credential}
	}
	return out
}
