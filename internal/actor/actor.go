// Package actor implements the single-goroutine core that owns every piece
// of mutable routing state in this system: the link registry, the routing
// engine, link health, and the tunnel's peer set. Every other package in
// this module is a collaborator the actor drives over its event queue;
// nothing outside the actor's Run goroutine (and the goroutines it directly
// spawns and waits on) may read or write that state.
package actor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/coreos/go-iptables/iptables"
	"github.com/encodeous/nylon/internal/config"
	"github.com/encodeous/nylon/internal/events"
	"github.com/encodeous/nylon/internal/forwarder"
	"github.com/encodeous/nylon/internal/identity"
	"github.com/encodeous/nylon/internal/link"
	"github.com/encodeous/nylon/internal/metric"
	"github.com/encodeous/nylon/internal/routing"
	"github.com/encodeous/nylon/internal/tunnel"
	"github.com/google/uuid"
)

// RouteTableFile is the file route_table.json is written under Options.Dir
// on a graceful shutdown, and read back to pre-seed the table on the next
// run.
const RouteTableFile = "route_table.json"

// QueueBuffer is the depth of the actor's main event channel.
const QueueBuffer = 1024

// UDPOutboundBuffer is the depth of the bounded channel feeding the UDP
// writer goroutine (SPEC_FULL.md §5: "UDP outbound channel bound = 1024").
const UDPOutboundBuffer = 1024

// RouteUpdateInterval is the cadence of both the routing full-update timer
// and the tunnel-reconciliation timer (SPEC_FULL.md §10: the two are kept
// on the same cadence).
const RouteUpdateInterval = 10 * time.Second

// Options configures a new Actor.
type Options struct {
	Dir     string
	Node    *config.NodeConfig
	Central config.CentralConfig
	Log     *slog.Logger
	Metrics *Metrics // optional; nil disables metric recording
}

// Actor is the authoritative owner of all mutable routing state.
type Actor struct {
	self    identity.Entity
	secret  identity.EntitySecret
	central config.CentralConfig
	node    *config.NodeConfig
	dir     string

	queue *events.Queue
	wg    sync.WaitGroup

	links   *link.Registry
	engine  *routing.Engine
	prober  *metric.Prober
	courier *forwarder.Courier
	pending *pendingPings

	tcpListener net.Listener
	udpConn     *net.UDPConn
	udpOut      chan events.OutboundDatagram

	tun       *tunnel.Manager
	ipt       *iptables.IPTables
	ifaceName string

	log     *slog.Logger
	metrics *Metrics
}

// New builds an Actor from opts. It opens the wgctrl client for the tunnel
// interface but does not create the interface or bind any sockets; call Run
// to bring the node fully up.
func New(opts Options) (*Actor, error) {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	self, err := opts.Node.NodePrivkey.Public()
	if err != nil {
		return nil, fmt.Errorf("actor: deriving local identity: %w", err)
	}

	ifaceName := opts.Node.InterfaceOrDefault()
	tun, err := tunnel.New(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("actor: opening tunnel manager: %w", err)
	}

	a := &Actor{
		self:      self,
		secret:    opts.Node.NodePrivkey,
		central:   opts.Central,
		node:      opts.Node,
		dir:       opts.Dir,
		links:     link.NewRegistry(),
		engine:    routing.New(self),
		pending:   newPendingPings(),
		udpOut:    make(chan events.OutboundDatagram, UDPOutboundBuffer),
		tun:       tun,
		ifaceName: ifaceName,
		log:       opts.Log,
		metrics:   opts.Metrics,
	}
	a.prober = metric.NewProber(a, link.ProbeLinks{Registry: a.links}, &meteredEngine{Engine: a.engine, metrics: a.metrics}, a.log)
	a.courier = &forwarder.Courier{Self: self, Router: a, Pending: a.pending, Log: a.log}

	if ps, err := loadRouteTable(filepath.Join(opts.Dir, RouteTableFile)); err == nil {
		a.engine.Seed(ps)
	}

	return a, nil
}

// Run brings the node fully up (tunnel interface, sockets, iptables rules),
// dials every other reachable node in the central config, then runs the
// dispatch loop until ctx is cancelled or an "exit" operator command
// arrives. It always attempts the full teardown sequence before returning.
func (a *Actor) Run(ctx context.Context) error {
	selfNode, ok := a.central.NodeByPubkey(a.self)
	if !ok {
		return fmt.Errorf("actor: this node's identity is not present in the central config")
	}

	if err := a.tun.Create(); err != nil && err != tunnel.ErrInterfaceExists {
		return fmt.Errorf("actor: creating tunnel interface: %w", err)
	}
	if err := a.tun.AddAddress(selfNode.AddrVlan.IPNet); err != nil {
		return fmt.Errorf("actor: assigning tunnel address: %w", err)
	}
	if ipt, err := tunnel.SetupIPTables(a.ifaceName); err != nil {
		a.log.Warn("actor: iptables setup failed, continuing without accept rules", "error", err)
	} else {
		a.ipt = ipt
	}

	listener, err := net.Listen("tcp", a.node.Sock.Control)
	if err != nil {
		return fmt.Errorf("actor: listening on control socket: %w", err)
	}
	a.tcpListener = listener

	udpAddr, err := net.ResolveUDPAddr("udp", a.node.Sock.Datagram)
	if err != nil {
		return fmt.Errorf("actor: resolving datagram socket: %w", err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("actor: listening on datagram socket: %w", err)
	}
	a.udpConn = udpConn

	a.queue = events.NewQueue(ctx, QueueBuffer)
	qctx := a.queue.Context()

	a.wg.Add(3)
	go a.acceptLoop(qctx)
	go a.udpReaderLoop(qctx)
	go a.udpWriterLoop(qctx)

	metricTicker := time.NewTicker(metric.ProbeInterval)
	routeTicker := time.NewTicker(RouteUpdateInterval)
	sysRouteTicker := time.NewTicker(RouteUpdateInterval)
	defer metricTicker.Stop()
	defer routeTicker.Stop()
	defer sysRouteTicker.Stop()

	a.wg.Add(1)
	go a.timerLoop(qctx, metricTicker, routeTicker, sysRouteTicker)

	for _, n := range a.central.Nodes {
		if n.Identity.Pubkey.Equal(a.self) {
			continue
		}
		var addrs []string
		for _, sock := range n.ReachableVia {
			if sock.Control != "" {
				addrs = append(addrs, sock.Control)
			}
		}
		if len(addrs) == 0 {
			continue
		}
		a.queue.Post(events.Network{Event: events.SpawnLink{Dst: n.Identity.Pubkey, Addrs: addrs}})
	}

	for {
		ev, ok := a.queue.Recv()
		if !ok {
			break
		}
		a.dispatch(ev)
	}

	return a.shutdown()
}

func (a *Actor) timerLoop(ctx context.Context, metricT, routeT, sysRouteT *time.Ticker) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-metricT.C:
			a.queue.Post(events.Timer{Event: events.MetricUpdate{}})
		case <-routeT.C:
			a.queue.Post(events.Timer{Event: events.RouteUpdate{}})
		case <-sysRouteT.C:
			a.queue.Post(events.Timer{Event: events.SysRouteUpdate{}})
		}
	}
}

// shutdown runs once the dispatch loop has exited: it waits for every
// spawned goroutine, persists the route table, and tears down the tunnel
// and iptables rules. Failures are logged, not propagated, per
// SPEC_FULL.md §7 ("shutdown I/O is best-effort").
func (a *Actor) shutdown() error {
	if a.tcpListener != nil {
		_ = a.tcpListener.Close()
	}
	if a.udpConn != nil {
		_ = a.udpConn.Close()
	}
	a.wg.Wait()

	ps := a.engine.Snapshot()
	if err := config.AtomicWriteJSON(filepath.Join(a.dir, RouteTableFile), ps, 0o600); err != nil {
		a.log.Error("actor: failed to persist route table", "error", err)
	}

	if a.ipt != nil {
		if err := tunnel.CleanupIPTables(a.ipt, a.ifaceName); err != nil {
			a.log.Error("actor: failed to remove iptables rules", "error", err)
		}
	}
	if err := a.tun.Remove(); err != nil {
		a.log.Error("actor: failed to remove tunnel interface", "error", err)
	}
	if err := a.tun.Close(); err != nil {
		a.log.Error("actor: failed to close tunnel client", "error", err)
	}

	return nil
}

// PostCommand enqueues an operator command line, parsed and dispatched on
// the actor goroutine.
func (a *Actor) PostCommand(line string) {
	a.queue.Post(events.DispatchCommand{Line: line})
}

// RequestShutdown asks the actor to begin its drain-then-persist sequence.
func (a *Actor) RequestShutdown() {
	a.queue.Post(events.Shutdown{})
}

func loadRouteTable(path string) (routing.PersistentState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return routing.PersistentState{}, err
	}
	var ps routing.PersistentState
	if err := json.Unmarshal(data, &ps); err != nil {
		return routing.PersistentState{}, err
	}
	return ps, nil
}

func listenPortOf(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

// isLinkIDTaken is passed to link.DialerHandshake/ListenerHandshake so
// handshake goroutines can check the live link registry without touching it
// directly, preserving the single-actor-owns-state invariant.
func (a *Actor) isLinkIDTaken(id uuid.UUID) bool {
	result := make(chan bool, 1)
	a.queue.Post(events.Network{Event: events.LinkIDTaken{ID: id, Result: result}})
	select {
	case taken := <-result:
		return taken
	case <-a.queue.Context().Done():
		return true
	}
}
