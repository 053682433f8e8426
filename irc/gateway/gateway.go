// Package gateway owns the sockets: accepting connections, speaking PROXY
// protocol v1 where configured, reading line-delimited IRC frames, and
// driving them through the core's dispatcher. None of the protocol or
// concurrency logic lives here — this package is purely the transport
// adapter spec.md §1 carves out of scope for the core itself.
package gateway

import (
	"bufio"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/emberd/emberd/irc"
	"github.com/emberd/emberd/irc/admission"
	"github.com/emberd/emberd/irc/protocol"
)

// maxLineLength bounds one inbound frame, matching the 512-ish byte IRC
// line convention with headroom for IRCv3 message tags.
const maxLineLength = 8192

// Gateway owns every configured listener and feeds accepted connections
// into matrix's dispatcher.
type Gateway struct {
	matrix    *irc.Matrix
	listeners []net.Listener

	mu sync.Mutex
	wg sync.WaitGroup
}

// New builds a Gateway bound to matrix. Listening does not start until Start.
func New(matrix *irc.Matrix) *Gateway {
	return &Gateway{matrix: matrix}
}

// Start opens every configured listener and begins accepting connections.
// It returns once all listeners are bound; serving continues in background
// goroutines until ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	for _, lc := range g.matrix.Config().Listeners {
		ln, err := g.listen(lc)
		if err != nil {
			return fmt.Errorf("gateway: listen %s: %w", lc.Address, err)
		}
		g.mu.Lock()
		g.listeners = append(g.listeners, ln)
		g.mu.Unlock()

		g.wg.Add(1)
		go g.acceptLoop(ctx, ln, lc)
	}

	go func() {
		<-ctx.Done()
		g.Close()
	}()
	return nil
}

func (g *Gateway) listen(lc irc.ListenerConfig) (net.Listener, error) {
	if !lc.TLS {
		return net.Listen("tcp", lc.Address)
	}
	cert, err := tls.LoadX509KeyPair(lc.CertFile, lc.KeyFile)
	if err != nil {
		return nil, err
	}
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	return tls.Listen("tcp", lc.Address, cfg)
}

// Close stops every listener. Connections already accepted are not closed;
// each one ends when its client disconnects or its read deadline passes.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ln := range g.listeners {
		_ = ln.Close()
	}
}

// Wait blocks until every accept loop has returned (listeners closed).
func (g *Gateway) Wait() { g.wg.Wait() }

func (g *Gateway) acceptLoop(ctx context.Context, ln net.Listener, lc irc.ListenerConfig) {
	defer g.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				g.matrix.Log.Warning("gateway", "accept error", "address", lc.Address, "error", err)
				continue
			}
		}
		go g.handleConn(ctx, conn, lc)
	}
}

// handleConn owns one connection end to end: PROXY header if configured,
// certificate fingerprint extraction for SASL EXTERNAL, admission, the
// dispatch loop, and teardown on disconnect.
func (g *Gateway) handleConn(ctx context.Context, conn net.Conn, lc irc.ListenerConfig) {
	defer conn.Close()

	reader := bufio.NewReaderSize(conn, maxLineLength)

	remoteAddr := conn.RemoteAddr().String()
	if lc.ProxyOnly {
		hdr, err := readProxyHeader(reader)
		if err != nil {
			g.matrix.Log.Warning("gateway", "malformed PROXY header", "error", err)
			return
		}
		if hdr.sourceIP != "" {
			remoteAddr = net.JoinHostPort(hdr.sourceIP, "0")
		}
	}
	host, _, _ := net.SplitHostPort(remoteAddr)

	res := g.matrix.Admission.Evaluate(ctx, admission.Request{
		ConnID: remoteAddr, IP: net.ParseIP(host), Command: "CONNECT",
	})
	if res.Verdict == admission.Disconnect {
		_, _ = conn.Write([]byte(":" + g.matrix.Config().ServerName + " ERROR :Closing link: (" + res.Reason + ")\r\n"))
		return
	}

	g.mu.Lock()
	uid := g.matrix.Allocator.Next()
	g.mu.Unlock()
	sink := &connSink{conn: conn}
	user := irc.NewPreRegisteredUser(uid, sink)
	if certFP := certFingerprint(conn); certFP != "" {
		user.SetCertFP(certFP)
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		msg, err := protocol.Parse([]byte(line))
		if err != nil {
			_ = sink.Deliver(":" + g.matrix.Config().ServerName + " 421 * :Malformed message")
			continue
		}

		state := user.State()
		if state != irc.ServerPeerState {
			res := g.matrix.Admission.Evaluate(ctx, admission.Request{
				ConnID: remoteAddr, IP: net.ParseIP(host), Command: msg.Command.String(),
				Account: user.Account(), Nick: user.Nick(), User: user.UserPart(),
				Host: user.Host(), RealName: user.RealName(), CertFP: user.CertFP(),
			})
			if res.Verdict == admission.Disconnect {
				_ = sink.Deliver(":" + g.matrix.Config().ServerName + " ERROR :Closing link: (" + res.Reason + ")")
				break
			}
			if res.Verdict == admission.Drop {
				continue
			}
		}
		cctx := &irc.Context{Matrix: g.matrix, Msg: msg, Caller: uid, User: user, Sink: sink}
		if err := g.matrix.Dispatcher.Dispatch(state, cctx); err != nil {
			deliverError(sink, g.matrix, user, err)
		}
		if user.State() == irc.Closed {
			break
		}
	}

	if user.State() != irc.Closed {
		g.matrix.Users.Unregister(user)
	}
}

// deliverError converts a *irc.CoreError into the single numeric reply the
// dispatcher's caller owns sending, per spec.md §7 ("handlers never write
// error numerics themselves").
func deliverError(sink irc.OutboundSink, matrix *irc.Matrix, user *irc.User, err error) {
	ce, ok := err.(interface {
		Error() string
		Numeric() int
	})
	nick := user.Nick()
	if nick == "" {
		nick = "*"
	}
	if !ok {
		_ = sink.Deliver(":" + matrix.Config().ServerName + " 400 " + nick + " :" + err.Error())
		return
	}
	if n := ce.Numeric(); n != 0 {
		_ = sink.Deliver(fmt.Sprintf(":%s %d %s :%s", matrix.Config().ServerName, n, nick, ce.Error()))
	}
}

// connSink adapts a net.Conn to irc.OutboundSink.
type connSink struct {
	mu   sync.Mutex
	conn net.Conn
}

func (s *connSink) Deliver(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Write([]byte(line + "\r\n"))
	return err
}

func certFingerprint(conn net.Conn) string {
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return ""
	}
	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return ""
	}
	sum := sha256.Sum256(state.PeerCertificates[0].Raw)
	return fmt.Sprintf("%x", sum[:])
}
