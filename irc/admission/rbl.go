package admission

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// RBLChecker is stage 3 of the pipeline: DNSBL lookups whose results are
// cached per IP address for one hour, shared by every connection from that
// address; a cached result is not tied to any one connection. Grounded on
// github.com/miekg/dns, the DNS library sandia-minimega-minimega's go.mod
// pulls in.
type RBLChecker struct {
	zones   []string // e.g. "zen.spamhaus.org"
	client  *dns.Client
	server  string // resolver address, "host:53"
	mu      sync.Mutex
	cache   map[string]rblResult
	timeout time.Duration
}

type rblResult struct {
	listed bool
	expiry time.Time
}

// NewRBLChecker builds a checker querying the given RBL zones through
// resolver (e.g. "1.1.1.1:53").
func NewRBLChecker(zones []string, resolver string) *RBLChecker {
	return &RBLChecker{
		zones:   zones,
		client:  &dns.Client{Timeout: 3 * time.Second},
		server:  resolver,
		cache:   make(map[string]rblResult),
		timeout: 3 * time.Second,
	}
}

func (r *RBLChecker) Name() string { return "rbl" }

func (r *RBLChecker) Evaluate(ctx context.Context, req Request) Result {
	if req.IP == nil || len(r.zones) == 0 {
		return ok()
	}
	key := req.IP.String()

	r.mu.Lock()
	cached, hit := r.cache[key]
	r.mu.Unlock()
	if hit && time.Now().Before(cached.expiry) {
		if cached.listed {
			return Result{Verdict: Disconnect, Reason: "listed on a DNS blocklist"}
		}
		return ok()
	}

	listed := r.lookup(ctx, req.IP)
	r.mu.Lock()
	r.cache[key] = rblResult{listed: listed, expiry: time.Now().Add(time.Hour)}
	r.mu.Unlock()

	if listed {
		return Result{Verdict: Disconnect, Reason: "listed on a DNS blocklist"}
	}
	return ok()
}

// lookup queries every configured zone for the reversed IP, returning true
// on the first positive hit. Resolver errors are treated as "not listed"
// rather than failing the connection, since an RBL outage must never
// become an outage for the whole server.
func (r *RBLChecker) lookup(ctx context.Context, ip net.IP) bool {
	reversed, err := reverseIPv4(ip)
	if err != nil {
		return false
	}
	for _, zone := range r.zones {
		query := new(dns.Msg)
		query.SetQuestion(dns.Fqdn(reversed+"."+zone), dns.TypeA)

		resultCh := make(chan bool, 1)
		go func() {
			resp, _, err := r.client.Exchange(query, r.server)
			resultCh <- (err == nil && resp != nil && len(resp.Answer) > 0)
		}()

		select {
		case listed := <-resultCh:
			if listed {
				return true
			}
		case <-ctx.Done():
			return false
		case <-time.After(r.timeout):
			// resolver too slow; skip this zone rather than block admission
		}
	}
	return false
}

func reverseIPv4(ip net.IP) (string, error) {
	v4 := ip.To4()
	if v4 == nil {
		return "", fmt.Errorf("rbl: not an IPv4 address: %s", ip)
	}
	parts := strings.Split(v4.String(), ".")
	return fmt.Sprintf("%s.%s.%s.%s", parts[3], parts[2], parts[1], parts[0]), nil
}
