package transport

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"echonet-core/node"
)

// UDPTransport implements Transport over an IPv4 UDP socket, using
// limited broadcast for the zero Address and filtering out the node's
// own transmissions from its own receive path.
type UDPTransport struct {
	conn     *net.UDPConn
	port     int
	localIPs []net.IP

	mu        sync.RWMutex
	receiveFn func(ctx context.Context, src node.Address, payload []byte)

	closeOnce sync.Once
	closed    chan struct{}
}

// NewUDPTransport opens a UDP socket on port (listening on all
// interfaces) and starts its receive loop under ctx; cancelling ctx or
// calling Close stops the loop and releases the socket.
func NewUDPTransport(ctx context.Context, port int) (*UDPTransport, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return nil, err
	}

	localIPs, err := localIPv4s()
	if err != nil {
		slog.Warn("could not determine local IPv4 addresses for self-packet filtering", "err", err)
	}

	t := &UDPTransport{
		conn:     conn,
		port:     port,
		localIPs: localIPs,
		closed:   make(chan struct{}),
	}
	go t.receiveLoop(ctx)
	return t, nil
}

// OnReceive registers the single callback invoked per inbound datagram
// not originating from this transport's own socket.
func (t *UDPTransport) OnReceive(handler func(ctx context.Context, src node.Address, payload []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.receiveFn = handler
}

// Send writes payload to dest, or broadcasts it on the subnet when dest
// is the zero Address.
func (t *UDPTransport) Send(ctx context.Context, dest node.Address, payload []byte) error {
	ip := net.IPv4bcast
	if dest != "" {
		parsed := net.ParseIP(string(dest))
		if parsed == nil {
			return &net.AddrError{Err: "invalid IPv4 address", Addr: string(dest)}
		}
		ip = parsed
	}
	_, err := t.conn.WriteToUDP(payload, &net.UDPAddr{IP: ip, Port: t.port})
	return err
}

// Close releases the underlying socket and stops the receive loop.
func (t *UDPTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return t.conn.Close()
}

func (t *UDPTransport) receiveLoop(ctx context.Context) {
	buf := make([]byte, 1500)
	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.closed:
				return
			case <-ctx.Done():
				return
			default:
			}
			slog.Warn("udp receive failed", "err", err)
			continue
		}
		if t.isSelfPacket(addr) {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		t.mu.RLock()
		fn := t.receiveFn
		t.mu.RUnlock()
		if fn == nil {
			continue
		}
		go fn(ctx, node.Address(addr.IP.String()), data)
	}
}

func (t *UDPTransport) isSelfPacket(src *net.UDPAddr) bool {
	if src == nil || src.Port != t.port {
		return false
	}
	for _, ip := range t.localIPs {
		if src.IP.Equal(ip) {
			return true
		}
	}
	return false
}

func localIPv4s() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	var ips []net.IP
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			ips = append(ips, ip4)
		}
	}
	return ips, nil
}
