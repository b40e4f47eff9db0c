package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the SOCKS5 handshake probe.
const checkProxyTimeout = 2 * time.Second

// SOCKS5 protocol constants
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5AuthNoAccept  = 0xFF
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03

	// socks5ProbeHost is a reserved name that never resolves. The probe only
	// needs the proxy to answer a CONNECT, not to succeed.
	socks5ProbeHost = "spidey-probe.invalid"
)

// SOCKSDialer routes connections through a SOCKS5 proxy. The socks flavor
// uses one directly; the tor flavor points one at the embedded daemon.
type SOCKSDialer struct {
	// proxyAddress is the SOCKS5 proxy address in "host:port" format.
	proxyAddress string

	// dialer is cached to avoid recreating it for each connection.
	dialer proxy.Dialer
}

// NewSOCKSDialer validates proxyAddress and builds a dialer for it.
// It does not contact the proxy; call CheckConnection for that.
func NewSOCKSDialer(proxyAddress string) (*SOCKSDialer, error) {
	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &SOCKSDialer{
		proxyAddress: proxyAddress,
		dialer:       dialer,
	}, nil
}

// isValidProxyAddress checks for "host:port" with a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// ProxyAddress returns the configured proxy address.
func (d *SOCKSDialer) ProxyAddress() string {
	return d.proxyAddress
}

// Dial establishes a TCP connection to address through the proxy.
func (d *SOCKSDialer) Dial(network, address string) (net.Conn, error) {
	return d.dialer.Dial(network, address)
}

// DialContext is Dial with cancellation.
func (d *SOCKSDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := d.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := d.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Transport returns an *http.Transport whose connections go through the
// proxy. insecure disables certificate verification.
func (d *SOCKSDialer) Transport(insecure bool) *http.Transport {
	t := newDirectTransport(insecure)
	t.Proxy = nil
	t.DialContext = d.DialContext
	// Compressed sizes leak content over anonymizing proxies.
	t.DisableCompression = true
	return t
}

// CheckConnection verifies that a SOCKS5 proxy is listening at the
// configured address by performing a handshake and a CONNECT request.
//
// The check works by verifying:
//  1. The proxy speaks SOCKS5 protocol
//  2. The proxy accepts connections without authentication
//  3. The proxy answers a CONNECT request for a domain name
func (d *SOCKSDialer) CheckConnection(ctx context.Context) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", d.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// Greeting: version, one method, no authentication.
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		return statusFromReadError(err)
	}
	if authResp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	if authResp[1] == socks5AuthNoAccept || authResp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	// CONNECT: version, cmd, reserved, addr type, len, host, port.
	probePort := uint16(80)
	connectReq := []byte{
		socks5Version,
		socks5CmdConnect,
		0x00,
		socks5AddrTypeDomID,
		byte(len(socks5ProbeHost)),
	}
	connectReq = append(connectReq, socks5ProbeHost...)
	connectReq = append(connectReq, byte(probePort>>8), byte(probePort&0xFF))

	if _, err := conn.Write(connectReq); err != nil {
		return ProxyStatusCannotConnect
	}

	// Any reply code counts: a failure still shows the proxy processed the
	// request.
	connectResp := make([]byte, 4)
	if _, err := io.ReadFull(conn, connectResp); err != nil {
		return statusFromReadError(err)
	}
	if connectResp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

func statusFromReadError(err error) ProxyStatus {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ProxyStatusTimeout
	}
	return ProxyStatusWrongType
}
