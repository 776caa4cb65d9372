package main

import (
	"net"
	"net/url"

	"github.com/skip2/go-qrcode"
)

// InviteURL builds the address a client joins with. advertise is host:port
// as reachable by the client.
func InviteURL(advertise, token string) string {
	if host, port, err := net.SplitHostPort(advertise); err == nil {
		if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
			advertise = net.JoinHostPort("localhost", port)
		}
	}
	u := url.URL{
		Scheme:   "ws",
		Host:     advertise,
		Path:     "/ws",
		RawQuery: url.Values{"token": {token}}.Encode(),
	}
	return u.String()
}

// InvitePNG renders the invite as a QR code image.
func InvitePNG(invite string, size int) ([]byte, error) {
	return qrcode.Encode(invite, qrcode.Medium, size)
}

// InviteTerminal renders the invite as a QR code made of block characters,
// for printing on a headless host's console.
func InviteTerminal(invite string) (string, error) {
	q, err := qrcode.New(invite, qrcode.Low)
	if err != nil {
		return "", err
	}
	return q.ToSmallString(false), nil
}
