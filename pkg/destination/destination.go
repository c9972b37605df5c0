// Package destination parses the login@host[:port] argument of the sshkex
// command.
package destination

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/pzverkov/sshkex/internal/constants"
	qerrors "github.com/pzverkov/sshkex/internal/errors"
)

// Destination is a parsed login@host[:port] argument.
type Destination struct {
	Login string
	Host  string
	Port  int
}

// Parse splits s into login, host and port. Both login and host must be
// non-empty. The port defaults to 22; IPv6 hosts with a port use the
// bracketed form login@[::1]:2222.
func Parse(s string) (Destination, error) {
	login, hostport, ok := strings.Cut(s, "@")
	if !ok || login == "" || hostport == "" {
		return Destination{}, invalid(s, "expected login@host")
	}
	if strings.Contains(hostport, "@") {
		return Destination{}, invalid(s, "more than one '@'")
	}

	d := Destination{Login: login, Host: hostport, Port: constants.DefaultPort}

	switch {
	case strings.HasPrefix(hostport, "["):
		host, port, err := net.SplitHostPort(hostport)
		if err != nil {
			// [::1] without a port
			if strings.HasSuffix(hostport, "]") {
				d.Host = hostport[1 : len(hostport)-1]
				break
			}
			return Destination{}, invalid(s, err.Error())
		}
		d.Host = host
		if d.Port, err = parsePort(port); err != nil {
			return Destination{}, invalid(s, err.Error())
		}
	case strings.Count(hostport, ":") == 1:
		host, port, _ := strings.Cut(hostport, ":")
		d.Host = host
		var err error
		if d.Port, err = parsePort(port); err != nil {
			return Destination{}, invalid(s, err.Error())
		}
	}
	// More than one colon without brackets is a bare IPv6 address.

	if d.Host == "" {
		return Destination{}, invalid(s, "empty host")
	}
	return d, nil
}

// ParseAll parses every argument, stopping at the first invalid one.
func ParseAll(args []string) ([]Destination, error) {
	out := make([]Destination, 0, len(args))
	for _, arg := range args {
		d, err := Parse(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return port, nil
}

func invalid(s, reason string) error {
	return fmt.Errorf("%w %q: %s", qerrors.ErrInvalidDestination, s, reason)
}

// Address returns host:port suitable for net.Dial.
func (d Destination) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// String returns login@host, adding the port when it is not 22.
func (d Destination) String() string {
	host := d.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if d.Port == constants.DefaultPort {
		return d.Login + "@" + host
	}
	return d.Login + "@" + host + ":" + strconv.Itoa(d.Port)
}
