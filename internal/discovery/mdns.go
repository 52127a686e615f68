// ABOUTME: mDNS advertisement for the Sendspin player
// ABOUTME: Publishes _sendspin._tcp with the WebSocket path in a TXT record
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the DNS-SD service type controllers browse for.
	ServiceType = "_sendspin._tcp"

	// TXTPath tells controllers where the WebSocket endpoint lives.
	TXTPath = "path=/sendspin"
)

// Config holds advertisement configuration.
type Config struct {
	InstanceName string
	Port         int
}

// Advertiser publishes the player's presence on the local network so a
// controller can find it and open an inbound session.
type Advertiser struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
	server *mdns.Server
}

// NewAdvertiser creates an advertiser for the given instance.
func NewAdvertiser(config Config) *Advertiser {
	ctx, cancel := context.WithCancel(context.Background())
	return &Advertiser{config: config, ctx: ctx, cancel: cancel}
}

// Start begins advertising. The advertisement stays up until Stop.
func (a *Advertiser) Start() error {
	ips, err := localIPs()
	if err != nil {
		return fmt.Errorf("enumerate local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		a.config.InstanceName,
		ServiceType,
		"",
		"",
		a.config.Port,
		ips,
		[]string{TXTPath},
	)
	if err != nil {
		return fmt.Errorf("create mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("create mdns server: %w", err)
	}
	a.server = server

	log.Printf("Advertising %s as %q on port %d", ServiceType, a.config.InstanceName, a.config.Port)

	go func() {
		<-a.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() {
	a.cancel()
}

// localIPs returns non-loopback IPv4 addresses of up interfaces.
func localIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
