package utilities

import (
	"net"

	"github.com/pkg/errors"
)

// RetrievePhysicalMacAddr lists hardware addresses of interfaces that are up,
// skipping locally administered ones (docker bridges, veths).
func RetrievePhysicalMacAddr() ([]string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list network interfaces")
	}

	var macs []string
	for _, ifa := range interfaces {
		if ifa.Flags&net.FlagUp == 0 || len(ifa.HardwareAddr) == 0 {
			continue
		}
		if ifa.HardwareAddr[0]&0x02 != 0 {
			continue
		}
		macs = append(macs, ifa.HardwareAddr.String())
	}
	return macs, nil
}

// GetOutboundIP returns the local address the kernel would route public
// traffic from. No packet is sent.
func GetOutboundIP() (ip net.IP, err error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve outbound route")
	}
	defer func() {
		if cErr := conn.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, errors.Errorf("unexpected local address %v", conn.LocalAddr())
	}
	return addr.IP, nil
}
