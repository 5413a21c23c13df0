package capture

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsOwnIP(t *testing.T) {
	own := net.ParseIP("192.168.1.10")
	meta := NewStaticInterfaceMeta("eth0", net.HardwareAddr{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, []net.IP{own}, PrecisionMicrosecond)

	assert.True(t, meta.IsOwnIP(own))
	assert.False(t, meta.IsOwnIP(net.ParseIP("192.168.1.11")))
	assert.False(t, meta.IsOwnIP(nil))
}
