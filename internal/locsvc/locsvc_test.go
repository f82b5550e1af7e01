package locsvc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyDevice(t *testing.T) {
	cases := []struct {
		name string
		want DeviceKind
	}{
		{"ata0", KindATA},
		{"ATA1", KindATA},
		{"disk0", KindOther},
		{"usb0", KindOther},
		{"", KindOther},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifyDevice(c.name), c.name)
	}
}
