package portaudio

import (
	"testing"

	"github.com/gordonklaus/portaudio"
	"github.com/stretchr/testify/assert"
)

func Test_bestDevicePrefersPulseOverDefault(t *testing.T) {
	devices := []*portaudio.DeviceInfo{
		{Name: "default", MaxInputChannels: 2},
		{Name: "pulse", MaxInputChannels: 2},
		{Name: "hw:0,0", MaxInputChannels: 2},
	}
	best := bestDevice(devices, 2, func(d *portaudio.DeviceInfo) int { return d.MaxInputChannels })
	assert := assert.New(t)
	assert.NotNil(best)
	assert.Equal("pulse", best.Name)
}

func Test_bestDeviceSkipsMonitorsAndZeroChannelDevices(t *testing.T) {
	devices := []*portaudio.DeviceInfo{
		{Name: "Monitor of HDMI", MaxInputChannels: 2},
		{Name: "plughw:1,0", MaxInputChannels: 0},
		{Name: "default", MaxInputChannels: 2},
	}
	best := bestDevice(devices, 2, func(d *portaudio.DeviceInfo) int { return d.MaxInputChannels })
	assert.NotNil(t, best)
	assert.Equal(t, "default", best.Name)
}

func Test_bestDeviceReturnsNilWhenNoneQualify(t *testing.T) {
	devices := []*portaudio.DeviceInfo{
		{Name: "Monitor", MaxInputChannels: 2},
	}
	best := bestDevice(devices, 2, func(d *portaudio.DeviceInfo) int { return d.MaxInputChannels })
	assert.Nil(t, best)
}
