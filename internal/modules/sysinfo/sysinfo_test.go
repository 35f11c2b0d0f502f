package sysinfo

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_PrintsHostInfo(t *testing.T) {
	m := Module{Info: func(context.Context) (*host.InfoStat, error) {
		return &host.InfoStat{
			Hostname:        "ghost",
			OS:              "linux",
			Platform:        "debian",
			PlatformVersion: "12",
			KernelVersion:   "6.1.0",
			KernelArch:      "aarch64",
		}, nil
	}}
	var out bytes.Buffer

	require.NoError(t, m.Run(context.Background(), &out, nil))
	assert.Contains(t, out.String(), "System Information:\n")
	assert.Contains(t, out.String(), "  OS: linux 6.1.0\n")
	assert.Contains(t, out.String(), "  Platform: debian 12\n")
	assert.Contains(t, out.String(), "  Hostname: ghost\n")
}

func TestRun_InfoFailure(t *testing.T) {
	m := Module{Info: func(context.Context) (*host.InfoStat, error) {
		return nil, errors.New("no proc")
	}}
	err := m.Run(context.Background(), &bytes.Buffer{}, nil)
	assert.ErrorContains(t, err, "no proc")
}
