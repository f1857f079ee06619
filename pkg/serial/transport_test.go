package serial

import (
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipePort(t *testing.T) (*Port, net.Conn) {
	t.Helper()
	device, host := net.Pipe()
	port := newPort("pipe", host, logrus.New())
	t.Cleanup(func() {
		port.Close()
		device.Close()
	})
	return port, device
}

func TestReadLineStripsLineEndings(t *testing.T) {
	port, device := pipePort(t)

	go func() {
		device.Write([]byte("-42 ESSID: Net Ch: 6 BSSID: AA:BB:CC:DD:EE:FF\r\n"))
	}()

	line, err := port.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "-42 ESSID: Net Ch: 6 BSSID: AA:BB:CC:DD:EE:FF", line)
}

func TestReadLineReturnsPartialLineBeforeDisconnect(t *testing.T) {
	port, device := pipePort(t)

	go func() {
		device.Write([]byte("partial line"))
		device.Close()
	}()

	line, err := port.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "partial line", line)

	_, err = port.ReadLine()
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestCloseUnblocksPendingRead(t *testing.T) {
	port, _ := pipePort(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := port.ReadLine()
		errCh <- err
	}()

	// Give the reader a moment to block, then close underneath it.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, port.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrDisconnected)
	case <-time.After(2 * time.Second):
		t.Fatal("ReadLine did not unblock on Close")
	}
}

func TestWriteAppendsNewline(t *testing.T) {
	port, device := pipePort(t)

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := device.Read(buf)
		got <- buf[:n]
	}()

	require.NoError(t, port.Write([]byte("scanap")))
	assert.Equal(t, "scanap\n", string(<-got))
}

func TestWritePreservesExistingNewline(t *testing.T) {
	port, device := pipePort(t)

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := device.Read(buf)
		got <- buf[:n]
	}()

	require.NoError(t, port.Write([]byte("stopscan\n")))
	assert.Equal(t, "stopscan\n", string(<-got))
}

func TestWriteAfterClose(t *testing.T) {
	port, _ := pipePort(t)

	require.NoError(t, port.Close())
	require.NoError(t, port.Close(), "close must be idempotent")
	assert.ErrorIs(t, port.Write([]byte("scanap")), ErrNotOpen)
}
