package sctp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	body := []byte("hello room")
	frame := EncodeData(42, body)
	tsn, decoded, err := DecodeData(frame)
	require.NoError(t, err)
	require.Equal(t, uint32(42), tsn)
	require.Equal(t, body, decoded)
}

func TestAckRoundTrip(t *testing.T) {
	frame := EncodeAck(7)
	require.Len(t, frame, TSNSize)
	tsn, err := DecodeAck(frame)
	require.NoError(t, err)
	require.Equal(t, uint32(7), tsn)
}

func TestDecodeDataShortFrame(t *testing.T) {
	_, _, err := DecodeData([]byte{0, 1})
	require.Error(t, err)
}

func TestWindowNeverGoesNegative(t *testing.T) {
	w := NewWindow(1024)
	w.Reserve(100)
	w.Release(1000)
	require.Equal(t, 0, w.InFlight())
}

func TestWindowCanSendRespectsCwnd(t *testing.T) {
	w := NewWindow(100)
	require.True(t, w.CanSend(100))
	w.Reserve(100)
	require.False(t, w.CanSend(1))
	w.Release(50)
	require.True(t, w.CanSend(50))
	require.False(t, w.CanSend(51))
}

// TestSendReceiveNoLoss exercises a full sender/receiver pair over a real
// loopback UDP socket pair and checks the no-loss property: every sent
// datagram is received, and sent ≈ acked·AckBatchSize within one batch
// window.
func TestSendReceiveNoLoss(t *testing.T) {
	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	serverAddr := serverConn.LocalAddr().(*net.UDPAddr)
	clientConn, err := net.DialUDP("udp", nil, serverAddr)
	require.NoError(t, err)
	serverConn.Close()
	serverAsClient, err := net.DialUDP("udp", serverAddr, clientConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)

	cfg := Config{MSS: 64, Cwnd: 65536, BurstLimit: 32, AckBatchSize: 8, Mode: Batched}

	sender := NewSender(clientConn, cfg)
	receiver := NewReceiver(serverAsClient, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	out := make(chan []byte, 256)
	recvDone := make(chan Stats, 1)
	go func() {
		stats, _ := receiver.Run(ctx, out)
		recvDone <- stats
	}()

	const count = 100
	payloads := make(chan []byte, count)
	for i := 0; i < count; i++ {
		payloads <- []byte("payload-data-chunk")
	}
	close(payloads)

	sendStats, err := sender.Run(ctx, payloads)
	require.NoError(t, err)
	require.Equal(t, uint64(count), sendStats.Sent)

	time.Sleep(200 * time.Millisecond)
	cancel()
	recvStats := <-recvDone

	require.Equal(t, uint64(count), recvStats.Received)
	require.LessOrEqual(t, sendStats.Sent, recvStats.Received+uint64(cfg.AckBatchSize))
}
