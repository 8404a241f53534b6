package rsp

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeTestPacket(payload string) []byte {
	return []byte(fmt.Sprintf("$%s#%02x", payload, checksum([]byte(payload))))
}

func TestReadPacket_Basic(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	f := NewFramer(server, 0)
	done := make(chan struct{})
	var payload []byte
	var err error
	go func() {
		payload, err = f.ReadPacket(context.Background(), 4096)
		close(done)
	}()

	_, writeErr := client.Write(encodeTestPacket("?"))
	require.NoError(t, writeErr)

	ack := make([]byte, 1)
	_, readErr := client.Read(ack)
	require.NoError(t, readErr)
	require.Equal(t, byte('+'), ack[0])

	<-done
	require.NoError(t, err)
	require.Equal(t, "?", string(payload))
}

func TestReadPacket_ChecksumMismatchRetransmits(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	f := NewFramer(server, 0)
	done := make(chan struct{})
	var payload []byte
	var err error
	go func() {
		payload, err = f.ReadPacket(context.Background(), 4096)
		close(done)
	}()

	_, writeErr := client.Write([]byte("$g#00"))
	require.NoError(t, writeErr)
	nack := make([]byte, 1)
	_, readErr := client.Read(nack)
	require.NoError(t, readErr)
	require.Equal(t, byte('-'), nack[0])

	_, writeErr = client.Write(encodeTestPacket("g"))
	require.NoError(t, writeErr)
	ack := make([]byte, 1)
	_, readErr = client.Read(ack)
	require.NoError(t, readErr)
	require.Equal(t, byte('+'), ack[0])

	<-done
	require.NoError(t, err)
	require.Equal(t, "g", string(payload))
}

func TestReadPacket_LeadingInterruptReturnsEmptyPacket(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	f := NewFramer(server, 0)
	var interrupted bool
	f.OnInterrupt = func() { interrupted = true }

	done := make(chan struct{})
	var payload []byte
	var err error
	go func() {
		payload, err = f.ReadPacket(context.Background(), 4096)
		close(done)
	}()

	_, writeErr := client.Write([]byte{0x03})
	require.NoError(t, writeErr)

	<-done
	require.NoError(t, err)
	require.Empty(t, payload)
	require.True(t, interrupted)
}

func TestReadPacket_StrayAcksIgnoredDuringSync(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	f := NewFramer(server, 0)
	done := make(chan struct{})
	var payload []byte
	var err error
	go func() {
		payload, err = f.ReadPacket(context.Background(), 4096)
		close(done)
	}()

	_, writeErr := client.Write([]byte("+-"))
	require.NoError(t, writeErr)
	_, writeErr = client.Write(encodeTestPacket("?"))
	require.NoError(t, writeErr)

	ack := make([]byte, 1)
	_, readErr := client.Read(ack)
	require.NoError(t, readErr)

	<-done
	require.NoError(t, err)
	require.Equal(t, "?", string(payload))
}

func TestReadPacket_BinaryEscapeRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	f := NewFramer(server, 0)
	done := make(chan struct{})
	var payload []byte
	var err error
	go func() {
		payload, err = f.ReadPacket(context.Background(), 4096)
		close(done)
	}()

	raw := []byte{'X', 'f', 'e', 'e', 'd', 'f', 'a', 'c', 'e', ',', '3', ':', 0x7d, 0x5d, 0x01, 0x02}
	sum := checksum(raw)
	hi, lo := hexByte(sum)
	frame := append([]byte{'$'}, raw...)
	frame = append(frame, '#', hi, lo)

	_, writeErr := client.Write(frame)
	require.NoError(t, writeErr)
	ack := make([]byte, 1)
	_, readErr := client.Read(ack)
	require.NoError(t, readErr)
	require.Equal(t, byte('+'), ack[0])

	<-done
	require.NoError(t, err)
	require.Equal(t, "Xfeedface,3:\x7d\x01\x02", string(payload))
}

func TestReadPacket_BufferTooSmall(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	f := NewFramer(server, 0)
	done := make(chan struct{})
	var err error
	go func() {
		_, err = f.ReadPacket(context.Background(), 2)
		close(done)
	}()

	_, writeErr := client.Write(encodeTestPacket("qsomethinglonger"))
	require.NoError(t, writeErr)

	<-done
	require.ErrorIs(t, err, BufferTooSmall)
}

func TestWritePacket_ChecksumLaw(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	f := NewFramer(server, 0)
	done := make(chan struct{})
	var err error
	go func() {
		err = f.WritePacket(context.Background(), []byte("OK"))
		close(done)
	}()

	buf := make([]byte, 64)
	n, readErr := client.Read(buf)
	require.NoError(t, readErr)
	require.Equal(t, "$OK#9a", string(buf[:n]))

	_, writeErr := client.Write([]byte{'+'})
	require.NoError(t, writeErr)
	<-done
	require.NoError(t, err)
}

func TestWritePacket_RetransmitsOnNegativeAck(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	f := NewFramer(server, 0)
	done := make(chan struct{})
	var err error
	go func() {
		err = f.WritePacket(context.Background(), []byte("OK"))
		close(done)
	}()

	buf := make([]byte, 64)
	n, readErr := client.Read(buf)
	require.NoError(t, readErr)
	first := string(buf[:n])

	_, writeErr := client.Write([]byte{'-'})
	require.NoError(t, writeErr)

	n, readErr = client.Read(buf)
	require.NoError(t, readErr)
	require.Equal(t, first, string(buf[:n]))

	_, writeErr = client.Write([]byte{'+'})
	require.NoError(t, writeErr)
	<-done
	require.NoError(t, err)
}

func TestWritePacket_InterruptDoesNotRetransmit(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	f := NewFramer(server, 0)
	var interrupted bool
	f.OnInterrupt = func() { interrupted = true }

	done := make(chan struct{})
	var err error
	go func() {
		err = f.WritePacket(context.Background(), []byte("OK"))
		close(done)
	}()

	buf := make([]byte, 64)
	_, readErr := client.Read(buf)
	require.NoError(t, readErr)

	_, writeErr := client.Write([]byte{0x03})
	require.NoError(t, writeErr)
	_, writeErr = client.Write([]byte{'+'})
	require.NoError(t, writeErr)

	<-done
	require.NoError(t, err)
	require.True(t, interrupted)
}

func TestWritePacket_ProtocolViolation(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	f := NewFramer(server, 0)
	done := make(chan struct{})
	var err error
	go func() {
		err = f.WritePacket(context.Background(), []byte("OK"))
		close(done)
	}()

	buf := make([]byte, 64)
	_, readErr := client.Read(buf)
	require.NoError(t, readErr)

	_, writeErr := client.Write([]byte{'z'})
	require.NoError(t, writeErr)

	<-done
	require.ErrorIs(t, err, ErrProtocolViolation)
}

func TestHexReversedRoundTrip(t *testing.T) {
	v := []byte{0x01, 0x02, 0x03, 0x04}
	encoded := EncodeHexReversed(v, 32)
	require.Equal(t, "04030201", encoded)

	decoded, ok := DecodeHexReversed(encoded, 32)
	require.True(t, ok)
	require.Equal(t, v, decoded)
}

func TestHexForwardRoundTrip(t *testing.T) {
	v := []byte{0xde, 0xad, 0xbe, 0xef}
	encoded := EncodeHex(v)
	require.Equal(t, "deadbeef", encoded)

	decoded, ok := DecodeHex(encoded)
	require.True(t, ok)
	require.Equal(t, v, decoded)
}
