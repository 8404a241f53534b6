package session_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coredump-labs/rspd/internal/demotarget"
	"github.com/coredump-labs/rspd/internal/session"
	"github.com/coredump-labs/rspd/pkg/target"
)

func TestAttach_HaltsTargetAndConsumesOpeningAck(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	tgt := demotarget.New()
	tgt.SetState(target.StateRunning)

	sess := session.New(server, tgt, 0, nil, nil)

	done := make(chan error, 1)
	go func() {
		done <- sess.Attach(context.Background(), func(target.Event) {})
	}()

	_, err := client.Write([]byte{'+'})
	require.NoError(t, err)

	require.NoError(t, <-done)
	require.Equal(t, target.StateHalted, tgt.State())
	require.Equal(t, session.FrontendHalted, sess.FrontendState())
}

func TestCtrlCPending_SetByInterruptByte(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	tgt := demotarget.New()
	sess := session.New(server, tgt, 0, nil, nil)

	readDone := make(chan struct{})
	go func() {
		_, _ = sess.ReadPacket(context.Background(), 4096)
		close(readDone)
	}()

	_, err := client.Write([]byte{0x03})
	require.NoError(t, err)
	<-readDone

	require.True(t, sess.CtrlCPending())
	sess.ClearCtrlCPending()
	require.False(t, sess.CtrlCPending())
}
