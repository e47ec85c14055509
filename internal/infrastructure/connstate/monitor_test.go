package connstate_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/connstate"
)

type flakyProbe struct {
	fail atomic.Bool
}

func (p *flakyProbe) probe(context.Context) error {
	if p.fail.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestMonitor_InitialStateIsConnecting(t *testing.T) {
	p := &flakyProbe{}
	m := connstate.NewMonitor("test", p.probe, connstate.Config{}, quietLogger())
	require.Equal(t, connstate.Connecting, m.State())
	require.False(t, m.IsReady())
}

func TestMonitor_Transitions(t *testing.T) {
	p := &flakyProbe{}
	m := connstate.NewMonitor("test", p.probe, connstate.Config{MaxReconnectFailures: 2}, quietLogger())
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	require.Equal(t, connstate.Ready, m.State())

	p.fail.Store(true)
	require.Error(t, m.Probe(ctx))
	require.Equal(t, connstate.Reconnecting, m.State())
	require.False(t, m.IsReady())

	require.Error(t, m.Probe(ctx))
	require.Equal(t, connstate.Disconnected, m.State())

	p.fail.Store(false)
	require.NoError(t, m.Probe(ctx))
	require.Equal(t, connstate.Ready, m.State())

	m.Stop()
	require.Equal(t, connstate.Closed, m.State())
	require.NoError(t, m.Probe(ctx))
	require.Equal(t, connstate.Closed, m.State())
}

func TestMonitor_FailedInitialConnectIsDisconnected(t *testing.T) {
	p := &flakyProbe{}
	p.fail.Store(true)
	m := connstate.NewMonitor("test", p.probe, connstate.Config{}, quietLogger())
	require.Error(t, m.Start(context.Background()))
	require.Equal(t, connstate.Disconnected, m.State())
}

func TestMonitor_ReportFailure(t *testing.T) {
	p := &flakyProbe{}
	m := connstate.NewMonitor("test", p.probe, connstate.Config{}, quietLogger())
	require.NoError(t, m.Start(context.Background()))

	m.ReportFailure(errors.New("broken pipe"))
	require.Equal(t, connstate.Reconnecting, m.State())

	m.ReportFailure(errors.New("broken pipe"))
	require.Equal(t, connstate.Reconnecting, m.State())
}

func TestMonitor_BackgroundLoopRecovers(t *testing.T) {
	p := &flakyProbe{}
	p.fail.Store(true)
	m := connstate.NewMonitor("test", p.probe, connstate.Config{Interval: 10 * time.Millisecond}, quietLogger())
	require.Error(t, m.Start(context.Background()))
	defer m.Stop()

	p.fail.Store(false)
	require.Eventually(t, m.IsReady, time.Second, 10*time.Millisecond)
}

func TestMonitor_StopWithoutStartReturns(t *testing.T) {
	p := &flakyProbe{}
	m := connstate.NewMonitor("test", p.probe, connstate.Config{Interval: time.Second}, quietLogger())

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a monitor that was never started")
	}
	require.Equal(t, connstate.Closed, m.State())

	require.NoError(t, m.Start(context.Background()))
	require.Equal(t, connstate.Closed, m.State())
	m.Stop()
}

func TestMonitor_RepeatedStartRunsOneLoop(t *testing.T) {
	for _, interval := range []time.Duration{0, 10 * time.Millisecond} {
		p := &flakyProbe{}
		m := connstate.NewMonitor("test", p.probe, connstate.Config{Interval: interval}, quietLogger())
		require.NoError(t, m.Start(context.Background()))
		require.NotPanics(t, func() { require.NoError(t, m.Start(context.Background())) })
		require.True(t, m.IsReady())
		m.Stop()
		require.Equal(t, connstate.Closed, m.State())
	}
}

func TestState_String(t *testing.T) {
	require.Equal(t, "connecting", connstate.Connecting.String())
	require.Equal(t, "ready", connstate.Ready.String())
	require.Equal(t, "reconnecting", connstate.Reconnecting.String())
	require.Equal(t, "disconnected", connstate.Disconnected.String())
	require.Equal(t, "closed", connstate.Closed.String())
}
