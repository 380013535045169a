package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-cat/command"
	"github.com/arloliu/go-cat/logger"
	"github.com/arloliu/go-cat/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	logger.SetLevel(logger.ParseLevel(logLevel))

	os.Exit(m.Run())
}

// testRig is a minimal text-protocol device: "SVnnn;" sets a value, "SV;" queries it.
type testRig struct {
	encodeCalls atomic.Int32
	class       *Class
}

func newTestRig() *testRig {
	r := &testRig{}
	r.class = &Class{
		Name:       "TestRig",
		Vendor:     "Acme",
		Transports: []transport.Type{transport.TypeSerial, transport.TypeMock},
		Params:     command.Object(command.Int("address", 0, 255).Default(0x94)),
		Delimiter:  ';',
		Commands:   r.commands,
	}

	return r
}

func (r *testRig) commands(_ command.Params) *command.Registry {
	valueSchema := command.Object(command.Int("value", 0, 999))

	return command.NewBuilder().
		Set("setValue", valueSchema, func(p command.Params) []byte {
			r.encodeCalls.Add(1)
			return []byte(fmt.Sprintf("SV%03d;", p.Int("value")))
		}).
		Get("getValue", nil, func(command.Params) []byte {
			return []byte("SV;")
		}, func(frame []byte) (any, bool) {
			s := string(frame)
			if !strings.HasPrefix(s, "SV") || len(s) != 6 {
				return nil, false
			}
			n, err := strconv.Atoi(s[2:5])
			if err != nil {
				return nil, false
			}

			return n, true
		}).
		Exec("slow", nil, func(ctx context.Context, x command.Exchanger, _ command.Params) (any, error) {
			if err := x.Write(ctx, []byte("A1;")); err != nil {
				return nil, err
			}
			select {
			case <-time.After(200 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			return "done", x.Write(ctx, []byte("A2;"))
		}).
		Set("quick", nil, func(command.Params) []byte { return []byte("B;") }).
		Declare("optionalCmd", command.Object(command.Bool("enabled")), true).
		Build()
}

func openRig(t *testing.T, opts ...Option) (*Device, *transport.Mock, *testRig) {
	t.Helper()

	rig := newTestRig()
	mock := transport.NewMock(transport.TypeSerial)

	dev, err := New(rig.class, mock, nil, opts...)
	require.NoError(t, err)
	require.NoError(t, dev.Open(context.Background(), OpenOptions{LogDevice: true, LogTransport: true}))
	t.Cleanup(func() { _ = dev.Close() })

	return dev, mock, rig
}

func echoValue(p []byte) [][]byte {
	return [][]byte{[]byte("XX1;"), []byte("SV0"), []byte("42;")}
}

func TestNew_UnsupportedTransport(t *testing.T) {
	rig := newTestRig()

	_, err := New(rig.class, transport.NewMock(transport.TypeWebSocket), nil)
	require.ErrorIs(t, err, ErrUnsupportedTransport)

	var uerr *UnsupportedTransportError
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, "TestRig", uerr.Device)
	require.Equal(t, transport.TypeWebSocket, uerr.Transport)
	require.Contains(t, err.Error(), "serial")
}

func TestNew_InvalidParams(t *testing.T) {
	rig := newTestRig()

	_, err := New(rig.class, transport.NewMock(transport.TypeSerial), command.Params{"address": 300})
	require.ErrorIs(t, err, command.ErrValidation)

	var verr *command.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "address", verr.Field)
	require.Equal(t, command.ConstraintMaximum, verr.Constraint)

	dev, err := New(rig.class, transport.NewMock(transport.TypeSerial), nil)
	require.NoError(t, err)
	require.Equal(t, int64(0x94), dev.Params().Int("address"))
}

func TestNew_InvalidClass(t *testing.T) {
	_, err := New(&Class{Name: "x"}, transport.NewMock(""), nil)
	require.ErrorIs(t, err, ErrClassInvalid)

	_, err = New(nil, transport.NewMock(""), nil)
	require.ErrorIs(t, err, ErrClassInvalid)
}

func TestInvoke_NotOpen(t *testing.T) {
	rig := newTestRig()
	mock := transport.NewMock(transport.TypeSerial)
	dev, err := New(rig.class, mock, nil)
	require.NoError(t, err)

	_, err = dev.Invoke(context.Background(), "setValue", command.Params{"value": 1})
	require.ErrorIs(t, err, ErrDeviceNotOpen)
	require.Zero(t, mock.WriteCount())
	require.False(t, dev.gate.Locked())
}

func TestCommands_Introspection(t *testing.T) {
	dev, _, _ := openRig(t)

	require.Equal(t, []string{"setValue", "getValue", "slow", "quick"}, dev.Commands())
	require.True(t, dev.ImplementsCommand("setValue"))
	require.False(t, dev.ImplementsCommand("optionalCmd"))
	require.True(t, dev.DeclaresCommand("optionalCmd"))

	schema, err := dev.CommandSchema("optionalCmd")
	require.NoError(t, err)
	require.Equal(t, "object", schema["type"])

	_, err = dev.CommandSchema("nope")
	require.ErrorIs(t, err, ErrUnknownCommand)

	_, err = dev.Invoke(context.Background(), "nope", nil)
	require.ErrorIs(t, err, ErrUnknownCommand)

	_, err = dev.Invoke(context.Background(), "optionalCmd", command.Params{"enabled": true})
	require.ErrorIs(t, err, ErrNotImplemented)
	var nerr *NotImplementedError
	require.ErrorAs(t, err, &nerr)
	require.Equal(t, "optionalCmd", nerr.Command)
}

func TestInvoke_ValidationNeverReachesEncoder(t *testing.T) {
	dev, mock, rig := openRig(t)

	tests := []struct {
		name       string
		params     command.Params
		constraint command.Constraint
	}{
		{"below minimum", command.Params{"value": -1}, command.ConstraintMinimum},
		{"above maximum", command.Params{"value": 1000}, command.ConstraintMaximum},
		{"wrong type", command.Params{"value": "ten"}, command.ConstraintType},
		{"missing", command.Params{}, command.ConstraintRequired},
		{"unknown field", command.Params{"value": 1, "vfo": "A"}, command.ConstraintUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dev.Invoke(context.Background(), "setValue", tt.params)
			require.ErrorIs(t, err, command.ErrValidation)

			var verr *command.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tt.constraint, verr.Constraint)
		})
	}

	require.Zero(t, rig.encodeCalls.Load())
	require.Zero(t, mock.WriteCount())

	_, err := dev.Invoke(context.Background(), "setValue", command.Params{"value": 999})
	require.NoError(t, err)
	require.Equal(t, int32(1), rig.encodeCalls.Load())
}

func TestInvoke_SetResolvesAfterWrite(t *testing.T) {
	dev, mock, _ := openRig(t)

	result, err := dev.Invoke(context.Background(), "setValue", command.Params{"value": 7})
	require.NoError(t, err)
	require.Nil(t, result)
	require.Equal(t, []byte("SV007;"), mock.LastWrite())
}

func TestInvoke_GetFirstMatchingFrame(t *testing.T) {
	dev, mock, _ := openRig(t)

	// replies are injected before Write returns, so this only passes when the
	// query subscribes before writing
	mock.OnWrite(echoValue)

	v, err := dev.Invoke(context.Background(), "getValue", nil)
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, []byte("SV;"), mock.LastWrite())
}

func TestInvoke_Timeout(t *testing.T) {
	dev, mock, _ := openRig(t, WithResponseTimeout(50*time.Millisecond))

	mock.OnWrite(func([]byte) [][]byte { return [][]byte{[]byte("XX1;")} })

	start := time.Now()
	_, err := dev.Invoke(context.Background(), "getValue", nil)
	require.ErrorIs(t, err, ErrTimeout)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	var terr *TimeoutError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, "getValue", terr.Command)
	require.Equal(t, 50*time.Millisecond, terr.Deadline)
	require.True(t, terr.Timeout())

	// the gate was released and the frame subscription torn down
	require.False(t, dev.gate.Locked())
	require.Eventually(t, func() bool { return dev.responses.Len() == 0 }, time.Second, 5*time.Millisecond)

	_, err = dev.Invoke(context.Background(), "quick", nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), dev.GetMetrics().TimeoutCount.Load())
}

func TestInvoke_CallTimeout(t *testing.T) {
	dev, _, _ := openRig(t)

	start := time.Now()
	_, err := dev.Invoke(context.Background(), "getValue", nil, CallTimeout(20*time.Millisecond))
	require.ErrorIs(t, err, ErrTimeout)
	require.Less(t, time.Since(start), DefaultResponseTimeout)
}

func TestFrames_IdleWatcherDoesNotStallCommands(t *testing.T) {
	dev, mock, _ := openRig(t, WithFrameBufferSize(1))

	idle := dev.Frames()
	require.NotNil(t, idle)
	defer idle.Close()

	for i := 0; i < 5; i++ {
		mock.InjectString("XX1;")
	}
	require.Eventually(t, func() bool { return idle.Dropped() > 0 }, time.Second, time.Millisecond)

	start := time.Now()
	_, err := dev.Invoke(context.Background(), "getValue", nil, CallTimeout(50*time.Millisecond))
	require.ErrorIs(t, err, ErrTimeout)
	require.Less(t, time.Since(start), time.Second)
	require.False(t, dev.gate.Locked())

	mock.OnWrite(echoValue)
	v, err := dev.Invoke(context.Background(), "getValue", nil, CallTimeout(time.Second))
	require.NoError(t, err)
	require.Equal(t, 42, v)

	closed := make(chan error, 1)
	go func() { closed <- dev.Close() }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		require.FailNow(t, "close blocked by an idle frame watcher")
	}

	_, ok := <-idle.C()
	require.False(t, ok)
}

func TestFrames_NotOpen(t *testing.T) {
	rig := newTestRig()
	dev, err := New(rig.class, transport.NewMock(transport.TypeSerial), nil)
	require.NoError(t, err)

	require.Nil(t, dev.Frames())
}

func TestInvoke_MutualExclusion(t *testing.T) {
	dev, mock, _ := openRig(t)

	slowDone := make(chan error, 1)
	go func() {
		_, err := dev.Invoke(context.Background(), "slow", nil)
		slowDone <- err
	}()

	require.Eventually(t, func() bool { return mock.WriteCount() == 1 }, time.Second, time.Millisecond)

	_, err := dev.Invoke(context.Background(), "quick", nil)
	require.NoError(t, err)
	require.NoError(t, <-slowDone)

	require.Equal(t, [][]byte{[]byte("A1;"), []byte("A2;"), []byte("B;")}, mock.Writes())
}

func TestInvoke_TransportFailureReleasesGate(t *testing.T) {
	dev, mock, _ := openRig(t)

	boom := errors.New("drain failed")
	mock.FailWrites(boom)

	_, err := dev.Invoke(context.Background(), "getValue", nil)
	require.ErrorIs(t, err, transport.ErrTransport)
	require.ErrorIs(t, err, boom)
	require.False(t, dev.gate.Locked())

	mock.FailWrites(nil)
	_, err = dev.Invoke(context.Background(), "quick", nil)
	require.NoError(t, err)
}

func TestInvoke_ContextCancelledWhileWaitingForGate(t *testing.T) {
	dev, _, _ := openRig(t)

	require.NoError(t, dev.gate.Lock(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := dev.Invoke(ctx, "quick", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	dev.gate.Unlock()
	require.False(t, dev.gate.Locked())
}

func TestClose_PendingQuery(t *testing.T) {
	dev, mock, _ := openRig(t, WithResponseTimeout(5*time.Second))

	hookCalled := make(chan struct{})
	dev.OnClose(func() { close(hookCalled) })

	errCh := make(chan error, 1)
	go func() {
		_, err := dev.Invoke(context.Background(), "getValue", nil)
		errCh <- err
	}()

	require.Eventually(t, func() bool { return mock.WriteCount() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, dev.Close())
	<-hookCalled
	require.False(t, dev.IsOpen())
	require.False(t, mock.IsOpen())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrDeviceNotOpen)
	case <-time.After(time.Second):
		require.FailNow(t, "pending query not abandoned")
	}

	require.NoError(t, dev.Close(), "closing a closed device is a no-op")
}

func TestOpen_Reopen(t *testing.T) {
	dev, mock, _ := openRig(t)

	require.NoError(t, dev.Close())
	require.NoError(t, dev.Open(context.Background()))
	require.True(t, dev.IsOpen())
	require.Equal(t, 2, mock.OpenCount())

	mock.OnWrite(echoValue)
	v, err := dev.Invoke(context.Background(), "getValue", nil)
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestOpen_TransportFailure(t *testing.T) {
	rig := newTestRig()
	mock := transport.NewMock(transport.TypeSerial)
	mock.FailOpen(errors.New("port busy"))

	dev, err := New(rig.class, mock, nil)
	require.NoError(t, err)

	require.ErrorIs(t, dev.Open(context.Background()), transport.ErrTransport)
	require.False(t, dev.IsOpen())
}

func TestDeviceLog(t *testing.T) {
	dev, mock, _ := openRig(t)

	devLog := dev.DeviceLog()
	defer devLog.Close()
	trafficLog := dev.TransportLog()
	defer trafficLog.Close()

	mock.OnWrite(echoValue)
	_, err := dev.Invoke(context.Background(), "getValue", nil)
	require.NoError(t, err)
	_, err = dev.Invoke(context.Background(), "setValue", command.Params{"value": 5000})
	require.Error(t, err)

	ok := <-devLog.C()
	assert.Equal(t, "getValue", ok.Command)
	assert.Equal(t, "TestRig", ok.Device)
	assert.Equal(t, 42, ok.Result)
	assert.True(t, ok.OK())

	failed := <-devLog.C()
	assert.Equal(t, "setValue", failed.Command)
	assert.ErrorIs(t, failed.Err, command.ErrValidation)
	assert.False(t, failed.OK())

	// replies may be framed before the write is logged, so compare per direction
	var tx, rx [][]byte
	for i := 0; i < 3; i++ {
		e := <-trafficLog.C()
		if e.Direction == Tx {
			tx = append(tx, e.Data)
		} else {
			rx = append(rx, e.Data)
		}
	}
	assert.Equal(t, [][]byte{[]byte("SV;")}, tx)
	assert.Equal(t, [][]byte{[]byte("XX1;"), []byte("SV042;")}, rx)
}

func TestDeviceLog_EarlyRejections(t *testing.T) {
	dev, mock, _ := openRig(t)

	devLog := dev.DeviceLog()
	defer devLog.Close()

	_, err := dev.Invoke(context.Background(), "noSuchCommand", nil)
	require.ErrorIs(t, err, ErrUnknownCommand)
	_, err = dev.Invoke(context.Background(), "optionalCmd", command.Params{"enabled": true})
	require.ErrorIs(t, err, ErrNotImplemented)

	require.NoError(t, dev.Close())
	_, err = dev.Invoke(context.Background(), "quick", nil)
	require.ErrorIs(t, err, ErrDeviceNotOpen)

	unknown := <-devLog.C()
	assert.Equal(t, "noSuchCommand", unknown.Command)
	assert.ErrorIs(t, unknown.Err, ErrUnknownCommand)

	notImpl := <-devLog.C()
	assert.Equal(t, "optionalCmd", notImpl.Command)
	assert.ErrorIs(t, notImpl.Err, ErrNotImplemented)
	assert.Equal(t, command.Params{"enabled": true}, notImpl.Params)

	notOpen := <-devLog.C()
	assert.Equal(t, "quick", notOpen.Command)
	assert.ErrorIs(t, notOpen.Err, ErrDeviceNotOpen)
	assert.False(t, notOpen.OK())

	require.Zero(t, mock.WriteCount())
}

func TestMetrics(t *testing.T) {
	dev, mock, _ := openRig(t)
	mock.OnWrite(echoValue)

	_, err := dev.Invoke(context.Background(), "getValue", nil)
	require.NoError(t, err)

	m := dev.GetMetrics()
	require.Equal(t, uint64(1), m.CommandCount.Load())
	require.Equal(t, uint64(3), m.BytesSent.Load())
	require.Eventually(t, func() bool { return m.FrameRecvCount.Load() == 2 }, time.Second, time.Millisecond)
	require.Zero(t, m.CommandErrCount.Load())
}

func TestConfig(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)
	require.Equal(t, DefaultResponseTimeout, cfg.ResponseTimeout())
	require.NotNil(t, cfg.GetLogger())

	_, err = NewConfig(WithResponseTimeout(time.Millisecond))
	require.Error(t, err)
	_, err = NewConfig(WithResponseTimeout(2 * time.Minute))
	require.Error(t, err)
	_, err = NewConfig(WithLogBufferSize(0))
	require.Error(t, err)
	_, err = NewConfig(WithFrameBufferSize(0))
	require.Error(t, err)
	_, err = NewConfig(WithLogger(nil))
	require.Error(t, err)

	cfg, err = NewConfig(WithResponseTimeout(250 * time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, cfg.ResponseTimeout())
}
