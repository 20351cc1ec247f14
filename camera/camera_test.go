package camera

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// fakeDevice is a capture device producing synthetic frames, or read
// failures when ok is false.  Safe for use from the capture goroutine and
// the test goroutine.
type fakeDevice struct {
	mu     sync.Mutex
	ok     bool
	reads  int
	closed bool
}

func (d *fakeDevice) Read(dst *gocv.Mat) bool {

	d.mu.Lock()
	d.reads++
	ok := d.ok
	d.mu.Unlock()

	if !ok {
		return false
	}

	m := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3)
	defer m.Close()
	m.CopyTo(dst)

	// pace the capture loop like a real device would
	time.Sleep(time.Millisecond)

	return true
}

func (d *fakeDevice) Close() error {

	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	return nil
}

func (d *fakeDevice) readCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

func (d *fakeDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// testLogger discards output so failure path tests stay quiet.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns a Config with short delays suited to tests.
func testConfig() Config {

	cfg := DefaultConfig()
	cfg.MaxFailures = 2
	cfg.ReconnectDelay = time.Millisecond

	return cfg
}

func TestReadLatestFrame(t *testing.T) {

	dev := &fakeDevice{ok: true}

	cam := newWithOpener(testConfig(), testLogger(), func() (Device, error) {
		return dev, nil
	})

	require.NoError(t, cam.Start())
	defer cam.Close()

	require.Eventually(t, func() bool {
		frame, ok := cam.Read()

		if ok {
			frame.Close()
		}

		return ok
	}, 2*time.Second, 5*time.Millisecond)

	// each Read hands out an independent copy
	a, ok := cam.Read()
	require.True(t, ok)
	defer a.Close()

	b, ok := cam.Read()
	require.True(t, ok)
	defer b.Close()

	assert.NotEqual(t, a.Ptr(), b.Ptr())
	assert.Equal(t, 2, a.Rows())
	assert.Equal(t, 2, a.Cols())
}

func TestReadBeforeFirstFrame(t *testing.T) {

	cfg := testConfig()
	cfg.MaxFailures = 1000

	dev := &fakeDevice{ok: false}

	cam := newWithOpener(cfg, testLogger(), func() (Device, error) {
		return dev, nil
	})

	require.NoError(t, cam.Start())
	defer cam.Close()

	_, ok := cam.Read()
	assert.False(t, ok)
}

// TestReconnect checks the device handle is torn down and reopened after
// the configured number of consecutive read failures, and that the loop
// keeps reconnecting for as long as reads keep failing.
func TestReconnect(t *testing.T) {

	var mu sync.Mutex
	opens := 0

	cam := newWithOpener(testConfig(), testLogger(), func() (Device, error) {
		mu.Lock()
		opens++
		mu.Unlock()
		return &fakeDevice{ok: false}, nil
	})

	require.NoError(t, cam.Start())
	defer cam.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return opens >= 3
	}, 5*time.Second, 10*time.Millisecond)
}

// TestReconnectOpenFailure checks a failed reopen does not kill the loop,
// the next failure round retries the open.
func TestReconnectOpenFailure(t *testing.T) {

	var mu sync.Mutex
	opens := 0

	cam := newWithOpener(testConfig(), testLogger(), func() (Device, error) {
		mu.Lock()
		opens++
		n := opens
		mu.Unlock()

		if n > 1 {
			return nil, errors.New("device busy")
		}

		return &fakeDevice{ok: false}, nil
	})

	require.NoError(t, cam.Start())
	defer cam.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return opens >= 3
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStartTwice(t *testing.T) {

	dev := &fakeDevice{ok: true}

	cam := newWithOpener(testConfig(), testLogger(), func() (Device, error) {
		return dev, nil
	})

	require.NoError(t, cam.Start())
	defer cam.Close()

	assert.Error(t, cam.Start())
}

func TestStartOpenError(t *testing.T) {

	cam := newWithOpener(testConfig(), testLogger(), func() (Device, error) {
		return nil, errors.New("no such device")
	})

	assert.Error(t, cam.Start())
}

// TestClose checks the capture loop stops reading and the device handle is
// released.
func TestClose(t *testing.T) {

	dev := &fakeDevice{ok: true}

	cam := newWithOpener(testConfig(), testLogger(), func() (Device, error) {
		return dev, nil
	})

	require.NoError(t, cam.Start())
	require.NoError(t, cam.Close())

	assert.True(t, dev.isClosed())

	// the loop has joined, no further reads occur
	count := dev.readCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, count, dev.readCount())

	_, ok := cam.Read()
	assert.False(t, ok)
}

func TestCloseWithoutStart(t *testing.T) {

	cam := newWithOpener(testConfig(), testLogger(), func() (Device, error) {
		return &fakeDevice{ok: true}, nil
	})

	assert.NoError(t, cam.Close())
}
