package monitor

import (
	"bufio"
	"context"
	"testing"
	"time"

	"github.com/audiolibrelab/wpstatus/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessSource_ReadsLines(t *testing.T) {
	source := &ProcessSource{Command: "sh", Args: []string{"-c", "printf 'added: 1\\nchanged: 2\\n'; echo noise >&2"}}

	stream, err := source.Start(context.Background())
	require.NoError(t, err)

	var lines []string
	scanner := bufio.NewScanner(stream.Lines())
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	require.NoError(t, stream.Wait())

	assert.Equal(t, []string{"added: 1", "changed: 2"}, lines)
	assert.NoError(t, stream.Stop(), "stopping an exited group is not an error")
}

func TestProcessSource_LineBuffered(t *testing.T) {
	source := &ProcessSource{Command: "echo", Args: []string{"hello"}, LineBuffered: true}

	stream, err := source.Start(context.Background())
	require.NoError(t, err)

	scanner := bufio.NewScanner(stream.Lines())
	require.True(t, scanner.Scan())
	assert.Equal(t, "hello", scanner.Text())
	require.NoError(t, stream.Wait())
}

func TestProcessSource_MissingBinary(t *testing.T) {
	source := &ProcessSource{Command: "wpstatus-no-such-binary"}

	_, err := source.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrUnavailable))
}

func TestProcessSource_StopTerminatesGroup(t *testing.T) {
	source := &ProcessSource{Command: "sh", Args: []string{"-c", "sleep 30 & wait"}}

	stream, err := source.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, stream.Stop())
	require.NoError(t, stream.Stop())

	done := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(stream.Lines())
		for scanner.Scan() {
		}
		done <- stream.Wait()
	}()

	select {
	case err := <-done:
		assert.Error(t, err, "a terminated process reports its signal")
	case <-time.After(5 * time.Second):
		t.Fatal("process group was not terminated")
	}
}
