package webservice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aplay/mscribe/internal/pkg/registry"
	"github.com/aplay/mscribe/internal/pkg/status"
)

func TestKeeper_SaveGet(t *testing.T) {
	kp := NewWSConnKeeper()
	conn := &mockWsConn{}
	kp.saveConnection(conn, "1")
	res, found := kp.GetConnections("1")
	require.True(t, found)
	assert.Len(t, res, 1)
	_, found = kp.GetConnections("2")
	assert.False(t, found)
}

func TestKeeper_Resubscribe(t *testing.T) {
	kp := NewWSConnKeeper()
	conn := &mockWsConn{}
	kp.saveConnection(conn, "1")
	kp.saveConnection(conn, "2")
	_, found := kp.GetConnections("1")
	assert.False(t, found)
	res, found := kp.GetConnections("2")
	require.True(t, found)
	assert.Len(t, res, 1)
}

func TestKeeper_Delete(t *testing.T) {
	kp := NewWSConnKeeper()
	conn := &mockWsConn{}
	kp.saveConnection(conn, "1")
	kp.deleteConnection(conn)
	_, found := kp.GetConnections("1")
	assert.False(t, found)
}

func TestKeeper_SeveralConns(t *testing.T) {
	kp := NewWSConnKeeper()
	kp.saveConnection(&mockWsConn{}, "1")
	kp.saveConnection(&mockWsConn{}, "1")
	res, found := kp.GetConnections("1")
	require.True(t, found)
	assert.Len(t, res, 2)
}

func TestPusher_Sends(t *testing.T) {
	kp := NewWSConnKeeper()
	conn := &mockWsConn{}
	conn.On("WriteJSON", mock.Anything).Return(nil)
	kp.saveConnection(conn, "1")
	jobs := &mockJobProvider{}
	jobs.On("Get", "1").Return(&registry.Job{ID: "1", Status: status.Processing, Step: status.StepTranscribing, Progress: 20}, true)

	NewStatusPusher(jobs, kp).JobChanged("1")

	require.Len(t, conn.Calls, 1)
	res, ok := conn.Calls[0].Arguments.Get(0).(*jobView)
	require.True(t, ok)
	assert.Equal(t, "1", res.JobID)
	assert.Equal(t, 20, res.Progress)
}

func TestPusher_NoSubscribers(t *testing.T) {
	kp := NewWSConnKeeper()
	jobs := &mockJobProvider{}

	NewStatusPusher(jobs, kp).JobChanged("1")

	jobs.AssertNotCalled(t, "Get", mock.Anything)
}

func TestPusher_NoJob(t *testing.T) {
	kp := NewWSConnKeeper()
	conn := &mockWsConn{}
	kp.saveConnection(conn, "1")
	jobs := &mockJobProvider{}
	jobs.On("Get", "1").Return(nil, false)

	NewStatusPusher(jobs, kp).JobChanged("1")

	conn.AssertNotCalled(t, "WriteJSON", mock.Anything)
}

type mockWsConn struct{ mock.Mock }

func (m *mockWsConn) ReadMessage() (messageType int, p []byte, err error) {
	args := m.Called()
	return args.Int(0), to[[]byte](args.Get(1)), args.Error(2)
}

func (m *mockWsConn) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockWsConn) WriteJSON(v interface{}) error {
	args := m.Called(v)
	return args.Error(0)
}

type mockJobProvider struct{ mock.Mock }

func (m *mockJobProvider) Get(id string) (*registry.Job, bool) {
	args := m.Called(id)
	return to[*registry.Job](args.Get(0)), args.Bool(1)
}
