package apns

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedbackRecordBytes(timestamp uint32, token []byte) []byte {
	record := make([]byte, FeedbackResponseSize)
	binary.BigEndian.PutUint32(record[0:4], timestamp)
	binary.BigEndian.PutUint16(record[4:6], DeviceBinarySize)
	copy(record[6:], token)
	return record
}

func TestFeedbackDrain(t *testing.T) {
	tokenA, err := DeviceTokenToBinary(testToken)
	require.NoError(t, err)
	tokenB := make([]byte, DeviceBinarySize)
	for i := range tokenB {
		tokenB[i] = 0xaa
	}

	transport := &fakeTransport{reads: [][]byte{
		feedbackRecordBytes(1700000000, tokenA),
		feedbackRecordBytes(1700000060, tokenB),
	}}

	var records []*FeedbackRecord
	engine := newFeedbackEngine(transport, 0, func(r *FeedbackRecord) {
		records = append(records, r)
	})
	assert.True(t, engine.Run())

	require.Len(t, records, 2)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), records[0].Timestamp)
	assert.Equal(t, uint16(32), records[0].TokenLen)
	assert.Equal(t, DeviceTokenFromBinary(tokenA), records[0].DeviceToken)
	assert.Equal(t, time.Unix(1700000060, 0).UTC(), records[1].Timestamp)
	assert.Equal(t,
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		records[1].DeviceToken)

	// соединение закрывается после каждого опроса
	assert.False(t, transport.IsConnected())
	assert.Equal(t, 1, transport.disconnects)
}

func TestFeedbackInterval(t *testing.T) {
	transport := &fakeTransport{}
	engine := newFeedbackEngine(transport, time.Hour, nil)
	assert.False(t, engine.Run())
	assert.False(t, transport.IsConnected())
}

func TestFeedbackQueueWithoutHandler(t *testing.T) {
	token, err := DeviceTokenToBinary(testToken)
	require.NoError(t, err)
	transport := &fakeTransport{reads: [][]byte{feedbackRecordBytes(1700000000, token)}}
	engine := newFeedbackEngine(transport, 0, nil)
	require.True(t, engine.Run())

	records := engine.Feedback()
	require.Len(t, records, 1)
	assert.Equal(t, DeviceTokenFromBinary(token), records[0].String())
	assert.Empty(t, engine.Feedback())
}

func TestFeedbackConnectFailure(t *testing.T) {
	transport := &fakeTransport{connectErr: assert.AnError}
	engine := newFeedbackEngine(transport, 0, nil)
	assert.False(t, engine.Run())
}
