package protocol

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		token   string
		want    Response
		wantErr bool
	}{
		{name: "ack frame", token: AckFrame, want: ResponseAck},
		{name: "ack without NUL", token: AckToken, want: ResponseAck},
		{name: "nack frame", token: NackFrame, want: ResponseNack},
		{name: "nack without NUL", token: NackToken, want: ResponseNack},
		{name: "garbage", token: "hello\n", wantErr: true},
		{name: "token without newline", token: "loader_rx_cplt", wantErr: true},
		{name: "empty", token: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseResponse([]byte(tt.token))
			if tt.wantErr {
				var unexpected *UnexpectedResponseError
				require.True(t, errors.As(err, &unexpected), "error = %v", err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadResponse_Sequence(t *testing.T) {
	t.Parallel()

	stream := AckFrame + NackFrame + AckFrame
	r := bufio.NewReader(strings.NewReader(stream))

	for _, want := range []Response{ResponseAck, ResponseNack, ResponseAck} {
		got, err := ReadResponse(r)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ReadResponse(r)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadResponse_RunawayOutput(t *testing.T) {
	t.Parallel()

	r := bufio.NewReader(strings.NewReader(strings.Repeat("x", 200)))
	_, err := ReadResponse(r)

	var unexpected *UnexpectedResponseError
	require.True(t, errors.As(err, &unexpected), "error = %v", err)
}

func TestProtocolError(t *testing.T) {
	t.Parallel()

	err := &ProtocolError{Operation: "write stage", Line: []byte("w7B\n")}

	assert.Contains(t, err.Error(), "write stage failed")
	assert.Contains(t, err.Error(), "NACK")
	assert.Contains(t, err.Error(), `"w7B"`)
	assert.True(t, IsProtocolError(err))
	assert.False(t, IsProtocolError(errors.New("plain")))
}

func TestResponseString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ACK", ResponseAck.String())
	assert.Equal(t, "NACK", ResponseNack.String())
	assert.Equal(t, "unknown", Response(0).String())
}
