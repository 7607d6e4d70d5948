package server

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProtocol(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  protocolType
	}{
		{name: "websocket upgrade", input: "GET / HTTP/1.1\r\n", want: protocolHTTP},
		{name: "head request", input: "HEAD / HTTP/1.1\r\n", want: protocolHTTP},
		{name: "irc nick", input: "NICK alice\r\n", want: protocolTCP},
		{name: "irc cap", input: "CAP LS 302\r\n", want: protocolTCP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, client := net.Pipe()
			defer server.Close()
			defer client.Close()
			go func() { _, _ = io.WriteString(client, tt.input) }()

			got, reader, err := detectProtocol(server)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			buf := make([]byte, len(tt.input))
			_, err = io.ReadFull(reader, buf)
			require.NoError(t, err)
			assert.Equal(t, tt.input, string(buf), "peeked bytes stay readable")
		})
	}
}

func TestDetectProtocol_ShortRead(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	go func() {
		_, _ = io.WriteString(client, "HI")
		_ = client.Close()
	}()

	_, _, err := detectProtocol(server)
	assert.Error(t, err)
}
