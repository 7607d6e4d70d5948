package server

import (
	"bufio"
	"bytes"
	"net"
)

type protocolType int

const (
	protocolTCP protocolType = iota
	protocolHTTP
)

func (p protocolType) String() string {
	if p == protocolHTTP {
		return "websocket"
	}
	return "tcp"
}

var httpMethods = [][]byte{
	[]byte("GET "),
	[]byte("POST"),
	[]byte("PUT "),
	[]byte("HEAD"),
	[]byte("OPTI"),
	[]byte("PATC"),
	[]byte("DELE"),
}

// detectProtocol peeks at the first bytes to tell an HTTP upgrade request
// from a plain IRC client. IRC clients always speak first.
func detectProtocol(conn net.Conn) (protocolType, *bufio.Reader, error) {
	reader := bufio.NewReader(conn)

	peek, err := reader.Peek(4)
	if err != nil {
		return protocolTCP, reader, err
	}

	for _, m := range httpMethods {
		if bytes.HasPrefix(peek, m) {
			return protocolHTTP, reader, nil
		}
	}
	return protocolTCP, reader, nil
}

// bufferedConn wraps a net.Conn with a bufio.Reader to preserve peeked data
type bufferedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (bc *bufferedConn) Read(p []byte) (int, error) {
	return bc.reader.Read(p)
}
