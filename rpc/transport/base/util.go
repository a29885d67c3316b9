package base

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/google/uuid"
)

const frameHeaderLen = 16 + 8 + 4 // uuid + requestID + content length

// writeFrame writes a frame to the connection with the format:
// - 16 bytes: target shard uuid
// - 8 bytes: requestID (uint64, big endian)
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(conn net.Conn, target uuid.UUID, requestID uint64, data []byte) error {
	header := make([]byte, frameHeaderLen)
	copy(header[:16], target[:])
	binary.BigEndian.PutUint64(header[16:24], requestID)
	binary.BigEndian.PutUint32(header[24:28], uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads a frame from the connection using the provided buffer.
// If the buffer is too small, it will allocate a new temporary buffer for the data.
func readFrame(conn net.Conn, buf []byte) (uuid.UUID, uint64, []byte, error) {
	if buf == nil || len(buf) < frameHeaderLen {
		buf = make([]byte, frameHeaderLen)
	}

	if _, err := io.ReadFull(conn, buf[:frameHeaderLen]); err != nil {
		return uuid.Nil, 0, nil, err
	}

	var target uuid.UUID
	copy(target[:], buf[:16])
	requestID := binary.BigEndian.Uint64(buf[16:24])
	contentLength := binary.BigEndian.Uint32(buf[24:28])

	if contentLength == 0 {
		return target, requestID, []byte{}, nil
	}

	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}

	if _, err := io.ReadFull(conn, buf[:contentLength]); err != nil {
		return uuid.Nil, 0, nil, err
	}

	return target, requestID, buf[:contentLength], nil
}
