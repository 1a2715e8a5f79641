package resp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// maxBulkLen caps a single bulk string at 512MB, the limit Redis itself
// enforces. Anything larger is a desynced or hostile stream.
const maxBulkLen = 512 * 1024 * 1024

// maxArrayLen caps an array header at 1M elements, matching the multibulk
// limit Redis enforces. An oversized header must fail as a protocol error
// before any allocation happens.
const maxArrayLen = 1024 * 1024

// ProtocolError reports a malformed reply stream. The connection that
// produced it must be discarded; the read position is indeterminate.
type ProtocolError struct {
	Detail string
}

func (e *ProtocolError) Error() string {
	return "resp: protocol error: " + e.Detail
}

func protocolErrf(format string, args ...any) *ProtocolError {
	return &ProtocolError{Detail: fmt.Sprintf(format, args...)}
}

// ReadReply reads exactly one reply from the stream, recursing into array
// elements. I/O errors are returned as-is; framing violations come back as
// *ProtocolError.
func ReadReply(r *bufio.Reader) (Reply, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}

	switch line[0] {
	case '+':
		return MakeStatusReply(string(line[1:])), nil
	case '-':
		return MakeErrorReply(string(line[1:])), nil
	case ':':
		code, err := strconv.ParseInt(string(line[1:]), 10, 64)
		if err != nil {
			return nil, protocolErrf("bad integer reply %q", line)
		}
		return MakeIntReply(code), nil
	case '$':
		return readBulk(r, line)
	case '*':
		return readArray(r, line)
	default:
		return nil, protocolErrf("unexpected reply prefix %q", line[0])
	}
}

// readLine reads one CRLF-terminated header line, stripping the terminator.
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	if len(line) < 3 || line[len(line)-2] != '\r' {
		return nil, protocolErrf("malformed line %q", line)
	}
	return line[:len(line)-2], nil
}

func readBulk(r *bufio.Reader, header []byte) (Reply, error) {
	n, err := strconv.ParseInt(string(header[1:]), 10, 64)
	if err != nil {
		return nil, protocolErrf("bad bulk length %q", header)
	}
	if n == -1 {
		return &NullBulkReply{}, nil
	}
	if n < 0 || n > maxBulkLen {
		return nil, protocolErrf("bulk length %d out of range", n)
	}

	// Read the payload plus trailing CRLF in one go so CRLF bytes inside
	// the value cannot split the read.
	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return nil, protocolErrf("bulk reply missing terminator")
	}
	return MakeBulkReply(buf[:n]), nil
}

func readArray(r *bufio.Reader, header []byte) (Reply, error) {
	n, err := strconv.ParseInt(string(header[1:]), 10, 64)
	if err != nil {
		return nil, protocolErrf("bad array length %q", header)
	}
	if n == -1 {
		return &NullMultiBulkReply{}, nil
	}
	if n < 0 || n > maxArrayLen {
		return nil, protocolErrf("array length %d out of range", n)
	}

	elems := make([]Reply, 0, n)
	for i := int64(0); i < n; i++ {
		elem, err := ReadReply(r)
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
	}
	return MakeMultiBulkReply(elems), nil
}
