package resp

import (
	"bytes"
	"io"
	"strconv"
)

// MarshalCommand encodes a command vector as a RESP array of bulk strings,
// the only request form Redis accepts from clients.
func MarshalCommand(args [][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("*" + strconv.Itoa(len(args)) + CRLF)
	for _, arg := range args {
		buf.WriteString("$" + strconv.Itoa(len(arg)) + CRLF)
		buf.Write(arg)
		buf.WriteString(CRLF)
	}
	return buf.Bytes()
}

// WriteCommand marshals and writes a command vector to w.
func WriteCommand(w io.Writer, args [][]byte) error {
	_, err := w.Write(MarshalCommand(args))
	return err
}
