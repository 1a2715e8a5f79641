// Package resp implements the subset of the Redis serialization protocol
// the gateway needs to talk to backend instances: marshalling outbound
// command vectors and reading the reply types a data command can produce.
package resp

import (
	"bytes"
	"strconv"
)

// CRLF is the line separator of the Redis serialization protocol.
const CRLF = "\r\n"

// Reply is one decoded Redis reply. Exactly one concrete type applies;
// arrays nest arbitrarily, mirroring the Redis reply model.
type Reply interface {
	ToBytes() []byte
}

// StatusReply is a simple status line such as +OK or +PONG.
type StatusReply struct {
	Status string
}

func MakeStatusReply(status string) *StatusReply {
	return &StatusReply{Status: status}
}

func (r *StatusReply) ToBytes() []byte {
	return []byte("+" + r.Status + CRLF)
}

// IntReply is an integer reply.
type IntReply struct {
	Code int64
}

func MakeIntReply(code int64) *IntReply {
	return &IntReply{Code: code}
}

func (r *IntReply) ToBytes() []byte {
	return []byte(":" + strconv.FormatInt(r.Code, 10) + CRLF)
}

// BulkReply is a binary-safe string reply. A nil Arg is distinct from an
// empty string only through NullBulkReply; BulkReply always carries data.
type BulkReply struct {
	Arg []byte
}

func MakeBulkReply(arg []byte) *BulkReply {
	return &BulkReply{Arg: arg}
}

func (r *BulkReply) ToBytes() []byte {
	return []byte("$" + strconv.Itoa(len(r.Arg)) + CRLF + string(r.Arg) + CRLF)
}

// NullBulkReply is the $-1 nil reply (missing key, popped empty list).
type NullBulkReply struct{}

func (r *NullBulkReply) ToBytes() []byte {
	return []byte("$-1" + CRLF)
}

// MultiBulkReply is an array reply. Elements may be any reply type,
// including nested arrays.
type MultiBulkReply struct {
	Replies []Reply
}

func MakeMultiBulkReply(replies []Reply) *MultiBulkReply {
	return &MultiBulkReply{Replies: replies}
}

func (r *MultiBulkReply) ToBytes() []byte {
	var buf bytes.Buffer
	buf.WriteString("*" + strconv.Itoa(len(r.Replies)) + CRLF)
	for _, elem := range r.Replies {
		buf.Write(elem.ToBytes())
	}
	return buf.Bytes()
}

// NullMultiBulkReply is the *-1 nil array reply.
type NullMultiBulkReply struct{}

func (r *NullMultiBulkReply) ToBytes() []byte {
	return []byte("*-1" + CRLF)
}

// ErrorReply is a -ERR style reply from the backend. It satisfies error so
// callers can propagate it directly.
type ErrorReply struct {
	Status string
}

func MakeErrorReply(status string) *ErrorReply {
	return &ErrorReply{Status: status}
}

func (r *ErrorReply) ToBytes() []byte {
	return []byte("-" + r.Status + CRLF)
}

func (r *ErrorReply) Error() string {
	return r.Status
}
