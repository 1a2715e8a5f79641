package response

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redisgate/redisgate/internal/resp"
)

func TestConvert(t *testing.T) {
	cases := []struct {
		name  string
		reply resp.Reply
		want  any
	}{
		{"status", resp.MakeStatusReply("OK"), "OK"},
		{"int", resp.MakeIntReply(42), int64(42)},
		{"bulk", resp.MakeBulkReply([]byte("hello")), "hello"},
		{"null bulk", &resp.NullBulkReply{}, nil},
		{"null array", &resp.NullMultiBulkReply{}, nil},
		{"empty array", resp.MakeMultiBulkReply(nil), []any{}},
		{
			"flat array",
			resp.MakeMultiBulkReply([]resp.Reply{
				resp.MakeBulkReply([]byte("a")),
				resp.MakeIntReply(1),
				&resp.NullBulkReply{},
			}),
			[]any{"a", int64(1), nil},
		},
		{
			"nested array",
			resp.MakeMultiBulkReply([]resp.Reply{
				resp.MakeMultiBulkReply([]resp.Reply{
					resp.MakeBulkReply([]byte("inner")),
				}),
			}),
			[]any{[]any{"inner"}},
		},
		{"error inside array", resp.MakeErrorReply("ERR nope"), "ERR nope"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Convert(tc.reply))
		})
	}
}

func TestConvert_BinaryBulk(t *testing.T) {
	raw := []byte{0xc3, 0x28} // invalid UTF-8 sequence
	got := Convert(resp.MakeBulkReply(raw))

	bv, ok := got.(BinaryValue)
	require.True(t, ok)
	assert.Equal(t, "base64", bv.Encoding)
	assert.Equal(t, "wyg=", bv.Data)
}

func TestWriteData_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, "PONG")

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	// All four envelope fields are always present; message is null on success.
	assert.Contains(t, body, "success")
	assert.Contains(t, body, "data")
	assert.Contains(t, body, "message")
	assert.Contains(t, body, "timestamp")
	assert.Equal(t, "true", string(body["success"]))
	assert.Equal(t, `"PONG"`, string(body["data"]))
	assert.Equal(t, "null", string(body["message"]))
}

func TestWriteError_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, 403, "command FLUSHALL is not permitted")

	assert.Equal(t, 403, rec.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Nil(t, env.Data)
	require.NotNil(t, env.Message)
	assert.Equal(t, "command FLUSHALL is not permitted", *env.Message)
	assert.False(t, env.Timestamp.IsZero())
}
