package response

import (
	"encoding/base64"
	"unicode/utf8"

	"github.com/redisgate/redisgate/internal/resp"
)

// BinaryValue carries a bulk string that is not valid UTF-8. Encoding it
// explicitly beats silently corrupting the bytes in a JSON string.
type BinaryValue struct {
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
}

// Convert maps a Redis reply to its JSON representation: status and bulk
// become strings, integers become numbers, nils become null, arrays convert
// recursively. Error replies inside arrays surface as their message text;
// top-level error replies are handled by the dispatcher before formatting.
func Convert(reply resp.Reply) any {
	switch r := reply.(type) {
	case *resp.StatusReply:
		return r.Status
	case *resp.IntReply:
		return r.Code
	case *resp.BulkReply:
		if utf8.Valid(r.Arg) {
			return string(r.Arg)
		}
		return BinaryValue{
			Encoding: "base64",
			Data:     base64.StdEncoding.EncodeToString(r.Arg),
		}
	case *resp.NullBulkReply, *resp.NullMultiBulkReply:
		return nil
	case *resp.MultiBulkReply:
		elems := make([]any, 0, len(r.Replies))
		for _, elem := range r.Replies {
			elems = append(elems, Convert(elem))
		}
		return elems
	case *resp.ErrorReply:
		return r.Status
	default:
		return nil
	}
}
