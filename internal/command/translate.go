package command

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Request is the parsed representation of one inbound operation. Transient:
// built per HTTP request, discarded once the response is written.
type Request struct {
	InstanceID string
	Verb       string
	Args       [][]byte
}

// Vector returns the full command vector (verb first) for the wire.
func (r *Request) Vector() [][]byte {
	vec := make([][]byte, 0, len(r.Args)+1)
	vec = append(vec, []byte(r.Verb))
	return append(vec, r.Args...)
}

// ForbiddenError marks a verb outside the allow-list.
type ForbiddenError struct {
	Verb string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("command %s is not permitted", e.Verb)
}

// InvalidError marks a malformed path, body or arity. Translation never
// partially constructs a Request.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string {
	return "invalid command: " + e.Reason
}

// maxJSONBody bounds the generic command body.
const maxJSONBody = 1 << 20

// TranslatePath converts a path-style shorthand ("set/foo/bar") into a
// Request. When escaped is true each segment is URL-decoded (the caller saw
// the raw, still-encoded path); malformed escapes and control bytes are
// rejected rather than silently truncated.
func TranslatePath(p *Policy, instanceID, rest string, escaped bool) (*Request, error) {
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return nil, &InvalidError{Reason: "empty command path"}
	}

	segments := strings.Split(rest, "/")
	args := make([][]byte, 0, len(segments))
	for _, seg := range segments {
		decoded := seg
		if escaped {
			var err error
			decoded, err = url.PathUnescape(seg)
			if err != nil {
				return nil, &InvalidError{Reason: fmt.Sprintf("bad escape in path segment %q", seg)}
			}
		}
		if decoded == "" {
			return nil, &InvalidError{Reason: "empty path segment"}
		}
		if strings.ContainsFunc(decoded, func(r rune) bool { return r < 0x20 || r == 0x7f }) {
			return nil, &InvalidError{Reason: "control characters in path segment; use the POST form for binary data"}
		}
		args = append(args, []byte(decoded))
	}

	verb := strings.ToUpper(string(args[0]))
	if err := p.Check(verb, len(args)-1); err != nil {
		return nil, err
	}
	return &Request{InstanceID: instanceID, Verb: verb, Args: args[1:]}, nil
}

type jsonCommand struct {
	Command []string `json:"command"`
}

// TranslateJSON converts a generic POST body {"command": ["SET","k","v"]}
// into a Request. The first element is uppercased as the verb.
func TranslateJSON(p *Policy, instanceID string, body io.Reader) (*Request, error) {
	dec := json.NewDecoder(io.LimitReader(body, maxJSONBody))
	dec.DisallowUnknownFields()

	var cmd jsonCommand
	if err := dec.Decode(&cmd); err != nil {
		return nil, &InvalidError{Reason: "malformed JSON body"}
	}
	if len(cmd.Command) == 0 {
		return nil, &InvalidError{Reason: "command array is empty"}
	}

	verb := strings.ToUpper(cmd.Command[0])
	if err := p.Check(verb, len(cmd.Command)-1); err != nil {
		return nil, err
	}

	args := make([][]byte, 0, len(cmd.Command)-1)
	for _, a := range cmd.Command[1:] {
		args = append(args, []byte(a))
	}
	return &Request{InstanceID: instanceID, Verb: verb, Args: args}, nil
}
