package store

import (
	"time"
)

// Message is one side of an exchange as decomposed by the capture source.
type Message struct {
	// Headers holds the header block in wire order; the first line is the
	// request line or status line.
	Headers []string `msgpack:"h"`
	// Body is the decoded body.
	Body []byte `msgpack:"b,omitempty"`
	// Length is the length of the full raw message (header block plus body).
	Length int `msgpack:"l"`
}

// Request is the request side with fields derived by the capture source.
type Request struct {
	Message `msgpack:",inline"`

	Method string `msgpack:"m"`
	URL    string `msgpack:"u"`
}

// Response is the response side with fields derived by the capture source.
type Response struct {
	Message `msgpack:",inline"`

	StatusCode int `msgpack:"s"`
}

// Exchange is one retained request/response pair.
type Exchange struct {
	// Seq is the capture sequence number within its session, starting at 1.
	Seq        uint64    `msgpack:"q"`
	SessionID  string    `msgpack:"sid"`
	CapturedAt time.Time `msgpack:"at"`

	Request  Request  `msgpack:"rq"`
	Response Response `msgpack:"rs"`
}
