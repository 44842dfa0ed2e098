package switchboard

import (
	"bytes"
)

// Classification is the outcome of classifying a raw invocation.
type Classification struct {
	Kind RequestKind

	// Heartbeat is true for empty keep-alive invocations. Kind is
	// KindUnknown for heartbeats.
	Heartbeat bool
}

// Classifier decides which kind of request a raw invocation is. The
// checks run in priority order: a "Records" array is a batch event, a
// "type" of "REQUEST" is an authorizer request, anything else is an HTTP
// proxy request.
type Classifier struct {
	inspector  Inspector
	event      Discriminator
	authorizer Discriminator
}

// NewClassifier creates a Classifier using the JSON inspector.
func NewClassifier() *Classifier {
	return &Classifier{
		inspector:  JSONInspector(),
		event:      IsArray("Records"),
		authorizer: FieldEquals("type", "REQUEST"),
	}
}

// Classify examines raw. An empty body, null, or an empty object is a
// heartbeat. Input that is not JSON fails with ErrInvalidJSON.
func (c *Classifier) Classify(raw []byte) (Classification, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Classification{Heartbeat: true}, nil
	}

	view, err := c.inspector.Inspect(raw)
	if err != nil {
		return Classification{}, err
	}

	switch {
	case view.IsEmpty():
		return Classification{Heartbeat: true}, nil
	case c.event.Match(view):
		return Classification{Kind: KindEvent}, nil
	case c.authorizer.Match(view):
		return Classification{Kind: KindAuthorizer}, nil
	default:
		return Classification{Kind: KindHTTP}, nil
	}
}
