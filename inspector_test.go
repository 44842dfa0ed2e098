package switchboard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"
)

type JSONInspectorSuite struct {
	suite.Suite
	inspector Inspector
}

func (s *JSONInspectorSuite) SetupTest() {
	s.inspector = JSONInspector()
}

func TestJSONInspectorSuite(t *testing.T) {
	suite.Run(t, new(JSONInspectorSuite))
}

func (s *JSONInspectorSuite) TestReturnsViewForValidJSON() {
	view, err := s.inspector.Inspect([]byte(`{"eventSource": "aws:sqs"}`))

	s.Require().NoError(err)
	s.Assert().NotNil(view)
}

func (s *JSONInspectorSuite) TestReturnsErrorForInvalidJSON() {
	_, err := s.inspector.Inspect([]byte(`{not valid}`))

	s.Assert().ErrorIs(err, ErrInvalidJSON)
}

func (s *JSONInspectorSuite) TestReturnsErrorForEmptyInput() {
	_, err := s.inspector.Inspect([]byte{})

	s.Assert().ErrorIs(err, ErrInvalidJSON)
}

type JSONViewSuite struct {
	suite.Suite
	view View
}

func (s *JSONViewSuite) SetupTest() {
	raw := []byte(`{
		"eventSource": "aws:s3",
		"eventName": "ObjectCreated:Put",
		"eventVersion": 2.1,
		"retried": false,
		"s3": {
			"configurationId": "uploads",
			"object": {"key": "a.csv", "size": 1024}
		},
		"tags": ["x", {"y": 1}],
		"empty": []
	}`)

	var err error
	s.view, err = JSONInspector().Inspect(raw)
	s.Require().NoError(err)
}

func TestJSONViewSuite(t *testing.T) {
	suite.Run(t, new(JSONViewSuite))
}

func (s *JSONViewSuite) TestHasField() {
	tests := map[string]struct {
		path   string
		exists bool
	}{
		"top level":      {"eventSource", true},
		"nested":         {"s3.configurationId", true},
		"deeply nested":  {"s3.object.key", true},
		"false value":    {"retried", true},
		"missing":        {"Records", false},
		"nested missing": {"s3.bucket", false},
	}

	for name, tt := range tests {
		s.Run(name, func() {
			s.Assert().Equal(tt.exists, s.view.HasField(tt.path))
		})
	}
}

func (s *JSONViewSuite) TestGetString() {
	val, ok := s.view.GetString("s3.object.key")
	s.Require().True(ok)
	s.Assert().Equal("a.csv", val)

	_, ok = s.view.GetString("eventVersion")
	s.Assert().False(ok, "numbers are not strings")

	_, ok = s.view.GetString("retried")
	s.Assert().False(ok, "booleans are not strings")

	_, ok = s.view.GetString("missing")
	s.Assert().False(ok)
}

func (s *JSONViewSuite) TestGetBytes() {
	val, ok := s.view.GetBytes("eventSource")
	s.Require().True(ok)
	s.Assert().Equal(`"aws:s3"`, string(val))

	val, ok = s.view.GetBytes("s3.object.size")
	s.Require().True(ok)
	s.Assert().Equal("1024", string(val))

	_, ok = s.view.GetBytes("missing")
	s.Assert().False(ok)
}

func (s *JSONViewSuite) TestGetArray() {
	items, ok := s.view.GetArray("tags")
	s.Require().True(ok)
	s.Assert().Equal([]json.RawMessage{json.RawMessage(`"x"`), json.RawMessage(`{"y": 1}`)}, items)

	items, ok = s.view.GetArray("empty")
	s.Require().True(ok)
	s.Assert().Empty(items)

	_, ok = s.view.GetArray("s3")
	s.Assert().False(ok, "objects are not arrays")

	_, ok = s.view.GetArray("missing")
	s.Assert().False(ok)
}

func (s *JSONViewSuite) TestIsEmpty() {
	s.Assert().False(s.view.IsEmpty())

	tests := map[string]struct {
		raw   string
		empty bool
	}{
		"null":          {`null`, true},
		"empty object":  {`{}`, true},
		"spaced object": {` { } `, true},
		"empty array":   {`[]`, true},
		"object":        {`{"a":1}`, false},
		"array":         {`[0]`, false},
		"string":        {`""`, false},
		"number":        {`0`, false},
	}
	for name, tt := range tests {
		s.Run(name, func() {
			view, err := JSONInspector().Inspect([]byte(tt.raw))
			s.Require().NoError(err)
			s.Assert().Equal(tt.empty, view.IsEmpty())
		})
	}
}
