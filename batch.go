package switchboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"golang.org/x/sync/errgroup"
)

// AnySelector is the registration target that matches every record of a
// source.
const AnySelector = "*"

// EventRequest is a batch event: an ordered list of independent records.
type EventRequest struct {
	raw     json.RawMessage
	records []json.RawMessage
	meta    *Metadata
}

// NewEventRequest parses a batch event. The input must be a JSON object
// with a "Records" array.
func NewEventRequest(raw json.RawMessage) (*EventRequest, error) {
	view, err := JSONInspector().Inspect(raw)
	if err != nil {
		return nil, NewBadRequest("Event is not valid JSON").Wrap(err)
	}
	records, ok := view.GetArray("Records")
	if !ok {
		return nil, NewBadRequest("Event has no records")
	}
	return &EventRequest{raw: raw, records: records, meta: NewMetadata()}, nil
}

// Kind implements GenericRequest.
func (e *EventRequest) Kind() RequestKind { return KindEvent }

// Metadata implements GenericRequest. Every record handler of the batch
// shares this store.
func (e *EventRequest) Metadata() *Metadata { return e.meta }

// Raw returns the event as received.
func (e *EventRequest) Raw() json.RawMessage { return e.raw }

// Records returns the raw records in input order.
func (e *EventRequest) Records() []json.RawMessage { return e.records }

// Record is one batch record handed to an event action.
type Record struct {
	Index  int
	Source string
	Target string
	Raw    json.RawMessage
}

// EventAction handles one batch record. The returned value becomes the
// record's settled value.
type EventAction func(ctx context.Context, rec Record, meta *Metadata) (any, error)

// EventFunc handles one decoded batch record.
type EventFunc[T any] func(ctx context.Context, record T, meta *Metadata) (any, error)

// EventRegistration binds an event action to a source and target.
type EventRegistration struct {
	Name    string
	Source  string
	Target  string
	Filters map[string]string

	action EventAction
}

// EventOption configures an EventRegistration.
type EventOption func(*EventRegistration)

// WithEventName overrides the default "source target" registration name.
func WithEventName(name string) EventOption {
	return func(r *EventRegistration) {
		r.Name = name
	}
}

// WithFilter requires the record's string field at path to equal value.
func WithFilter(path, value string) EventOption {
	return func(r *EventRegistration) {
		if r.Filters == nil {
			r.Filters = make(map[string]string)
		}
		r.Filters[path] = value
	}
}

// WithConfigurationID restricts an S3 registration to notifications of
// one bucket notification configuration.
func WithConfigurationID(id string) EventOption {
	return WithFilter("s3.configurationId", id)
}

// OnEvent registers fn for records of source whose target equals target
// (or any target for AnySelector). Records are decoded into T and
// validated when T implements Validate() error.
//
// This is a package-level function (not a method) due to Go generics
// limitations: methods cannot have type parameters independent of the
// receiver.
//
//	switchboard.OnEvent(h, "aws:sqs", queueARN, func(ctx context.Context, m events.SQSMessage, _ *switchboard.Metadata) (any, error) {
//	    return nil, process(ctx, m.Body)
//	})
func OnEvent[T any](h *Handler, source, target string, fn EventFunc[T], opts ...EventOption) {
	h.On(source, target, func(ctx context.Context, rec Record, meta *Metadata) (any, error) {
		var data T
		if err := json.Unmarshal(rec.Raw, &data); err != nil {
			return nil, NewBadRequest("Record payload is invalid").Wrap(err)
		}
		if err := validate(&data); err != nil {
			return nil, err
		}
		return fn(ctx, data, meta)
	}, opts...)
}

// OnS3 registers fn for object storage notifications with the given
// event name.
func OnS3(h *Handler, eventName string, fn EventFunc[events.S3EventRecord], opts ...EventOption) {
	OnEvent(h, SourceS3, eventName, fn, opts...)
}

// OnSQS registers fn for messages from the given queue ARN.
func OnSQS(h *Handler, queueARN string, fn EventFunc[events.SQSMessage], opts ...EventOption) {
	OnEvent(h, SourceSQS, queueARN, fn, opts...)
}

// OnSNS registers fn for notifications of the given subscription ARN.
func OnSNS(h *Handler, subscriptionARN string, fn EventFunc[events.SNSEventRecord], opts ...EventOption) {
	OnEvent(h, SourceSNS, subscriptionARN, fn, opts...)
}

// OnDynamoDB registers fn for stream records of the given stream ARN.
func OnDynamoDB(h *Handler, streamARN string, fn EventFunc[events.DynamoDBEventRecord], opts ...EventOption) {
	OnEvent(h, SourceDynamoDB, streamARN, fn, opts...)
}

// OnKinesis registers fn for stream records of the given stream ARN.
func OnKinesis(h *Handler, streamARN string, fn EventFunc[events.KinesisEventRecord], opts ...EventOption) {
	OnEvent(h, SourceKinesis, streamARN, fn, opts...)
}

// SettledStatus is the outcome of one batch record.
type SettledStatus string

// Settled statuses.
const (
	Fulfilled SettledStatus = "fulfilled"
	Rejected  SettledStatus = "rejected"
)

// Settled is the outcome of one batch record: a value when fulfilled, a
// reason when rejected.
type Settled struct {
	Status SettledStatus
	Value  any
	Reason error
}

type settledReason struct {
	Message   string    `json:"message"`
	ErrorCode ErrorCode `json:"errorCode,omitempty"`
}

// MarshalJSON encodes s as {"status","value"} or {"status","reason"}.
func (s Settled) MarshalJSON() ([]byte, error) {
	if s.Status == Rejected {
		reason := settledReason{}
		if s.Reason != nil {
			reason.Message = s.Reason.Error()
		}
		if apiErr, ok := AsAPIError(s.Reason); ok {
			reason = settledReason{Message: apiErr.Message, ErrorCode: apiErr.Code}
		}
		return json.Marshal(struct {
			Status SettledStatus `json:"status"`
			Reason settledReason `json:"reason"`
		}{s.Status, reason})
	}
	return json.Marshal(struct {
		Status SettledStatus `json:"status"`
		Value  any           `json:"value"`
	}{s.Status, s.Value})
}

func fulfilled(v any) Settled {
	return Settled{Status: Fulfilled, Value: v}
}

func rejected(err error) Settled {
	return Settled{Status: Rejected, Reason: err}
}

// SQSBatchResponse reports the rejected SQS records of results as partial
// batch failures, so only those messages are retried.
func SQSBatchResponse(req *EventRequest, results []Settled) events.SQSEventResponse {
	resp := events.SQSEventResponse{BatchItemFailures: []events.SQSBatchItemFailure{}}
	records := req.Records()
	for i, res := range results {
		if res.Status != Rejected || i >= len(records) {
			continue
		}
		view, err := JSONInspector().Inspect(records[i])
		if err != nil {
			continue
		}
		if src, _ := view.GetString("eventSource"); src != SourceSQS {
			continue
		}
		if id, ok := view.GetString("messageId"); ok {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: id})
		}
	}
	return resp
}

// eventStrategy dispatches every record of a batch independently and
// settles each one. Partial failures never fail the batch.
type eventStrategy struct {
	h *Handler
}

func (s eventStrategy) Handle(ctx context.Context, req GenericRequest) (any, error) {
	er, ok := req.(*EventRequest)
	if !ok {
		return nil, NewInternal("Unexpected request type for event strategy")
	}

	records := er.Records()
	results := make([]Settled, len(records))

	var g errgroup.Group
	if s.h.concurrency > 0 {
		g.SetLimit(s.h.concurrency)
	}
	for i, raw := range records {
		g.Go(func() error {
			results[i] = s.h.dispatchRecord(ctx, er, i, raw)
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func (h *Handler) dispatchRecord(ctx context.Context, er *EventRequest, index int, raw json.RawMessage) (res Settled) {
	defer func() {
		if r := recover(); r != nil {
			res = rejected(NewInternal("Internal Server Error").Wrap(fmt.Errorf("record handler panic: %v", r)))
		}
	}()

	view, err := h.inspector.Inspect(raw)
	if err != nil {
		return rejected(NewBadRequest("Record is not valid JSON").Wrap(err))
	}

	src := h.matchSource(view)
	if src == nil {
		err := NewInternal("No strategy found for event type").Wrap(ErrNoSource)
		h.callOnNoTarget(ctx, KindEvent, err)
		return rejected(err)
	}

	reg := h.findRegistration(src, view)
	if reg == nil {
		err := NewNotFound("No handler found to handle the incoming record").Wrap(ErrNoTarget)
		h.callOnNoTarget(ctx, KindEvent, err)
		return rejected(err)
	}

	target, _ := src.Target(view)
	rec := Record{Index: index, Source: src.Name(), Target: target, Raw: raw}

	h.callOnDispatch(ctx, src, KindEvent, reg.Name)
	start := time.Now()
	value, err := reg.action(ctx, rec, er.Metadata())
	duration := time.Since(start)

	if err != nil {
		h.callOnFailure(ctx, src, KindEvent, reg.Name, err, duration)
		return rejected(err)
	}
	h.callOnSuccess(ctx, src, KindEvent, reg.Name, duration)
	return fulfilled(value)
}

// matchSource finds the source whose discriminator matches the record.
// Uses adaptive ordering to try the last successful source first, since
// batches are almost always uniform.
func (h *Handler) matchSource(v View) Source {
	if last, ok := h.lastSource.Load().(string); ok && last != "" {
		for _, src := range h.sources {
			if src.Name() == last && src.Discriminator().Match(v) {
				return src
			}
		}
	}

	for _, src := range h.sources {
		if src.Discriminator().Match(v) {
			h.lastSource.Store(src.Name())
			return src
		}
	}
	return nil
}

// findRegistration returns the first registration of src that selects
// the record.
func (h *Handler) findRegistration(src Source, v View) *EventRegistration {
	for _, reg := range h.events {
		if matchRegistration(src, reg, v) {
			return reg
		}
	}
	return nil
}

func matchRegistration(src Source, reg *EventRegistration, v View) bool {
	if reg.Source != src.Name() {
		return false
	}
	if m, ok := src.(TargetMatcher); ok {
		return m.MatchTarget(reg, v)
	}
	if reg.Target != AnySelector {
		target, ok := src.Target(v)
		if !ok || target != reg.Target {
			return false
		}
	}
	for path, want := range reg.Filters {
		if got, ok := v.GetString(path); !ok || got != want {
			return false
		}
	}
	return true
}
