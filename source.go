package switchboard

import (
	"context"
	"time"
)

// Event source tags carried by batch records.
const (
	SourceS3       = "aws:s3"
	SourceSQS      = "aws:sqs"
	SourceSNS      = "aws:sns"
	SourceDynamoDB = "aws:dynamodb"
	SourceKinesis  = "aws:kinesis"
)

// Source recognizes the records of one event origin and knows where that
// origin keeps the identifier registrations select on.
//
// Sources are matched by their Discriminator before the target is read,
// so detection stays cheap for large batches.
//
// Implement Source to support origins beyond the built-in ones:
//
//	type bridgeSource struct{}
//
//	func (bridgeSource) Name() string { return "aws:events" }
//
//	func (bridgeSource) Discriminator() switchboard.Discriminator {
//	    return switchboard.HasFields("detail-type", "source")
//	}
//
//	func (bridgeSource) Target(v switchboard.View) (string, bool) {
//	    return v.GetString("detail-type")
//	}
type Source interface {
	// Name returns the origin tag registrations refer to.
	Name() string

	// Discriminator returns a predicate for cheap record detection.
	Discriminator() Discriminator

	// Target returns the record's native target identifier.
	Target(v View) (string, bool)
}

// TargetMatcher is an optional interface that sources implement to
// replace the default registration matching (exact target or "*", plus
// every filter).
type TargetMatcher interface {
	MatchTarget(reg *EventRegistration, v View) bool
}

// NewSource creates a Source for records whose tagPath field equals name
// and whose target lives at targetPath.
//
//	h := switchboard.New(switchboard.WithSource(
//	    switchboard.NewSource("aws:kafka", "eventSource", "topic"),
//	))
func NewSource(name, tagPath, targetPath string) Source {
	return &fieldSource{
		name:       name,
		disc:       FieldEquals(tagPath, name),
		targetPath: targetPath,
	}
}

type fieldSource struct {
	name       string
	disc       Discriminator
	targetPath string
}

func (s *fieldSource) Name() string                 { return s.name }
func (s *fieldSource) Discriminator() Discriminator { return s.disc }

func (s *fieldSource) Target(v View) (string, bool) {
	return v.GetString(s.targetPath)
}

// S3Source matches object storage notifications by event name.
func S3Source() Source { return NewSource(SourceS3, "eventSource", "eventName") }

// SQSSource matches queue messages by queue ARN.
func SQSSource() Source { return NewSource(SourceSQS, "eventSource", "eventSourceARN") }

// SNSSource matches notifications by subscription ARN.
func SNSSource() Source { return NewSource(SourceSNS, "EventSource", "EventSubscriptionArn") }

// DynamoDBSource matches stream records by stream ARN.
func DynamoDBSource() Source { return NewSource(SourceDynamoDB, "eventSource", "eventSourceARN") }

// KinesisSource matches stream records by stream ARN.
func KinesisSource() Source { return NewSource(SourceKinesis, "eventSource", "eventSourceARN") }

func defaultSources() []Source {
	return []Source{SQSSource(), S3Source(), SNSSource(), DynamoDBSource(), KinesisSource()}
}

// OnDispatchHook is an optional interface that sources can implement to
// add source-specific pre-dispatch behavior. Called after global
// OnDispatch hooks.
type OnDispatchHook interface {
	OnDispatch(ctx context.Context, target string)
}

// OnSuccessHook is an optional interface that sources can implement to
// add source-specific behavior on handler success. Called after global
// OnSuccess hooks.
type OnSuccessHook interface {
	OnSuccess(ctx context.Context, target string, duration time.Duration)
}

// OnFailureHook is an optional interface that sources can implement to
// add source-specific behavior on handler failure. Called after global
// OnFailure hooks.
type OnFailureHook interface {
	OnFailure(ctx context.Context, target string, err error, duration time.Duration)
}
