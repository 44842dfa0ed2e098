package middleware

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.uber.org/zap"

	"github.com/bjaus/switchboard"
)

// AuditEventType names the kind of audited action.
type AuditEventType string

// AuthorizationAttempt is the audit event written for every request.
const AuthorizationAttempt AuditEventType = "AUTHORIZATION_ATTEMPT"

// AuditState is the outcome of an audited request.
type AuditState string

// Audit states.
const (
	AuditSuccess AuditState = "SUCCESS"
	AuditFailed  AuditState = "FAILED"
	AuditError   AuditState = "ERROR"
	AuditUnknown AuditState = "UNKNOWN"
)

// AuditOption configures AuditLog.
type AuditOption func(*auditor)

// Suppress disables audit logging when s is true.
func Suppress(s bool) AuditOption {
	return func(a *auditor) {
		a.suppress = s
	}
}

type auditor struct {
	logger   *zap.Logger
	suppress bool
	now      func() time.Time
}

// AuditLog returns middleware that writes an audit entry after every
// request. Unauthorized and forbidden failures are FAILED, other API
// errors ERROR, anything else UNKNOWN. Entries go to a child logger named
// "audit".
func AuditLog(logger *zap.Logger, opts ...AuditOption) switchboard.Middleware {
	a := &auditor{logger: logger.Named("audit"), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}

	return func(ctx context.Context, req *switchboard.Request, route *switchboard.Route) (switchboard.Outcome, error) {
		if a.suppress {
			return switchboard.Continue(), nil
		}
		start := a.now()
		return switchboard.Defer(switchboard.FollowUp{
			OnSuccess: func(ctx context.Context, req *switchboard.Request, resp *switchboard.ResponseBody) (*switchboard.ResponseBody, error) {
				status := 0
				if resp != nil {
					status = resp.StatusCode
				}
				a.write(ctx, req, route, AuditSuccess, start,
					zap.Int("statusCode", status),
					zap.Any("pathParams", req.PathParams()),
					zap.Any("queryParams", req.Query()),
				)
				return nil, nil
			},
			OnError: func(ctx context.Context, req *switchboard.Request, err error) *switchboard.ResponseBody {
				a.write(ctx, req, route, stateOf(err), start, errorFields(err)...)
				return nil
			},
		}), nil
	}
}

func (a *auditor) write(ctx context.Context, req *switchboard.Request, route *switchboard.Route, state AuditState, start time.Time, fields ...zap.Field) {
	base := []zap.Field{
		zap.String("type", string(AuthorizationAttempt)),
		zap.String("state", string(state)),
		zap.Time("startTime", start),
		zap.Time("endTime", a.now()),
		zap.String("route", route.Name),
		zap.String("path", req.Path()),
		zap.String("method", req.Method()),
		zap.String("userAgent", req.UserAgent()),
		zap.Strings("forwardedIps", req.ForwardedIPs()),
		zap.String("awsRequestId", awsRequestID(ctx, req)),
	}
	a.logger.Info("audit", append(base, fields...)...)
}

func stateOf(err error) AuditState {
	apiErr, ok := switchboard.AsAPIError(err)
	if !ok {
		return AuditUnknown
	}
	switch apiErr.Code {
	case switchboard.CodeUnauthorized, switchboard.CodeForbidden:
		return AuditFailed
	default:
		return AuditError
	}
}

func errorFields(err error) []zap.Field {
	apiErr, ok := switchboard.AsAPIError(err)
	if !ok {
		return []zap.Field{
			zap.String("errorMessage", err.Error()),
			zap.String("errorCode", "UNKNOWN"),
			zap.String("statusCode", "UNKNOWN"),
		}
	}
	return []zap.Field{
		zap.String("errorMessage", apiErr.Message),
		zap.String("errorCode", string(apiErr.Code)),
		zap.Int("statusCode", apiErr.Status),
	}
}

func awsRequestID(ctx context.Context, req *switchboard.Request) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return req.RequestID()
}
