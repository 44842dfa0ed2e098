package middleware_test

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/switchboard"
)

func serve(t *testing.T, h *switchboard.Handler, e events.APIGatewayProxyRequest) *switchboard.ResponseBody {
	t.Helper()
	out, err := h.Handle(context.Background(), switchboard.NewRequest(e))
	require.NoError(t, err)
	resp, ok := out.(*switchboard.ResponseBody)
	require.True(t, ok)
	return resp
}

func ok(ctx context.Context, req *switchboard.Request) (*switchboard.ResponseBody, error) {
	return switchboard.OK(req).Send(map[string]string{"status": "ok"}), nil
}
