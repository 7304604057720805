//go:build !grpc

package transport

import (
	"errors"
	"testing"

	"github.com/danmuck/simctl/internal/testutil/testlog"
)

func TestGRPCUnsupportedWithoutBuildTag(t *testing.T) {
	testlog.Start(t)
	_, err := Connect(NetworkGRPC, Params{Address: "127.0.0.1:50051"})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
