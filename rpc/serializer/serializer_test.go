package serializer_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shardgraph/shardgraph/rpc/common"
	"github.com/shardgraph/shardgraph/rpc/serializer"
	"github.com/stretchr/testify/require"
)

func TestJSONSerializerRoundTripsRoute(t *testing.T) {
	s := serializer.NewJSONSerializer()

	want := *common.NewRouteRequest(42, uuid.New(), []byte("opaque-query-bytes"))

	b, err := s.Serialize(want)
	require.NoError(t, err)

	var got common.Message
	require.NoError(t, s.Deserialize(b, &got))
	require.Equal(t, want, got)
}

func TestJSONSerializerRoundTripsErrorResponse(t *testing.T) {
	s := serializer.NewJSONSerializer()

	want := *common.NewErrorResponse(7, "shard not found")

	b, err := s.Serialize(want)
	require.NoError(t, err)

	var got common.Message
	require.NoError(t, s.Deserialize(b, &got))
	require.Equal(t, want, got)
	require.Equal(t, "error", got.MsgType.String())
}
