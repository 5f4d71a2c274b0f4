package kit

import "context"

type contextKey string

const (
	ConnIDKey    contextKey = "kit_conn_id"
	StreamIDKey  contextKey = "kit_stream_id"
	TransportKey contextKey = "kit_transport" // "echo", "h3", "webtransport", "websocket"
)

func WithConnID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, ConnIDKey, id)
}
func GetConnID(ctx context.Context) uint64 {
	v, _ := ctx.Value(ConnIDKey).(uint64)
	return v
}

func WithStreamID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, StreamIDKey, id)
}
func GetStreamID(ctx context.Context) int64 {
	v, _ := ctx.Value(StreamIDKey).(int64)
	return v
}

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "echo"
}
