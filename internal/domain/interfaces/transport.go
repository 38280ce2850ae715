package interfaces

import (
	"context"

	domaintypes "teambond/internal/domain/types"
)

// ChatTransport is the realtime channel for one conversation.
type ChatTransport interface {
	Connect(ctx context.Context, chat domaintypes.ChatID) error
	Send(ctx context.Context, chat domaintypes.ChatID, msg domaintypes.WireMessage) error
	State() domaintypes.ConnState
	Disconnect()
}
