package wsgateway

import (
	"encoding/json"

	"appgateway/pkg/types"
)

// parseFrame decodes an inbound WebSocket text message into an
// InboundFrame. Frames that fail to parse or lack a method are
// dropped.
func parseFrame(data []byte) (*types.InboundFrame, bool) {
	var frame types.InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, false
	}
	if frame.Method == "" {
		return nil, false
	}
	return &frame, true
}
