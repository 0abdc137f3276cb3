package anthropicapi

// Streaming event payloads for POST /v1/messages with stream=true. Each
// type matches the JSON body carried in the SSE "data:" line for the
// event named in its own Type field.

// MessageStartEvent opens the stream with a response skeleton.
type MessageStartEvent struct {
	Type    string          `json:"type"`
	Message MessageStartBody `json:"message"`
}

// MessageStartBody is the partial Response sent with message_start: no
// content yet, usage reflects only the prompt so far.
type MessageStartBody struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Model        string         `json:"model"`
	Content      []ContentBlock `json:"content"`
	StopReason   *string        `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        Usage          `json:"usage"`
}

// ContentBlockStartEvent announces a new content block at Index.
type ContentBlockStartEvent struct {
	Type         string       `json:"type"`
	Index        int          `json:"index"`
	ContentBlock ContentBlock `json:"content_block"`
}

// ContentBlockDeltaEvent carries one incremental update to the block at Index.
type ContentBlockDeltaEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta Delta  `json:"delta"`
}

// Delta is a tagged union over the delta shapes a content_block_delta can carry.
type Delta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`         // text_delta
	PartialJSON string `json:"partial_json,omitempty"` // input_json_delta
	Thinking    string `json:"thinking,omitempty"`      // thinking_delta
	Signature   string `json:"signature,omitempty"`     // signature_delta
}

// ContentBlockStopEvent closes the block at Index.
type ContentBlockStopEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// MessageDeltaEvent carries the terminal stop_reason/usage update.
type MessageDeltaEvent struct {
	Type  string            `json:"type"`
	Delta MessageDeltaBody  `json:"delta"`
	Usage MessageDeltaUsage `json:"usage"`
}

// MessageDeltaBody carries the stop reason fields.
type MessageDeltaBody struct {
	StopReason   string  `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
}

// MessageDeltaUsage is the cumulative output token count at message_delta.
type MessageDeltaUsage struct {
	OutputTokens int `json:"output_tokens"`
}

// MessageStopEvent closes the stream.
type MessageStopEvent struct {
	Type string `json:"type"`
}

// PingEvent is sent periodically to keep the connection alive.
type PingEvent struct {
	Type string `json:"type"`
}

// Delta type constants.
const (
	DeltaTypeText        = "text_delta"
	DeltaTypeInputJSON   = "input_json_delta"
	DeltaTypeThinking    = "thinking_delta"
	DeltaTypeSignature   = "signature_delta"
)

// SSE event name constants.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventPing              = "ping"
	EventError             = "error"
)
