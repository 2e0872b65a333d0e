package a2a

// RPC method names defined by the A2A protocol.
const (
	MethodMessageSend                  = "message/send"
	MethodMessageStream                = "message/stream"
	MethodTasksGet                     = "tasks/get"
	MethodTasksCancel                  = "tasks/cancel"
	MethodTasksResubscribe             = "tasks/resubscribe"
	MethodPushNotificationConfigSet    = "tasks/pushNotificationConfig/set"
	MethodPushNotificationConfigGet    = "tasks/pushNotificationConfig/get"
	MethodPushNotificationConfigList   = "tasks/pushNotificationConfig/list"
	MethodPushNotificationConfigDelete = "tasks/pushNotificationConfig/delete"
)

// TaskState enumerates the lifecycle states a task reports.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateAuthRequired  TaskState = "auth-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateRejected      TaskState = "rejected"
)

// Terminal reports whether no further state transitions can occur.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected:
		return true
	}
	return false
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Part is one piece of message or artifact content, discriminated by Kind.
type Part struct {
	Kind string                 `json:"kind"`
	Text string                 `json:"text,omitempty"`
	Data map[string]interface{} `json:"data,omitempty"`
	File *FilePart              `json:"file,omitempty"`
}

type FilePart struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Bytes    string `json:"bytes,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// NewTextPart builds a text part.
func NewTextPart(text string) Part {
	return Part{Kind: "text", Text: text}
}

// Message is a single client or agent utterance. The transport treats it as
// an opaque payload beyond routing identifiers.
type Message struct {
	Role      Role                   `json:"role"`
	Parts     []Part                 `json:"parts"`
	MessageID string                 `json:"messageId"`
	TaskID    string                 `json:"taskId,omitempty"`
	ContextID string                 `json:"contextId,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Kind      string                 `json:"kind"`
}

type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

type Artifact struct {
	ArtifactID  string                 `json:"artifactId"`
	Name        string                 `json:"name,omitempty"`
	Description string                 `json:"description,omitempty"`
	Parts       []Part                 `json:"parts"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type Task struct {
	ID        string                 `json:"id"`
	ContextID string                 `json:"contextId"`
	Status    TaskStatus             `json:"status"`
	History   []Message              `json:"history,omitempty"`
	Artifacts []Artifact             `json:"artifacts,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Kind      string                 `json:"kind"`
}

// TaskStatusUpdateEvent is a streaming status transition for a task.
type TaskStatusUpdateEvent struct {
	TaskID    string                 `json:"taskId"`
	ContextID string                 `json:"contextId"`
	Status    TaskStatus             `json:"status"`
	Final     bool                   `json:"final"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Kind      string                 `json:"kind"`
}

// TaskArtifactUpdateEvent is a streaming artifact delivery for a task.
type TaskArtifactUpdateEvent struct {
	TaskID    string                 `json:"taskId"`
	ContextID string                 `json:"contextId"`
	Artifact  Artifact               `json:"artifact"`
	Append    bool                   `json:"append,omitempty"`
	LastChunk bool                   `json:"lastChunk,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Kind      string                 `json:"kind"`
}

// PushNotificationConfig tells an agent where to deliver webhook callbacks.
type PushNotificationConfig struct {
	ID             string                              `json:"id,omitempty"`
	URL            string                              `json:"url"`
	Token          string                              `json:"token,omitempty"`
	Authentication *PushNotificationAuthenticationInfo `json:"authentication,omitempty"`
}

type PushNotificationAuthenticationInfo struct {
	Schemes     []string `json:"schemes"`
	Credentials string   `json:"credentials,omitempty"`
}

// TaskPushNotificationConfig binds a push configuration to a task.
type TaskPushNotificationConfig struct {
	TaskID                 string                 `json:"taskId"`
	PushNotificationConfig PushNotificationConfig `json:"pushNotificationConfig"`
}

// MessageSendConfiguration carries per-send transport hints.
type MessageSendConfiguration struct {
	AcceptedOutputModes    []string                `json:"acceptedOutputModes,omitempty"`
	HistoryLength          int                     `json:"historyLength,omitempty"`
	PushNotificationConfig *PushNotificationConfig `json:"pushNotificationConfig,omitempty"`
	Blocking               bool                    `json:"blocking,omitempty"`
}

// MessageSendParams is the params payload for message/send and message/stream.
type MessageSendParams struct {
	Message       Message                   `json:"message"`
	Configuration *MessageSendConfiguration `json:"configuration,omitempty"`
	Metadata      map[string]interface{}    `json:"metadata,omitempty"`
}

// TaskQueryParams identifies a task for tasks/get.
type TaskQueryParams struct {
	ID            string                 `json:"id"`
	HistoryLength int                    `json:"historyLength,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// TaskIDParams identifies a task for cancel/resubscribe/push-config calls.
type TaskIDParams struct {
	ID       string                 `json:"id"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// GetTaskPushNotificationConfigParams identifies one push configuration.
type GetTaskPushNotificationConfigParams struct {
	ID                       string                 `json:"id"`
	PushNotificationConfigID string                 `json:"pushNotificationConfigId,omitempty"`
	Metadata                 map[string]interface{} `json:"metadata,omitempty"`
}

// DeleteTaskPushNotificationConfigParams identifies one push configuration
// for deletion.
type DeleteTaskPushNotificationConfigParams struct {
	ID                       string                 `json:"id"`
	PushNotificationConfigID string                 `json:"pushNotificationConfigId"`
	Metadata                 map[string]interface{} `json:"metadata,omitempty"`
}
