package worker

// AdminNotifyChannel 是后台任务推送消息使用的 Redis 频道。
const AdminNotifyChannel = "admin_notify"

// 统一的 WebSocket 消息协议（通过 Redis Pub/Sub 转发给后台管理端）。
// 注意：这里的字段名与前端解析保持一致。
type TemplatePreviewNotifyMessage struct {
	Status        string `json:"status"`
	TemplateID    uint   `json:"template_id"`
	CorrelationID string `json:"correlation_id"`
	PreviewURL    string `json:"preview_url,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}
