package dto

// ── 通知模块 DTO ──

// NotificationListRequest 通知列表筛选
type NotificationListRequest struct {
	Department string `form:"department" binding:"omitempty,max=50"`
	UnreadOnly bool   `form:"unread_only"`
	Limit      int    `form:"limit"      binding:"omitempty,min=1,max=500"`
}

// MarkAllReadRequest 批量已读，部门为空表示全部
type MarkAllReadRequest struct {
	Department string `json:"department" form:"department" binding:"omitempty,max=50"`
}

// MarkAllReadResponse 批量已读结果
type MarkAllReadResponse struct {
	Updated int `json:"updated"`
}

// UnreadCountResponse 未读数量
type UnreadCountResponse struct {
	Department string `json:"department,omitempty"`
	Count      int    `json:"count"`
}
