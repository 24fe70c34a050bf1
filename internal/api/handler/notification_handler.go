package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/dto"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/service"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/response"
)

const (
	// 客户端须在 pongWait 内回应 ping
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second

	streamBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NotificationHandler 通知模块 HTTP 处理器
type NotificationHandler struct {
	notificationSvc service.NotificationService
	logger          *zap.Logger
}

// NewNotificationHandler 创建 NotificationHandler
func NewNotificationHandler(notificationSvc service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notificationSvc: notificationSvc, logger: logger}
}

// List 通知列表（最新在前）
// GET /api/v1/notifications?department=transport&unread_only=true&limit=50
func (h *NotificationHandler) List(c *gin.Context) {
	var req dto.NotificationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	response.OK(c, h.notificationSvc.List(&req))
}

// MarkRead 标记单条已读
// PUT /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, 10001, "id 格式非法")
		return
	}

	if !h.notificationSvc.MarkRead(id) {
		response.NotFound(c, 23001, "通知不存在或已被淘汰")
		return
	}

	response.OK(c, nil)
}

// MarkAllRead 批量标记已读，可按部门
// PUT /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	var req dto.MarkAllReadRequest
	if err := c.ShouldBind(&req); err != nil {
		bindFailed(c, err)
		return
	}

	n := h.notificationSvc.MarkAllRead(req.Department)
	response.OK(c, dto.MarkAllReadResponse{Updated: n})
}

// UnreadCount 未读数量
// GET /api/v1/notifications/unread-count?department=hr
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	dept := c.Query("department")
	response.OK(c, dto.UnreadCountResponse{Department: dept, Count: h.notificationSvc.UnreadCount(dept)})
}

// Stream 实时推送新通知（websocket），可按部门过滤
// GET /api/v1/notifications/stream?department=watchman
func (h *NotificationHandler) Stream(c *gin.Context) {
	dept := c.Query("department")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket 升级失败", zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := h.notificationSvc.Subscribe(streamBuffer)
	defer cancel()

	h.logger.Info("通知推送连接建立", zap.String("department", dept), zap.String("remote", c.ClientIP()))

	// 读循环只用于感知断开与处理 pong
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("通知推送连接异常关闭", zap.Error(err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
					time.Now().Add(writeWait))
				return
			}
			if dept != "" && ev.Department != dept {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("通知推送写入失败", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			h.logger.Info("通知推送连接关闭", zap.String("department", dept))
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
