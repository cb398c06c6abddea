// internal/api/handlers.go
package api

import (
	"fmt"
	"strconv"

	"github.com/Corphon/IntoTheDarkMCP/internal/protocol"
	"github.com/Corphon/IntoTheDarkMCP/internal/services"
	"github.com/gin-gonic/gin"
)

// Handler API 处理器集合
// 所有游戏操作统一走命令分发器，HTTP 层只负责参数解析与响应包装
type Handler struct {
	Session    *services.SessionService
	Stats      *services.StatsService
	Dispatcher *protocol.Dispatcher
	Hub        *SessionHub

	resp *ResponseHelper
}

// NewHandler 创建 API 处理器
func NewHandler(session *services.SessionService, stats *services.StatsService,
	dispatcher *protocol.Dispatcher, hub *SessionHub) *Handler {
	return &Handler{
		Session:    session,
		Stats:      stats,
		Dispatcher: dispatcher,
		Hub:        hub,
		resp:       NewResponseHelper(),
	}
}

// dispatch 执行一条命令并写出标准响应
func (h *Handler) dispatch(c *gin.Context, line string) {
	payload, err := h.Dispatcher.Dispatch(line)
	if err != nil {
		h.resp.EngineError(c, err)
		return
	}

	h.resp.Success(c, payload)
}

// CommandRequest POST /api/command 的请求体
type CommandRequest struct {
	Line string `json:"line" binding:"required"`
}

// HandleCommand 执行任意文本命令
func (h *Handler) HandleCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "无效的请求数据", err.Error())
		return
	}

	h.dispatch(c, req.Line)
}

// HandleGetScene 获取当前场景
func (h *Handler) HandleGetScene(c *gin.Context) {
	h.dispatch(c, protocol.CmdGetScene)
}

// HandleGetMemory 获取记忆特质与倾向
func (h *Handler) HandleGetMemory(c *gin.Context) {
	h.dispatch(c, protocol.CmdGetMemory)
}

// ChoiceRequest POST /api/choice 的请求体
type ChoiceRequest struct {
	ChoiceIndex *int `json:"choice_index" binding:"required"`
}

// HandleMakeChoice 应用一次玩家选择
func (h *Handler) HandleMakeChoice(c *gin.Context) {
	var req ChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "无效的请求数据", err.Error())
		return
	}

	h.dispatch(c, fmt.Sprintf("%s %d", protocol.CmdMakeChoice, *req.ChoiceIndex))
}

// HandleReset 重置游戏进度
func (h *Handler) HandleReset(c *gin.Context) {
	h.dispatch(c, protocol.CmdResetGame)
}

// HandleGetSceneList 获取带访问标记的场景列表
func (h *Handler) HandleGetSceneList(c *gin.Context) {
	h.dispatch(c, protocol.CmdGetSceneList)
}

// HandleGetSaveSlots 获取全部存档槽位概览
func (h *Handler) HandleGetSaveSlots(c *gin.Context) {
	h.dispatch(c, protocol.CmdGetSaveSlots)
}

// parseSlotParam 解析路径中的槽位参数
func (h *Handler) parseSlotParam(c *gin.Context) (int, bool) {
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		h.resp.BadRequest(c, "存档槽位必须是整数", c.Param("slot"))
		return 0, false
	}
	return slot, true
}

// HandleSaveSlot 把当前进度写入指定槽位
func (h *Handler) HandleSaveSlot(c *gin.Context) {
	slot, ok := h.parseSlotParam(c)
	if !ok {
		return
	}

	h.dispatch(c, fmt.Sprintf("%s %d", protocol.CmdSaveGame, slot))
}

// HandleLoadSlot 从指定槽位恢复进度
func (h *Handler) HandleLoadSlot(c *gin.Context) {
	slot, ok := h.parseSlotParam(c)
	if !ok {
		return
	}

	h.dispatch(c, fmt.Sprintf("%s %d", protocol.CmdLoadGame, slot))
}

// HandleGetAnalytics 获取游玩数据分析
func (h *Handler) HandleGetAnalytics(c *gin.Context) {
	h.dispatch(c, protocol.CmdGetAnalytics)
}

// HandleGetStats 获取原始命令统计（运维视角，不计入命令计数）
func (h *Handler) HandleGetStats(c *gin.Context) {
	h.resp.Success(c, h.Stats.GetUsageStats())
}

// HandleHealth 健康检查
func (h *Handler) HandleHealth(c *gin.Context) {
	h.resp.Success(c, gin.H{
		"status":  "ok",
		"story":   h.Session.Graph.Title(),
		"scenes":  h.Session.Graph.SceneCount(),
		"clients": h.Hub.ClientCount(),
	})
}
