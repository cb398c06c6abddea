package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Corphon/IntoTheDarkMCP/internal/models"
	"github.com/Corphon/IntoTheDarkMCP/internal/protocol"
	"github.com/Corphon/IntoTheDarkMCP/internal/services"
	"github.com/gin-gonic/gin"
)

// newTestRouter 在临时目录上搭建完整的HTTP测试环境
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	graph, err := services.NewGraphServiceFromGraph(&models.StoryGraph{
		Title:        "API Test",
		StartSceneID: 1,
		Scenes: []models.Scene{
			{
				ID:    1,
				Title: "Entry",
				Dialogues: []models.Dialogue{
					{Speaker: "Narrator", Text: "Start here."},
				},
				Choices: []models.Choice{
					{Text: "Go on.", MemoryType: models.MemoryTruth, MemoryDelta: 5, NextSceneID: 2, Consequence: "Onward."},
				},
			},
			{ID: 2, Title: "Exit"},
		},
	})
	if err != nil {
		t.Fatalf("创建场景图失败: %v", err)
	}

	dir := t.TempDir()
	saves, err := services.NewSaveService(dir, graph, models.DefaultAlignmentRules)
	if err != nil {
		t.Fatalf("创建存档服务失败: %v", err)
	}

	session, err := services.NewSessionService(graph, saves, models.DefaultAlignmentRules)
	if err != nil {
		t.Fatalf("创建会话服务失败: %v", err)
	}

	stats := services.NewStatsService(dir)
	t.Cleanup(func() { stats.Close() })

	hub := NewSessionHub()
	session.Subscribe(hub.BroadcastStateUpdate)

	handler := NewHandler(session, stats, protocol.NewDispatcher(session, stats), hub)

	r := gin.New()
	r.Use(corsMiddleware())
	r.Use(requestIDMiddleware())

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", handler.HandleHealth)
		apiGroup.POST("/command", handler.HandleCommand)
		apiGroup.GET("/scene", handler.HandleGetScene)
		apiGroup.GET("/memory", handler.HandleGetMemory)
		apiGroup.POST("/choice", handler.HandleMakeChoice)
		apiGroup.POST("/reset", handler.HandleReset)
		apiGroup.GET("/scenes", handler.HandleGetSceneList)
		apiGroup.GET("/saves", handler.HandleGetSaveSlots)
		apiGroup.POST("/saves/:slot", handler.HandleSaveSlot)
		apiGroup.POST("/saves/:slot/load", handler.HandleLoadSlot)
		apiGroup.GET("/analytics", handler.HandleGetAnalytics)
		apiGroup.GET("/stats", handler.HandleGetStats)
	}

	return r
}

// doRequest 执行一次测试请求并解析标准响应信封
func doRequest(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, *APIResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("编码请求体失败: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v（原始响应: %s）", err, w.Body.String())
	}

	return w, &resp
}

// TestGetSceneEndpoint GET /api/scene 返回当前场景
func TestGetSceneEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w, resp := doRequest(t, r, http.MethodGet, "/api/scene", nil)
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("请求失败: %d %+v", w.Code, resp)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("响应数据类型不正确: %T", resp.Data)
	}
	if data["scene_id"].(float64) != 1 || data["title"] != "Entry" {
		t.Fatalf("场景数据不正确: %+v", data)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("响应应携带请求ID")
	}
}

// TestMakeChoiceEndpoint POST /api/choice 推进会话
func TestMakeChoiceEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w, resp := doRequest(t, r, http.MethodPost, "/api/choice", map[string]int{"choice_index": 0})
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("请求失败: %d %+v", w.Code, resp)
	}

	// 场景 2 是终局，再次选择应返回 409 无可用选项
	w, resp = doRequest(t, r, http.MethodPost, "/api/choice", map[string]int{"choice_index": 9})
	if w.Code != http.StatusConflict {
		t.Fatalf("终局场景应返回 409，实际为 %d: %+v", w.Code, resp)
	}
	if resp.Error == nil || resp.Error.Code != ErrorNoChoices {
		t.Fatalf("错误代码不正确: %+v", resp.Error)
	}

	// 缺失请求体返回 400
	w, _ = doRequest(t, r, http.MethodPost, "/api/choice", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("缺失参数应返回 400，实际为 %d", w.Code)
	}
}

// TestInvalidChoiceEndpoint 未终局时越界索引返回 400
func TestInvalidChoiceEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w, resp := doRequest(t, r, http.MethodPost, "/api/choice", map[string]int{"choice_index": 5})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("越界索引应返回 400，实际为 %d: %+v", w.Code, resp)
	}
	if resp.Error == nil || resp.Error.Code != ErrorChoiceInvalid {
		t.Fatalf("错误代码不正确: %+v", resp.Error)
	}
}

// TestCommandEndpoint POST /api/command 与控制台命令同语义
func TestCommandEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w, resp := doRequest(t, r, http.MethodPost, "/api/command", map[string]string{"line": "get_memory"})
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("请求失败: %d %+v", w.Code, resp)
	}

	w, resp = doRequest(t, r, http.MethodPost, "/api/command", map[string]string{"line": "warp 3"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("未知命令应返回 400，实际为 %d", w.Code)
	}
	if resp.Error == nil || resp.Error.Code != ErrorUnknownCommand {
		t.Fatalf("错误代码不正确: %+v", resp.Error)
	}
}

// TestSaveLoadEndpoints 槽位存读全链路
func TestSaveLoadEndpoints(t *testing.T) {
	r := newTestRouter(t)

	if w, _ := doRequest(t, r, http.MethodPost, "/api/saves/4", nil); w.Code != http.StatusOK {
		t.Fatalf("存档失败: %d", w.Code)
	}

	if w, _ := doRequest(t, r, http.MethodPost, "/api/choice", map[string]int{"choice_index": 0}); w.Code != http.StatusOK {
		t.Fatalf("选择失败: %d", w.Code)
	}

	if w, _ := doRequest(t, r, http.MethodPost, "/api/saves/4/load", nil); w.Code != http.StatusOK {
		t.Fatalf("读档失败: %d", w.Code)
	}

	w, resp := doRequest(t, r, http.MethodGet, "/api/scene", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("获取场景失败: %d", w.Code)
	}
	data := resp.Data.(map[string]interface{})
	if data["scene_id"].(float64) != 1 {
		t.Fatalf("读档后应回到场景 1: %+v", data)
	}

	// 空槽位读档返回 404
	w, resp = doRequest(t, r, http.MethodPost, "/api/saves/9/load", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("空槽位应返回 404，实际为 %d", w.Code)
	}
	if resp.Error == nil || resp.Error.Code != ErrorSaveMissing {
		t.Fatalf("错误代码不正确: %+v", resp.Error)
	}

	// 非整数槽位返回 400
	if w, _ := doRequest(t, r, http.MethodPost, "/api/saves/abc", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("非整数槽位应返回 400，实际为 %d", w.Code)
	}
}

// TestResetAndMemoryEndpoints 重置后记忆清零
func TestResetAndMemoryEndpoints(t *testing.T) {
	r := newTestRouter(t)

	if w, _ := doRequest(t, r, http.MethodPost, "/api/choice", map[string]int{"choice_index": 0}); w.Code != http.StatusOK {
		t.Fatalf("选择失败: %d", w.Code)
	}
	if w, _ := doRequest(t, r, http.MethodPost, "/api/reset", nil); w.Code != http.StatusOK {
		t.Fatalf("重置失败: %d", w.Code)
	}

	w, resp := doRequest(t, r, http.MethodGet, "/api/memory", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("获取记忆失败: %d", w.Code)
	}
	data := resp.Data.(map[string]interface{})
	if data["total_choices"].(float64) != 0 {
		t.Fatalf("重置后选择数应为 0: %+v", data)
	}
}

// TestHealthAndStatsEndpoints 健康检查与统计端点
func TestHealthAndStatsEndpoints(t *testing.T) {
	r := newTestRouter(t)

	w, resp := doRequest(t, r, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("健康检查失败: %d %+v", w.Code, resp)
	}

	if w, _ := doRequest(t, r, http.MethodGet, "/api/scenes", nil); w.Code != http.StatusOK {
		t.Fatalf("场景列表失败: %d", w.Code)
	}
	if w, _ := doRequest(t, r, http.MethodGet, "/api/analytics", nil); w.Code != http.StatusOK {
		t.Fatalf("分析数据失败: %d", w.Code)
	}
	if w, _ := doRequest(t, r, http.MethodGet, "/api/stats", nil); w.Code != http.StatusOK {
		t.Fatalf("统计数据失败: %d", w.Code)
	}
}
