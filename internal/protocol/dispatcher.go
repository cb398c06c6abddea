// internal/protocol/dispatcher.go
package protocol

import (
	"encoding/json"
	"strconv"
	"strings"

	apperrors "github.com/Corphon/IntoTheDarkMCP/internal/errors"
	"github.com/Corphon/IntoTheDarkMCP/internal/models"
	"github.com/Corphon/IntoTheDarkMCP/internal/services"
)

// 命令协议的命令集
const (
	CmdGetScene     = "get_scene"
	CmdGetMemory    = "get_memory"
	CmdMakeChoice   = "make_choice"
	CmdResetGame    = "reset_game"
	CmdGetSceneList = "get_scene_list"
	CmdSaveGame     = "save_game"
	CmdLoadGame     = "load_game"
	CmdGetSaveSlots = "get_save_slots"
	CmdGetAnalytics = "get_analytics"
)

// ChoicePayload 场景选项在协议响应中的形态
type ChoicePayload struct {
	Text        string            `json:"text"`
	MemoryType  models.MemoryType `json:"memory_type"`
	MemoryDelta int               `json:"memory_delta"`
	Consequence string            `json:"consequence_text,omitempty"`
}

// ScenePayload get_scene 命令的响应
type ScenePayload struct {
	SceneID       int               `json:"scene_id"`
	Title         string            `json:"title"`
	Background    string            `json:"background"`
	Dialogue      string            `json:"dialogue"`
	Dialogues     []models.Dialogue `json:"dialogues"`
	AudioTrack    string            `json:"audio_track,omitempty"`
	AmbientSound  string            `json:"ambient_sound,omitempty"`
	Lighting      string            `json:"lighting,omitempty"`
	WeatherEffect string            `json:"weather_effect,omitempty"`
	CameraEffect  string            `json:"camera_effect,omitempty"`
	Choices       []ChoicePayload   `json:"choices"`
	IsTerminal    bool              `json:"is_terminal"`
}

// ResultPayload 变更类命令的响应
type ResultPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	SceneID int    `json:"scene_id,omitempty"`
}

// SceneListPayload get_scene_list 命令的响应
type SceneListPayload struct {
	Scenes []models.SceneSummary `json:"scenes"`
}

// SaveSlotsPayload get_save_slots 命令的响应
type SaveSlotsPayload struct {
	SaveSlots []models.SaveSlotInfo `json:"save_slots"`
}

// AnalyticsPayload get_analytics 命令的响应
type AnalyticsPayload struct {
	TotalCommands        int            `json:"total_commands"`
	CommandCounts        map[string]int `json:"command_counts"`
	ErrorCounts          map[string]int `json:"error_counts"`
	PlayStyle            string         `json:"play_style"`
	TotalScenes          int            `json:"total_scenes"`
	WatchedScenes        int            `json:"watched_scenes"`
	CompletionPercentage float64        `json:"completion_percentage"`
}

// ErrorPayload 失败响应：错误种类 + 消息，不携带数据字段
type ErrorPayload struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail 错误详情
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Dispatcher 命令分发器
// 自身无状态：解析命令行，调用引擎操作，构造完整响应后才交给传输层
type Dispatcher struct {
	Session *services.SessionService
	Stats   *services.StatsService
}

// NewDispatcher 创建命令分发器
func NewDispatcher(session *services.SessionService, stats *services.StatsService) *Dispatcher {
	return &Dispatcher{
		Session: session,
		Stats:   stats,
	}
}

// Dispatch 解析并执行一条命令
// 返回的 payload 仅在 err 为 nil 时有效
func (d *Dispatcher) Dispatch(line string) (interface{}, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, apperrors.NewMalformedArgumentError("命令为空")
	}

	command := fields[0]
	args := fields[1:]

	if d.Stats != nil {
		d.Stats.RecordCommand(command)
	}

	payload, err := d.execute(command, args)
	if err != nil && d.Stats != nil {
		d.Stats.RecordError(string(apperrors.TypeOf(err)))
	}

	return payload, err
}

// execute 命令到引擎操作的映射
func (d *Dispatcher) execute(command string, args []string) (interface{}, error) {
	switch command {
	case CmdGetScene:
		return d.getScene()
	case CmdGetMemory:
		return d.Session.GetMemoryData(), nil
	case CmdMakeChoice:
		return d.makeChoice(args)
	case CmdResetGame:
		return d.resetGame()
	case CmdGetSceneList:
		return &SceneListPayload{Scenes: d.Session.ListScenes()}, nil
	case CmdSaveGame:
		return d.saveGame(args)
	case CmdLoadGame:
		return d.loadGame(args)
	case CmdGetSaveSlots:
		return &SaveSlotsPayload{SaveSlots: d.Session.Saves.ListSlots()}, nil
	case CmdGetAnalytics:
		return d.getAnalytics()
	default:
		return nil, apperrors.NewUnknownCommandError(command)
	}
}

// getScene 构造当前场景响应
func (d *Dispatcher) getScene() (interface{}, error) {
	scene, err := d.Session.CurrentScene()
	if err != nil {
		return nil, err
	}

	choices := make([]ChoicePayload, 0, len(scene.Choices))
	for _, c := range scene.Choices {
		choices = append(choices, ChoicePayload{
			Text:        c.Text,
			MemoryType:  c.MemoryType,
			MemoryDelta: c.MemoryDelta,
			Consequence: c.Consequence,
		})
	}

	return &ScenePayload{
		SceneID:       scene.ID,
		Title:         scene.Title,
		Background:    scene.Background,
		Dialogue:      scene.DialogueText(),
		Dialogues:     scene.Dialogues,
		AudioTrack:    scene.AudioTrack,
		AmbientSound:  scene.AmbientSound,
		Lighting:      scene.Lighting,
		WeatherEffect: scene.WeatherEffect,
		CameraEffect:  scene.CameraEffect,
		Choices:       choices,
		IsTerminal:    scene.IsTerminal(),
	}, nil
}

// makeChoice 解析索引参数并应用选择
func (d *Dispatcher) makeChoice(args []string) (interface{}, error) {
	if len(args) == 0 {
		return nil, apperrors.NewMalformedArgumentError("make_choice 需要选项索引参数")
	}

	index, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, apperrors.NewMalformedArgumentError("选项索引必须是整数: " + args[0])
	}

	result, err := d.Session.MakeChoice(index)
	if err != nil {
		return nil, err
	}

	return &ResultPayload{
		Success: true,
		Message: result.Consequence,
		SceneID: result.SceneID,
	}, nil
}

// resetGame 重置会话
func (d *Dispatcher) resetGame() (interface{}, error) {
	if err := d.Session.Reset(); err != nil {
		return nil, err
	}

	return &ResultPayload{
		Success: true,
		Message: "游戏已重置",
	}, nil
}

// parseSlot 解析可选的槽位参数，缺省为自动存档槽位
func parseSlot(args []string) (int, error) {
	if len(args) == 0 {
		return services.AutoSaveSlot, nil
	}

	slot, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, apperrors.NewMalformedArgumentError("存档槽位必须是整数: " + args[0])
	}

	return slot, nil
}

// saveGame 保存到指定槽位
func (d *Dispatcher) saveGame(args []string) (interface{}, error) {
	slot, err := parseSlot(args)
	if err != nil {
		return nil, err
	}

	if err := d.Session.SaveToSlot(slot); err != nil {
		return nil, err
	}

	return &ResultPayload{
		Success: true,
		Message: "存档完成",
	}, nil
}

// loadGame 从指定槽位恢复
func (d *Dispatcher) loadGame(args []string) (interface{}, error) {
	slot, err := parseSlot(args)
	if err != nil {
		return nil, err
	}

	if err := d.Session.RestoreSlot(slot); err != nil {
		return nil, err
	}

	return &ResultPayload{
		Success: true,
		Message: "读档完成",
	}, nil
}

// getAnalytics 汇总命令统计与游玩进度
func (d *Dispatcher) getAnalytics() (interface{}, error) {
	memory := d.Session.GetMemoryData()
	snapshot := d.Session.SessionSnapshot()

	payload := &AnalyticsPayload{
		PlayStyle:            memory.Insights.PlayStyle,
		TotalScenes:          d.Session.Graph.SceneCount(),
		WatchedScenes:        len(snapshot.WatchedScenes),
		CompletionPercentage: d.Session.CompletionPercentage(),
	}

	if d.Stats != nil {
		stats := d.Stats.GetUsageStats()
		payload.TotalCommands = stats.TotalCommands
		payload.CommandCounts = stats.CommandCounts
		payload.ErrorCounts = stats.ErrorCounts
	}

	return payload, nil
}

// DispatchJSON 执行命令并把结果（或错误）编码为单条JSON记录
// 响应在交给传输层之前已经完整构造，不存在半写状态
func (d *Dispatcher) DispatchJSON(line string) []byte {
	payload, err := d.Dispatch(line)
	if err != nil {
		payload = BuildErrorPayload(err)
	}

	data, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		data, _ = json.Marshal(ErrorPayload{Error: ErrorDetail{
			Kind:    string(apperrors.ErrorTypePersistence),
			Message: "响应编码失败",
		}})
	}

	return data
}

// BuildErrorPayload 把引擎错误转换为协议错误响应
func BuildErrorPayload(err error) ErrorPayload {
	kind := apperrors.TypeOf(err)
	if kind == "" {
		kind = "internal_error"
	}

	return ErrorPayload{Error: ErrorDetail{
		Kind:    string(kind),
		Message: err.Error(),
	}}
}
