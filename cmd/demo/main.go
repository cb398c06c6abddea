// cmd/demo/main.go
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Corphon/IntoTheDarkMCP/internal/app"
	"github.com/Corphon/IntoTheDarkMCP/internal/config"
	"github.com/Corphon/IntoTheDarkMCP/internal/di"
	"github.com/Corphon/IntoTheDarkMCP/internal/models"
	"github.com/Corphon/IntoTheDarkMCP/internal/protocol"
	"github.com/Corphon/IntoTheDarkMCP/internal/services"
	"github.com/Corphon/IntoTheDarkMCP/internal/utils"
)

func main() {
	fmt.Println("🌑 Into the Dark - Console")
	fmt.Println("==========================")

	// 初始化配置
	baseConfig, err := config.Load()
	if err != nil {
		log.Printf("❌ 加载基础配置失败: %v", err)
		return
	}

	os.MkdirAll(baseConfig.DataDir, 0755)
	os.MkdirAll(filepath.Join(baseConfig.DataDir, "saves"), 0755)
	os.MkdirAll(baseConfig.LogDir, 0755)

	// 初始化日志系统
	logFile := filepath.Join(baseConfig.LogDir, fmt.Sprintf("console_%s.log", time.Now().Format("2006-01-02")))
	if err := utils.InitLogger(logFile); err != nil {
		log.Printf("⚠️ 无法初始化结构化日志: %v", err)
	}

	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		log.Printf("❌ 初始化配置系统失败: %v", err)
		return
	}

	if err := app.InitServices(); err != nil {
		log.Printf("❌ 初始化服务失败: %v", err)
		return
	}
	defer app.GetApp().Cleanup()

	container := di.GetContainer()
	session := container.Get("session").(*services.SessionService)
	dispatcher := container.Get("dispatcher").(*protocol.Dispatcher)

	fmt.Printf("剧本: %s（%d 个场景）\n", session.Graph.Title(), session.Graph.SceneCount())
	fmt.Println("输入选项编号做出选择，或输入命令: memory / saves / save N / load N / scenes / stats / reset / quit")
	fmt.Println()

	runStoryLoop(session, dispatcher)
}

// runStoryLoop 主游玩循环：展示场景，读取输入，执行命令
func runStoryLoop(session *services.SessionService, dispatcher *protocol.Dispatcher) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		showCurrentScene(session)

		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		line, quit := translateInput(input)
		if quit {
			fmt.Println("再见。")
			return
		}

		payload, err := dispatcher.Dispatch(line)
		if err != nil {
			detail := protocol.BuildErrorPayload(err)
			fmt.Printf("⚠️ [%s] %s\n\n", detail.Error.Kind, detail.Error.Message)
			continue
		}

		printPayload(payload)
		fmt.Println()
	}
}

// translateInput 把控制台输入映射为引擎命令行
// 纯数字输入视为选项编号（从 1 开始），其余按命令原样透传
func translateInput(input string) (line string, quit bool) {
	fields := strings.Fields(input)

	switch fields[0] {
	case "quit", "exit", "q":
		return "", true
	case "memory", "m":
		return protocol.CmdGetMemory, false
	case "scenes":
		return protocol.CmdGetSceneList, false
	case "saves":
		return protocol.CmdGetSaveSlots, false
	case "save":
		return strings.Join(append([]string{protocol.CmdSaveGame}, fields[1:]...), " "), false
	case "load":
		return strings.Join(append([]string{protocol.CmdLoadGame}, fields[1:]...), " "), false
	case "stats":
		return protocol.CmdGetAnalytics, false
	case "reset":
		return protocol.CmdResetGame, false
	}

	if index, ok := asChoiceNumber(fields[0]); ok {
		return fmt.Sprintf("%s %d", protocol.CmdMakeChoice, index), false
	}

	return input, false
}

// asChoiceNumber 把 1 开始的菜单编号转为 0 开始的选项索引
func asChoiceNumber(s string) (int, bool) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n - 1, true
}

// showCurrentScene 打印当前场景与选项
func showCurrentScene(session *services.SessionService) {
	scene, err := session.CurrentScene()
	if err != nil {
		fmt.Printf("⚠️ 无法获取当前场景: %v\n", err)
		return
	}

	fmt.Println("────────────────────────────────────────")
	fmt.Printf("【%d】%s\n", scene.ID, scene.Title)
	fmt.Println("────────────────────────────────────────")
	for _, d := range scene.Dialogues {
		if d.Speaker != "" {
			fmt.Printf("%s: %s\n", d.Speaker, d.Text)
		} else {
			fmt.Println(d.Text)
		}
	}
	fmt.Println()

	if scene.IsTerminal() {
		memory := session.GetMemoryData()
		fmt.Println("✦ 故事到此结束 ✦")
		fmt.Printf("最终倾向: %s（共 %d 次选择）\n", memory.Alignment, memory.TotalChoices)
		fmt.Println("输入 reset 重新开始，或 quit 退出。")
		return
	}

	for i, choice := range scene.Choices {
		fmt.Printf("  %d. %s\n", i+1, choice.Text)
	}
}

// printPayload 以可读形式打印命令结果
func printPayload(payload interface{}) {
	switch p := payload.(type) {
	case *protocol.ResultPayload:
		if p.Message != "" {
			fmt.Printf("▸ %s\n", p.Message)
		}
	case *services.MemoryData:
		fmt.Printf("倾向: %s（共 %d 次选择，风格: %s）\n", p.Alignment, p.TotalChoices, p.Insights.PlayStyle)
		for _, trait := range models.RecognizedTraits {
			fmt.Printf("  %-10s %3d\n", trait, p.Values[trait])
		}
	case *protocol.SceneListPayload:
		for _, s := range p.Scenes {
			marker := " "
			if s.Watched {
				marker = "✓"
			}
			fmt.Printf("  [%s] %d. %s\n", marker, s.ID, s.Title)
		}
	case *protocol.SaveSlotsPayload:
		for _, slot := range p.SaveSlots {
			if !slot.Exists {
				fmt.Printf("  槽位 %d: （空）\n", slot.Slot)
				continue
			}
			fmt.Printf("  槽位 %d: 场景 %d，倾向 %s，%d 次选择，%s\n",
				slot.Slot, slot.CurrentScene, slot.Alignment, slot.ChoicesMade,
				slot.Timestamp.Format("2006-01-02 15:04"))
		}
	case *protocol.AnalyticsPayload:
		fmt.Printf("命令总数: %d，完成度: %.1f%%（%d/%d 场景），风格: %s\n",
			p.TotalCommands, p.CompletionPercentage, p.WatchedScenes, p.TotalScenes, p.PlayStyle)
	case *protocol.ScenePayload:
		// 场景在循环顶部统一展示
	}
}
