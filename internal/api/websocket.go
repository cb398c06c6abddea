// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Corphon/IntoTheDarkMCP/internal/services"
	"github.com/Corphon/IntoTheDarkMCP/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 引擎与表现层运行在同一台机器上，放开来源检查
		return true
	},
}

// SessionClient 表示一个订阅会话状态的 WebSocket 连接
type SessionClient struct {
	conn     *websocket.Conn
	send     chan []byte
	closed   int32 // 原子操作标志，0=开启，1=关闭
	lastPing time.Time
}

// Close 安全关闭客户端连接
func (client *SessionClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// IsClosed 判断连接是否已关闭
func (client *SessionClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// SessionHub 管理全部表现层订阅连接
// 每次变更类命令执行后，引擎把新状态推送给所有连接
type SessionHub struct {
	clients    map[*SessionClient]bool
	broadcast  chan []byte
	register   chan *SessionClient
	unregister chan *SessionClient
}

// NewSessionHub 创建并启动会话推送中心
func NewSessionHub() *SessionHub {
	hub := &SessionHub{
		clients:    make(map[*SessionClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *SessionClient, 16),
		unregister: make(chan *SessionClient, 16),
	}

	go hub.run()

	return hub
}

// run 中心事件循环
func (h *SessionHub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, exists := h.clients[client]; exists {
				delete(h.clients, client)
				close(client.send)
				client.Close()
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// 发送缓冲已满，视为掉线
					delete(h.clients, client)
					close(client.send)
					client.Close()
				}
			}
		}
	}
}

// BroadcastStateUpdate 把会话状态变更推送给所有订阅者
func (h *SessionHub) BroadcastStateUpdate(update services.StateUpdate) {
	message, err := json.Marshal(map[string]interface{}{
		"type": "state_update",
		"data": update,
	})
	if err != nil {
		utils.GetLogger().Errorf("编码状态推送失败: %v", err)
		return
	}

	select {
	case h.broadcast <- message:
	default:
		// 广播通道拥塞时丢弃本条，后续变更会带来最新状态
	}
}

// ClientCount 当前连接数（调试用）
func (h *SessionHub) ClientCount() int {
	return len(h.clients)
}

// HandleSessionSocket 处理 /ws/session 连接升级
func (h *SessionHub) HandleSessionSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Errorf("WebSocket 升级失败: %v", err)
		return
	}

	client := &SessionClient{
		conn:     conn,
		send:     make(chan []byte, 32),
		lastPing: time.Now(),
	}

	h.register <- client

	go h.writePump(client)
	go h.readPump(client)
}

// writePump 把推送消息写入连接，并维持心跳
func (h *SessionHub) writePump(client *SessionClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 消费入站消息以驱动 pong 处理，连接断开时注销客户端
func (h *SessionHub) readPump(client *SessionClient) {
	defer func() {
		h.unregister <- client
	}()

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.lastPing = time.Now()
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
