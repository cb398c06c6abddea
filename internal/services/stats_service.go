// internal/services/stats_service.go
package services

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// UsageStats 表示命令协议的使用统计
type UsageStats struct {
	TotalCommands int            `json:"total_commands"`
	CommandCounts map[string]int `json:"command_counts"`
	ErrorCounts   map[string]int `json:"error_counts"`
	StartedAt     time.Time      `json:"started_at"`
	LastUpdated   time.Time      `json:"last_updated"`
}

// StatsService 累计每个命令的调用与失败次数
// 数据批量落盘：脏标记 + 定时器，关闭时强制写出
type StatsService struct {
	BasePath    string
	statsFile   string
	mutex       sync.Mutex
	cachedStats *UsageStats

	// 批量保存控制
	isDirty      bool
	saveInterval time.Duration
	stopChan     chan struct{}
	stopOnce     sync.Once
}

// ------------------------------------
// NewStatsService 创建统计服务实例
func NewStatsService(basePath string) *StatsService {
	if basePath == "" {
		basePath = "data/stats"
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		fmt.Printf("警告: 创建统计目录失败: %v\n", err)
	}

	service := &StatsService{
		BasePath:     basePath,
		statsFile:    filepath.Join(basePath, "usage_stats.json"),
		saveInterval: 30 * time.Second,
		stopChan:     make(chan struct{}),
	}

	service.startPeriodicSave()

	return service
}

// initStatsUnlocked 初始化统计数据（无锁版本）
func (s *StatsService) initStatsUnlocked() {
	if loadedStats, err := s.loadStatsFromFile(); err == nil {
		if loadedStats.CommandCounts == nil {
			loadedStats.CommandCounts = make(map[string]int)
		}
		if loadedStats.ErrorCounts == nil {
			loadedStats.ErrorCounts = make(map[string]int)
		}
		s.cachedStats = loadedStats
		return
	}

	// 加载失败或文件不存在，创建新的统计数据
	s.cachedStats = &UsageStats{
		CommandCounts: make(map[string]int),
		ErrorCounts:   make(map[string]int),
		StartedAt:     time.Now(),
		LastUpdated:   time.Now(),
	}

	if err := s.saveStats(s.cachedStats); err != nil {
		fmt.Printf("警告: 保存初始统计数据失败: %v\n", err)
	}
}

// loadStatsFromFile 从文件加载统计数据
func (s *StatsService) loadStatsFromFile() (*UsageStats, error) {
	data, err := os.ReadFile(s.statsFile)
	if err != nil {
		return nil, err
	}

	var stats UsageStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("解析统计文件失败: %w", err)
	}

	return &stats, nil
}

// saveStats 保存统计数据到文件
// 先写临时文件再重命名，避免写入中断留下半截文件
func (s *StatsService) saveStats(stats *UsageStats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化统计数据失败: %w", err)
	}

	tempFile := s.statsFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("写入临时统计文件失败: %w", err)
	}

	if err := os.Rename(tempFile, s.statsFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("重命名统计文件失败: %w", err)
	}

	return nil
}

// RecordCommand 记录一次命令调用
func (s *StatsService) RecordCommand(command string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.cachedStats == nil {
		s.initStatsUnlocked()
	}

	s.cachedStats.TotalCommands++
	s.cachedStats.CommandCounts[command]++
	s.cachedStats.LastUpdated = time.Now()
	s.isDirty = true
}

// RecordError 记录一次命令失败
func (s *StatsService) RecordError(errorCode string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.cachedStats == nil {
		s.initStatsUnlocked()
	}

	s.cachedStats.ErrorCounts[errorCode]++
	s.cachedStats.LastUpdated = time.Now()
	s.isDirty = true
}

// GetUsageStats 返回统计数据的副本
func (s *StatsService) GetUsageStats() *UsageStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.cachedStats == nil {
		s.initStatsUnlocked()
	}

	return s.createStatsCopy()
}

// createStatsCopy 创建统计数据的深拷贝（调用方需持有锁）
func (s *StatsService) createStatsCopy() *UsageStats {
	statsCopy := *s.cachedStats
	statsCopy.CommandCounts = make(map[string]int, len(s.cachedStats.CommandCounts))
	maps.Copy(statsCopy.CommandCounts, s.cachedStats.CommandCounts)
	statsCopy.ErrorCounts = make(map[string]int, len(s.cachedStats.ErrorCounts))
	maps.Copy(statsCopy.ErrorCounts, s.cachedStats.ErrorCounts)
	return &statsCopy
}

// startPeriodicSave 启动定时保存循环
func (s *StatsService) startPeriodicSave() {
	go func() {
		ticker := time.NewTicker(s.saveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.flushIfDirty()
			case <-s.stopChan:
				s.flushIfDirty()
				return
			}
		}
	}()
}

// flushIfDirty 有未保存的变更时写出
func (s *StatsService) flushIfDirty() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isDirty || s.cachedStats == nil {
		return
	}

	if err := s.saveStats(s.cachedStats); err != nil {
		fmt.Printf("警告: 保存统计数据失败: %v\n", err)
		return
	}

	s.isDirty = false
}

// ResetStats 清零统计数据
func (s *StatsService) ResetStats() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.cachedStats = &UsageStats{
		CommandCounts: make(map[string]int),
		ErrorCounts:   make(map[string]int),
		StartedAt:     time.Now(),
		LastUpdated:   time.Now(),
	}
	s.isDirty = false

	return s.saveStats(s.cachedStats)
}

// Close 停止定时保存并写出剩余变更
func (s *StatsService) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	s.flushIfDirty()
	return nil
}
