// internal/services/lock_manager.go
package services

import (
	"sync"
)

// LockManager 统一的会话锁管理器
// 引擎同一时刻只服务一个会话，但 HTTP 传输层可能并发投递命令，
// 因此每个会话由一把互斥锁保证命令串行执行（按会话互斥，非全局）
type LockManager struct {
	sessionLocks map[string]*sync.RWMutex
	globalLock   sync.RWMutex
}

// NewLockManager 创建锁管理器
func NewLockManager() *LockManager {
	return &LockManager{
		sessionLocks: make(map[string]*sync.RWMutex),
	}
}

// GetSessionLock 获取会话锁（线程安全）
func (lm *LockManager) GetSessionLock(sessionID string) *sync.RWMutex {
	lm.globalLock.RLock()
	if lock, exists := lm.sessionLocks[sessionID]; exists {
		lm.globalLock.RUnlock()
		return lock
	}
	lm.globalLock.RUnlock()

	// 升级为写锁
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	// 双重检查（在写锁保护下是安全的）
	if lock, exists := lm.sessionLocks[sessionID]; exists {
		return lock
	}

	lock := &sync.RWMutex{}
	lm.sessionLocks[sessionID] = lock
	return lock
}

// ExecuteWithSessionLock 在会话写锁保护下执行操作
func (lm *LockManager) ExecuteWithSessionLock(sessionID string, fn func() error) error {
	lock := lm.GetSessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// ExecuteWithSessionReadLock 在会话读锁保护下执行操作
func (lm *LockManager) ExecuteWithSessionReadLock(sessionID string, fn func() error) error {
	lock := lm.GetSessionLock(sessionID)
	lock.RLock()
	defer lock.RUnlock()
	return fn()
}

// ReleaseSessionLock 移除不再使用的会话锁
func (lm *LockManager) ReleaseSessionLock(sessionID string) {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	delete(lm.sessionLocks, sessionID)
}
