package storage

import (
	"os"
	"path/filepath"
	"testing"
)

// TestSaveAndLoadFile 基础读写往返
func TestSaveAndLoadFile(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}

	content := []byte("hello dark world")
	if err := store.SaveFile("sub", "test.txt", content); err != nil {
		t.Fatalf("写入文件失败: %v", err)
	}

	loaded, err := store.LoadFile("sub", "test.txt")
	if err != nil {
		t.Fatalf("读取文件失败: %v", err)
	}
	if string(loaded) != string(content) {
		t.Fatalf("内容不匹配: %s", loaded)
	}

	if !store.FileExists("sub", "test.txt") {
		t.Fatal("文件应存在")
	}
	if store.FileExists("sub", "missing.txt") {
		t.Fatal("缺失文件不应存在")
	}
}

// TestSaveFileAtomic 覆盖写入后不应残留临时文件
func TestSaveFileAtomic(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}

	if err := store.SaveFile("", "data.json", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("第一次写入失败: %v", err)
	}
	if err := store.SaveFile("", "data.json", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("覆盖写入失败: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "data.json.tmp")); !os.IsNotExist(err) {
		t.Fatal("不应残留临时文件")
	}

	loaded, err := store.LoadFile("", "data.json")
	if err != nil {
		t.Fatalf("读取文件失败: %v", err)
	}
	if string(loaded) != `{"v":2}` {
		t.Fatalf("覆盖后内容不正确: %s", loaded)
	}
}

// TestSaveLoadJSON JSON 序列化往返并穿透缓存读到新值
func TestSaveLoadJSON(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	if err := store.SaveJSONFile("saves", "r.json", record{Name: "rika", Count: 1}); err != nil {
		t.Fatalf("写入JSON失败: %v", err)
	}

	var loaded record
	if err := store.LoadJSONFile("saves", "r.json", &loaded); err != nil {
		t.Fatalf("读取JSON失败: %v", err)
	}
	if loaded.Name != "rika" || loaded.Count != 1 {
		t.Fatalf("JSON内容不匹配: %+v", loaded)
	}

	// 覆盖写入应使缓存失效
	if err := store.SaveJSONFile("saves", "r.json", record{Name: "rika", Count: 2}); err != nil {
		t.Fatalf("覆盖写入失败: %v", err)
	}
	if err := store.LoadJSONFile("saves", "r.json", &loaded); err != nil {
		t.Fatalf("二次读取失败: %v", err)
	}
	if loaded.Count != 2 {
		t.Fatalf("应读到覆盖后的值，实际为 %d", loaded.Count)
	}
}

// TestLoadMissingFile 缺失文件返回底层 os 错误
func TestLoadMissingFile(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}

	if _, err := store.LoadFile("", "missing.json"); !os.IsNotExist(err) {
		t.Fatalf("缺失文件应返回不存在错误，实际为 %v", err)
	}
}

// TestDeleteFile 删除文件并使缓存失效
func TestDeleteFile(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}

	if err := store.SaveFile("", "gone.txt", []byte("x")); err != nil {
		t.Fatalf("写入文件失败: %v", err)
	}
	if _, err := store.LoadFile("", "gone.txt"); err != nil {
		t.Fatalf("读取文件失败: %v", err)
	}

	if err := store.DeleteFile("", "gone.txt"); err != nil {
		t.Fatalf("删除文件失败: %v", err)
	}
	if store.FileExists("", "gone.txt") {
		t.Fatal("删除后文件不应存在")
	}
	if _, err := store.LoadFile("", "gone.txt"); err == nil {
		t.Fatal("删除后读取应失败")
	}

	if err := store.DeleteFile("", "gone.txt"); err == nil {
		t.Fatal("重复删除应返回错误")
	}
}

// TestListFiles 只列出普通文件
func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}

	if err := store.SaveFile("saves", "a.json", []byte("{}")); err != nil {
		t.Fatalf("写入文件失败: %v", err)
	}
	if err := store.SaveFile("saves", "b.json", []byte("{}")); err != nil {
		t.Fatalf("写入文件失败: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "saves", "nested"), 0755); err != nil {
		t.Fatalf("创建子目录失败: %v", err)
	}

	files, err := store.ListFiles("saves")
	if err != nil {
		t.Fatalf("列出文件失败: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("应列出 2 个文件，实际为 %d: %v", len(files), files)
	}

	// 缺失目录返回空列表而非错误
	files, err = store.ListFiles("missing")
	if err != nil || files != nil {
		t.Fatalf("缺失目录应返回空列表: %v, %v", files, err)
	}
}
