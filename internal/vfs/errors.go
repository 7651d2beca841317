package vfs

import "errors"

// 错误分类：均可通过 errors.Is 判断，底层原因使用 %w 包装保留。
var (
	// ErrPathInvalid 表示虚拟路径格式非法，或挂载位置不可用（越出数据根目录等）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrPathNotFound 表示待挂载的目录/归档不存在。
	ErrPathNotFound = errors.New("path not found")
	// ErrResourceNotFound 表示没有任何已挂载源包含该路径。
	ErrResourceNotFound = errors.New("resource not found")
	// ErrSourceRead 表示命中的源在读取时出现 I/O 错误或数据损坏。
	ErrSourceRead = errors.New("source read error")
	// ErrDecode 表示解码器拒绝了原始字节。
	ErrDecode = errors.New("decode error")
)
