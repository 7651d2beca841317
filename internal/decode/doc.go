// Package decode 维护按名称注册的资源解码器。
//
// 解码器是纯函数：输入原始字节，输出解码后的对象，失败时返回包装了
// vfs.ErrDecode 的错误。内置 raw、text、json、toml 四种，CLI 与诊断接口
// 通过名称或文件扩展名选择解码器。
package decode
