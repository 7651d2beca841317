package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"
	"unicode/utf8"

	"github.com/pelletier/go-toml/v2"

	"github.com/driftwood2d/resvfs/internal/vfs"
)

func init() {
	MustRegister(Decoder{Key: "raw", Description: "原始字节副本", Decode: Raw})
	MustRegister(Decoder{Key: "text", Description: "UTF-8 文本", Extensions: []string{".txt", ".lua", ".py", ".md"}, Decode: Text})
	MustRegister(Decoder{Key: "json", Description: "JSON 文档", Extensions: []string{".json"}, Decode: JSON})
	MustRegister(Decoder{Key: "toml", Description: "TOML 文档", Extensions: []string{".toml"}, Decode: TOML})
	MustRegister(Decoder{Key: "template", Description: "text/template 模板，缓存编译结果", Extensions: []string{".tmpl"}, Decode: Template})
}

// Raw 返回字节副本，避免调用方修改源数据。
func Raw(data []byte) (any, error) {
	return bytes.Clone(data), nil
}

// Text 要求内容为合法 UTF-8。
func Text(data []byte) (any, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: invalid utf-8", vfs.ErrDecode)
	}
	return string(data), nil
}

func JSON(data []byte) (any, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("%w: json: %w", vfs.ErrDecode, err)
	}
	return value, nil
}

// TOML 解码为 map[string]any。
func TOML(data []byte) (any, error) {
	value := make(map[string]any)
	if err := toml.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("%w: toml: %w", vfs.ErrDecode, err)
	}
	return value, nil
}

// Template 编译为 *template.Template；缓存保存编译结果，调用方每次用 Render 渲染。
func Template(data []byte) (any, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: invalid utf-8", vfs.ErrDecode)
	}
	tmpl, err := template.New("resource").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: template: %w", vfs.ErrDecode, err)
	}
	return tmpl, nil
}

// Render 用给定变量渲染已编译的模板，value 不是模板时返回 ErrDecode。
func Render(value any, vars any) (string, error) {
	tmpl, ok := value.(*template.Template)
	if !ok {
		return "", fmt.Errorf("%w: %T is not a template", vfs.ErrDecode, value)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("%w: render: %w", vfs.ErrDecode, err)
	}
	return buf.String(), nil
}
