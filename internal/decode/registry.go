package decode

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/driftwood2d/resvfs/internal/cache"
	"github.com/driftwood2d/resvfs/internal/vfs"
)

// DefaultKey 是无法按扩展名匹配时使用的解码器。
const DefaultKey = "raw"

// Decoder 描述一个已注册的解码器。
type Decoder struct {
	Key         string        `json:"key"`
	Description string        `json:"description"`
	Extensions  []string      `json:"extensions"`
	Decode      cache.Decoder `json:"-"`
}

var globalRegistry = newRegistry()

type registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

func newRegistry() *registry {
	return &registry{decoders: make(map[string]Decoder)}
}

// Register 将解码器加入全局注册表，重复键会返回错误。
func Register(d Decoder) error {
	return globalRegistry.register(d)
}

// MustRegister 在注册失败时 panic，适合 init() 中调用。
func MustRegister(d Decoder) {
	if err := Register(d); err != nil {
		panic(err)
	}
}

// Resolve 返回指定键的解码器，键不区分大小写。
func Resolve(key string) (Decoder, bool) {
	return globalRegistry.resolve(key)
}

// ForPath 按扩展名挑选解码器，未匹配时回退到 raw。
func ForPath(p vfs.Path) Decoder {
	ext := strings.ToLower(path.Ext(p.String()))
	if ext != "" {
		for _, d := range List() {
			for _, candidate := range d.Extensions {
				if candidate == ext {
					return d
				}
			}
		}
	}
	d, _ := Resolve(DefaultKey)
	return d
}

// List 返回按键排序的解码器列表。
func List() []Decoder {
	return globalRegistry.list()
}

// Keys 返回所有已注册解码器的键。
func Keys() []string {
	items := List()
	result := make([]string, len(items))
	for i, d := range items {
		result[i] = d.Key
	}
	return result
}

func (r *registry) normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r *registry) register(d Decoder) error {
	key := r.normalizeKey(d.Key)
	if key == "" {
		return fmt.Errorf("decoder key is required")
	}
	if d.Decode == nil {
		return fmt.Errorf("decoder %s has no decode func", key)
	}
	d.Key = key

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.decoders[key]; exists {
		return fmt.Errorf("decoder %s already registered", key)
	}
	r.decoders[key] = d
	return nil
}

func (r *registry) resolve(key string) (Decoder, bool) {
	normalized := r.normalizeKey(key)
	if normalized == "" {
		return Decoder{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.decoders[normalized]
	return d, ok
}

func (r *registry) list() []Decoder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.decoders) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.decoders))
	for key := range r.decoders {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Decoder, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.decoders[key])
	}
	return result
}
